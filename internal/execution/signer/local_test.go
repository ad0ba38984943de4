package signer

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
)

const (
	testKeyHex  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestLocalSignerFromEnvKey(t *testing.T) {
	t.Setenv(EnvPrivateKey, testKeyHex)
	t.Setenv(EnvPrivateKeyFile, "")
	t.Setenv(EnvKeystorePath, "")

	s, err := NewLocalSignerFromEnv(KeySourceEnv)
	if err != nil {
		t.Fatalf("signer from env failed: %v", err)
	}
	if !strings.EqualFold(s.Address().Hex(), testAddress) {
		t.Fatalf("derived address = %s, want %s", s.Address().Hex(), testAddress)
	}
}

func TestLocalSignerFromFile(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "key.hex")
	if err := os.WriteFile(keyPath, []byte("0x"+testKeyHex+"\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	t.Setenv(EnvPrivateKey, "")
	t.Setenv(EnvPrivateKeyFile, keyPath)
	t.Setenv(EnvKeystorePath, "")

	s, err := NewLocalSignerFromEnv(KeySourceFile)
	if err != nil {
		t.Fatalf("signer from file failed: %v", err)
	}
	if !strings.EqualFold(s.Address().Hex(), testAddress) {
		t.Fatalf("derived address = %s, want %s", s.Address().Hex(), testAddress)
	}
}

func TestLocalSignerSignsDynamicFeeTx(t *testing.T) {
	s, err := NewLocalSigner(LocalSignerConfig{PrivateKeyHex: testKeyHex})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	chainID := big.NewInt(42161)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     1,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       21000,
		Value:     big.NewInt(0),
	})
	signed, err := s.SignTx(chainID, tx)
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if !strings.EqualFold(sender.Hex(), testAddress) {
		t.Fatalf("recovered sender = %s, want %s", sender.Hex(), testAddress)
	}
}

func TestLocalSignerRejectsUnknownSource(t *testing.T) {
	if _, err := NewLocalSignerFromEnv("vault"); err == nil {
		t.Fatal("unknown key source must fail")
	}
}

func TestLocalSignerMissingKey(t *testing.T) {
	t.Setenv(EnvPrivateKey, "")
	t.Setenv(EnvPrivateKeyFile, "")
	t.Setenv(EnvKeystorePath, "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if _, err := NewLocalSignerFromEnv(KeySourceEnv); err == nil {
		t.Fatal("missing key must fail")
	}
}
