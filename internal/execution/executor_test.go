package execution

import (
	"context"
	"testing"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
)

func TestSendBatchRequiresSigner(t *testing.T) {
	batch := NewBatch(NewBatchID(), "deposit", "eip155:42161", Constraints{})
	err := SendBatch(context.Background(), nil, &batch, nil, DefaultExecuteOptions())
	if err == nil {
		t.Fatal("expected error without signer")
	}
	if clierr.CodeOf(err) != clierr.CodeSigner {
		t.Fatalf("expected signer code, got %v", err)
	}
}

func TestSendBatchRequiresBatch(t *testing.T) {
	err := SendBatch(context.Background(), nil, nil, nil, DefaultExecuteOptions())
	if err == nil {
		t.Fatal("expected error without batch")
	}
}

func TestParseGwei(t *testing.T) {
	v, err := parseGwei("2.5")
	if err != nil {
		t.Fatalf("parseGwei failed: %v", err)
	}
	if v.String() != "2500000000" {
		t.Fatalf("parseGwei(2.5) = %s, want 2500000000", v)
	}
	if _, err := parseGwei("-1"); err == nil {
		t.Fatal("negative gwei must fail")
	}
	if _, err := parseGwei("0.0000000001"); err == nil {
		t.Fatal("sub-wei gwei must fail")
	}
}

func TestDecodeHex(t *testing.T) {
	buf, err := decodeHex("0xdeadbeef")
	if err != nil {
		t.Fatalf("decodeHex failed: %v", err)
	}
	if len(buf) != 4 {
		t.Fatalf("unexpected length %d", len(buf))
	}
	if buf, err := decodeHex(""); err != nil || len(buf) != 0 {
		t.Fatalf("empty input must decode to empty slice, got %v %v", buf, err)
	}
	if _, err := decodeHex("0xzz"); err == nil {
		t.Fatal("invalid hex must fail")
	}
}
