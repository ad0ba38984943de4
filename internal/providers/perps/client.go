package perps

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
	"github.com/perpdex-labs/perpctl/internal/execution"
	"github.com/perpdex-labs/perpctl/internal/httpx"
	"github.com/perpdex-labs/perpctl/internal/registry"
	"github.com/perpdex-labs/perpctl/internal/risk"
)

// Client talks to the exchange HTTP API: calldata quoting for margin
// operations and account reads. It is the production execution.PerpsQuoter.
type Client struct {
	http    *httpx.Client
	baseURL string
}

func New(httpClient *httpx.Client, baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = registry.PerpsAPIBaseURL
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

type calldataResponse struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

func (c *Client) DepositPayload(ctx context.Context, chainID int64, account, token string, amount *big.Int) (execution.TxPayload, error) {
	if amount == nil || amount.Sign() <= 0 {
		return execution.TxPayload{}, clierr.New(clierr.CodeInvalidAmount, "deposit amount must be positive")
	}
	body := map[string]any{
		"chainId": chainID,
		"account": account,
		"token":   token,
		"amount":  amount.String(),
	}
	var resp calldataResponse
	if _, err := c.http.PostJSON(ctx, c.baseURL+"/calldata/deposit", body, nil, &resp); err != nil {
		return execution.TxPayload{}, err
	}
	return payloadFromResponse(resp)
}

func (c *Client) WalletOperationPayload(ctx context.Context, chainID int64, opType, account string, amount *big.Int) (execution.TxPayload, error) {
	if amount == nil || amount.Sign() <= 0 {
		return execution.TxPayload{}, clierr.New(clierr.CodeInvalidAmount, "wallet operation amount must be positive")
	}
	body := map[string]any{
		"chainId": chainID,
		"type":    strings.ToLower(strings.TrimSpace(opType)),
		"account": account,
		"amount":  amount.String(),
	}
	var resp calldataResponse
	if _, err := c.http.PostJSON(ctx, c.baseURL+"/calldata/wallet", body, nil, &resp); err != nil {
		return execution.TxPayload{}, err
	}
	return payloadFromResponse(resp)
}

func payloadFromResponse(resp calldataResponse) (execution.TxPayload, error) {
	if strings.TrimSpace(resp.To) == "" || strings.TrimSpace(resp.Data) == "" {
		return execution.TxPayload{}, clierr.New(clierr.CodeUnavailable, "exchange returned no executable calldata")
	}
	value := strings.TrimSpace(resp.Value)
	if value == "" {
		value = "0"
	}
	return execution.TxPayload{To: resp.To, Data: resp.Data, Value: value}, nil
}

type positionRow struct {
	Pair         string  `json:"pair"`
	SizeUSD      float64 `json:"sizeUsd"`
	MarginUSD    float64 `json:"marginUsd"`
	AveragePrice float64 `json:"averagePrice"`
	MarkPrice    float64 `json:"markPrice"`
	IsLong       bool    `json:"isLong"`
	FundingFee   float64 `json:"fundingFee"`
	BorrowFee    float64 `json:"borrowFee"`
}

type positionsResponse struct {
	Account   string        `json:"account"`
	Positions []positionRow `json:"positions"`
}

// Positions reads the account's open positions. Derived risk metrics are the
// caller's job (risk.FormatPosition); this returns the raw values only.
func (c *Client) Positions(ctx context.Context, chainID int64, account string) ([]risk.Position, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, clierr.New(clierr.CodeUsage, "positions require an account address")
	}
	endpoint := fmt.Sprintf("%s/accounts/%s/positions?chainId=%d", c.baseURL, url.PathEscape(account), chainID)
	var resp positionsResponse
	if _, err := c.http.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	out := make([]risk.Position, 0, len(resp.Positions))
	for _, row := range resp.Positions {
		out = append(out, risk.Position{
			Pair:         row.Pair,
			Size:         row.SizeUSD,
			Margin:       row.MarginUSD,
			AveragePrice: row.AveragePrice,
			MarkPrice:    row.MarkPrice,
			IsLong:       row.IsLong,
			FundingFee:   row.FundingFee,
			BorrowFee:    row.BorrowFee,
		})
	}
	return out, nil
}
