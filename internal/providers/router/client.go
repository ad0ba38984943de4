package router

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
	"github.com/perpdex-labs/perpctl/internal/httpx"
	"github.com/perpdex-labs/perpctl/internal/registry"
	"github.com/perpdex-labs/perpctl/internal/route"
)

// Client quotes cross-chain routes against the external route construction
// service. The service is a black box: JSON request in, JSON route out; we
// validate the pieces we depend on and nothing else.
type Client struct {
	http    *httpx.Client
	baseURL string
}

func New(httpClient *httpx.Client, baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = registry.RouteAPIBaseURL
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

type contractCallBody struct {
	ToContractAddress  string `json:"toContractAddress"`
	ToContractCalldata string `json:"toContractCallData"`
	Value              string `json:"value,omitempty"`
}

type quoteRequestBody struct {
	FromChain     string             `json:"fromChain"`
	ToChain       string             `json:"toChain"`
	FromToken     string             `json:"fromToken"`
	ToToken       string             `json:"toToken"`
	FromAmount    string             `json:"fromAmount"`
	FromAddress   string             `json:"fromAddress"`
	ToAddress     string             `json:"toAddress"`
	Slippage      string             `json:"slippage"`
	ContractCalls []contractCallBody `json:"contractCalls"`
}

type quoteResponseBody struct {
	ID     string `json:"id"`
	Action struct {
		ToToken struct {
			Address string `json:"address"`
		} `json:"toToken"`
	} `json:"action"`
	Estimate struct {
		ToAmount        string `json:"toAmount"`
		ApprovalAddress string `json:"approvalAddress"`
	} `json:"estimate"`
	TransactionRequest struct {
		To      string `json:"to"`
		Data    string `json:"data"`
		Value   string `json:"value"`
		ChainID int64  `json:"chainId"`
	} `json:"transactionRequest"`
}

func (c *Client) QuoteContractCalls(ctx context.Context, req route.RouteQuoteRequest) (route.RouteQuote, error) {
	calls := make([]contractCallBody, 0, len(req.ContractCalls))
	for _, call := range req.ContractCalls {
		calls = append(calls, contractCallBody{
			ToContractAddress:  call.Target,
			ToContractCalldata: call.Data,
			Value:              call.Value,
		})
	}
	body := quoteRequestBody{
		FromChain:     strconv.FormatInt(req.FromChainID, 10),
		ToChain:       strconv.FormatInt(req.ToChainID, 10),
		FromToken:     strings.ToLower(req.FromToken),
		ToToken:       strings.ToLower(req.ToToken),
		FromAmount:    req.FromAmount,
		FromAddress:   req.FromAddress,
		ToAddress:     req.ToAddress,
		Slippage:      strconv.FormatFloat(req.SlippagePct/100, 'f', 6, 64),
		ContractCalls: calls,
	}

	var resp quoteResponseBody
	if _, err := c.http.PostJSON(ctx, c.baseURL+"/quote/contractCalls", body, nil, &resp); err != nil {
		return route.RouteQuote{}, err
	}
	if strings.TrimSpace(resp.TransactionRequest.To) == "" || strings.TrimSpace(resp.TransactionRequest.Data) == "" {
		return route.RouteQuote{}, clierr.New(clierr.CodeUnavailable, "route service returned no executable transaction")
	}
	value, err := hexOrDecimal(resp.TransactionRequest.Value)
	if err != nil {
		return route.RouteQuote{}, clierr.Wrap(clierr.CodeUnavailable, "parse route transaction value", err)
	}
	return route.RouteQuote{
		QuoteID:         resp.ID,
		ToToken:         resp.Action.ToToken.Address,
		ToAmount:        resp.Estimate.ToAmount,
		ApprovalAddress: resp.Estimate.ApprovalAddress,
		TransactionRequest: route.RouteTxRequest{
			To:      resp.TransactionRequest.To,
			Data:    resp.TransactionRequest.Data,
			Value:   value,
			ChainID: resp.TransactionRequest.ChainID,
		},
	}, nil
}

// hexOrDecimal normalizes the service's value field, which arrives as either
// a 0x-prefixed hex quantity or a decimal string.
func hexOrDecimal(v string) (string, error) {
	clean := strings.TrimSpace(v)
	if clean == "" {
		return "0", nil
	}
	if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		n := new(big.Int)
		if _, ok := n.SetString(clean[2:], 16); !ok {
			return "", fmt.Errorf("invalid hex value %q", v)
		}
		return n.String(), nil
	}
	if _, ok := new(big.Int).SetString(clean, 10); !ok {
		return "", fmt.Errorf("invalid decimal value %q", v)
	}
	return clean, nil
}
