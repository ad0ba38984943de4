package risk

import (
	"fmt"
	"math"
)

// Liquidation threshold: a position is liquidated when PnL reaches -90% of
// its margin. Fees are deliberately excluded from the estimate; the engine
// applies them at settlement.
const liquidationLossFraction = 0.9

// Position is a raw position as reported by the perps API. All prices are in
// USD, Size is the dollar notional.
type Position struct {
	Pair         string  `json:"pair"`
	Size         float64 `json:"size"`
	Margin       float64 `json:"margin"`
	AveragePrice float64 `json:"average_price"`
	MarkPrice    float64 `json:"mark_price"`
	IsLong       bool    `json:"is_long"`
	FundingFee   float64 `json:"funding_fee"`
	BorrowFee    float64 `json:"borrow_fee"`
}

// View is a position with its derived risk figures, ready for display.
type View struct {
	Pair             string  `json:"pair"`
	Side             string  `json:"side"`
	DollarSize       float64 `json:"dollar_size"`
	Margin           float64 `json:"margin"`
	Leverage         int     `json:"leverage"`
	EntryPrice       float64 `json:"entry_price"`
	MarkPrice        float64 `json:"mark_price"`
	PnL              float64 `json:"pnl"`
	PnLDisplay       string  `json:"pnl_display"`
	PnLPercent       float64 `json:"pnl_percent"`
	LiquidationPrice float64 `json:"liquidation_price"`
	NetFees          float64 `json:"net_fees"`
	NetFeesDisplay   string  `json:"net_fees_display"`
}

// LiquidationPrice estimates the mark price at which the position's PnL hits
// -90% of margin. requiredMove is the fractional adverse price move:
// (-0.9 * margin) / (margin * leverage), so a 10x long liquidates 9% below
// entry and a 10x short 9% above.
func LiquidationPrice(isLong bool, entryPrice float64, leverage int, margin float64) float64 {
	if entryPrice <= 0 || leverage <= 0 || margin <= 0 {
		return 0
	}
	requiredMove := (-liquidationLossFraction * margin) / (margin * float64(leverage))
	if isLong {
		return entryPrice * (1 + requiredMove)
	}
	return entryPrice * (1 - requiredMove)
}

// FormatPosition derives the display metrics for a raw position.
func FormatPosition(p Position) View {
	leverage := 0
	if p.Margin > 0 {
		leverage = int(math.Round(p.Size / p.Margin))
	}

	pnl := 0.0
	if p.AveragePrice > 0 {
		move := (p.MarkPrice - p.AveragePrice) / p.AveragePrice
		if !p.IsLong {
			move = -move
		}
		pnl = p.Size * move
	}

	pnlPct := 0.0
	if p.Margin > 0 {
		pnlPct = pnl / p.Margin * 100
	}

	side := "short"
	if p.IsLong {
		side = "long"
	}

	netFees := p.FundingFee + p.BorrowFee

	return View{
		Pair:             p.Pair,
		Side:             side,
		DollarSize:       p.Size,
		Margin:           p.Margin,
		Leverage:         leverage,
		EntryPrice:       p.AveragePrice,
		MarkPrice:        p.MarkPrice,
		PnL:              pnl,
		PnLDisplay:       SignedUSD(pnl),
		PnLPercent:       pnlPct,
		LiquidationPrice: LiquidationPrice(p.IsLong, p.AveragePrice, leverage, p.Margin),
		NetFees:          netFees,
		NetFeesDisplay:   SignedUSD(netFees),
	}
}

// SignedUSD renders a dollar value with an explicit sign prefix. The sign is
// derived from the numeric value, never from upstream string formatting.
func SignedUSD(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("+$%.2f", v)
}
