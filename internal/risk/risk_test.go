package risk

import (
	"math"
	"testing"
)

func TestLiquidationPriceLong(t *testing.T) {
	// requiredMove = -0.9*1000/(1000*10) = -0.09 => 100 * (1 - 0.09) = 91
	got := LiquidationPrice(true, 100, 10, 1000)
	if math.Abs(got-91) > 1e-9 {
		t.Fatalf("LiquidationPrice long = %v, want 91", got)
	}
}

func TestLiquidationPriceShort(t *testing.T) {
	got := LiquidationPrice(false, 100, 10, 1000)
	if math.Abs(got-109) > 1e-9 {
		t.Fatalf("LiquidationPrice short = %v, want 109", got)
	}
}

func TestLiquidationPriceDegenerateInputs(t *testing.T) {
	if got := LiquidationPrice(true, 0, 10, 1000); got != 0 {
		t.Fatalf("zero entry must yield 0, got %v", got)
	}
	if got := LiquidationPrice(true, 100, 0, 1000); got != 0 {
		t.Fatalf("zero leverage must yield 0, got %v", got)
	}
}

func TestFormatPositionLong(t *testing.T) {
	view := FormatPosition(Position{
		Pair:         "ETH-USD",
		Size:         10000,
		Margin:       1000,
		AveragePrice: 2000,
		MarkPrice:    2100,
		IsLong:       true,
		FundingFee:   -3.5,
		BorrowFee:    -1.5,
	})
	if view.Leverage != 10 {
		t.Fatalf("leverage = %d, want 10", view.Leverage)
	}
	// +5% move on 10k notional
	if math.Abs(view.PnL-500) > 1e-9 {
		t.Fatalf("pnl = %v, want 500", view.PnL)
	}
	if math.Abs(view.PnLPercent-50) > 1e-9 {
		t.Fatalf("pnl pct = %v, want 50", view.PnLPercent)
	}
	if view.PnLDisplay != "+$500.00" {
		t.Fatalf("pnl display = %q", view.PnLDisplay)
	}
	if view.NetFeesDisplay != "-$5.00" {
		t.Fatalf("fees display = %q", view.NetFeesDisplay)
	}
	if math.Abs(view.LiquidationPrice-1820) > 1e-9 {
		t.Fatalf("liq price = %v, want 1820", view.LiquidationPrice)
	}
	if view.Side != "long" {
		t.Fatalf("side = %q", view.Side)
	}
}

func TestFormatPositionShortLoss(t *testing.T) {
	view := FormatPosition(Position{
		Pair:         "BTC-USD",
		Size:         5000,
		Margin:       2500,
		AveragePrice: 50000,
		MarkPrice:    51000,
		IsLong:       false,
	})
	if view.Leverage != 2 {
		t.Fatalf("leverage = %d, want 2", view.Leverage)
	}
	if view.PnL >= 0 {
		t.Fatalf("short into rising mark must lose, pnl = %v", view.PnL)
	}
	if view.PnLDisplay[0] != '-' {
		t.Fatalf("loss must carry - prefix: %q", view.PnLDisplay)
	}
}

func TestSignedUSDZeroIsPositive(t *testing.T) {
	if SignedUSD(0) != "+$0.00" {
		t.Fatalf("unexpected zero rendering: %q", SignedUSD(0))
	}
}

func TestFormatPositionLeverageRounds(t *testing.T) {
	view := FormatPosition(Position{Size: 10400, Margin: 1000, AveragePrice: 1, MarkPrice: 1, IsLong: true})
	if view.Leverage != 10 {
		t.Fatalf("leverage = %d, want 10 (rounded)", view.Leverage)
	}
	view = FormatPosition(Position{Size: 10600, Margin: 1000, AveragePrice: 1, MarkPrice: 1, IsLong: true})
	if view.Leverage != 11 {
		t.Fatalf("leverage = %d, want 11 (rounded)", view.Leverage)
	}
}
