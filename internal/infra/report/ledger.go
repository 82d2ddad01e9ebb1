package report

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/Spok95/podvest/internal/domain/fixed"
	"github.com/Spok95/podvest/internal/domain/pod"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	ledgerSheet  = "Ledger"
)

func dec(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// Percent renders a permille value as a percentage, 50 -> "5.0%".
func Percent(permille uint64) string {
	return dec(permille).
		Div(dec(fixed.Precision / 100)).
		StringFixed(1) + "%"
}

// TokensPerUnit is how many tokens one unit of funding currency buys.
func TokensPerUnit(priceMultiplier, tokenPrice uint64) string {
	if tokenPrice == 0 {
		return "0"
	}
	return dec(priceMultiplier).
		DivRound(dec(tokenPrice), 6).
		String()
}

// LedgerXLSX renders the pod state at now: one summary sheet and one row per
// investor.
func LedgerXLSX(p *pod.Pod, now uint64) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), summarySheet); err != nil {
		return nil, err
	}
	founder, err := p.FounderClaimable(now)
	if err != nil {
		return nil, err
	}
	summary := [][]interface{}{
		{"pod_id", p.ID},
		{"name", p.Name},
		{"status", string(p.Status(now))},
		{"token_price", p.TokenPrice},
		{"price_multiplier", p.PriceMultiplier},
		{"tokens_per_unit", TokensPerUnit(p.PriceMultiplier, p.TokenPrice)},
		{"min_goal", p.MinGoal},
		{"max_goal", p.MaxGoal},
		{"total_raised", p.TotalRaised},
		{"total_allocated", p.TotalAllocated},
		{"funds_vault", p.FundsVault.Value()},
		{"token_vault", p.TokenVault.Value()},
		{"founder_claimable", founder},
		{"founder_claimed_funds", p.FounderClaimedFunds},
		{"immediate_unlock", Percent(p.ImmediateUnlockFraction)},
		{"pod_exit_fee", Percent(p.Fees.PodExitFee)},
		{"pod_exit_small_fee", Percent(p.Fees.PodExitSmallFee)},
		{"subscription_cancel_fee", Percent(p.Fees.SubscriptionCancelFee)},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(ledgerSheet); err != nil {
		return nil, err
	}
	header := []interface{}{"investor", "invested", "allocation", "claimed_tokens", "vested_tokens", "share_of_raise"}
	if err := f.SetSheetRow(ledgerSheet, "A1", &header); err != nil {
		return nil, err
	}
	row := 2
	for _, pos := range p.Positions() {
		vested, err := p.VestedTokens(now, pos.Investor)
		if err != nil {
			return nil, fmt.Errorf("vested tokens for %s: %w", pos.Investor, err)
		}
		share := "0%"
		if p.TotalRaised > 0 {
			share = dec(pos.Invested).
				Mul(decimal.NewFromInt(100)).
				DivRound(dec(p.TotalRaised), 2).
				StringFixed(2) + "%"
		}
		excelRow := []interface{}{
			pos.Investor,
			pos.Invested,
			pos.Allocation,
			pos.ClaimedTokens,
			vested,
			share,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(ledgerSheet, cell, &excelRow); err != nil {
			return nil, err
		}
		row++
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
