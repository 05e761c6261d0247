package exchange

import (
	"context"
	"net/url"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"haka-futures-engine/decision"
	"haka-futures-engine/risk"
)

// AccountProvider implements orchestrator.AccountStateProvider against a
// Binance-style USDT-M futures account: equity and open exposure come from
// the signed account-balance/position-risk endpoints, while drawdown and
// the consecutive-loss streak are derived from the account's realized-PnL
// income history, which this engine's own execution log does not carry
// (it records submissions, not fills or closes).
type AccountProvider struct {
	client *RESTClient

	mu            sync.Mutex
	peakEquity    decimal.Decimal
	lastIncomeAt  int64
	lossStreak    int
	defaultStop   float64 // stop distance pct applied to every proposed entry; decisions carry no stop of their own
}

// NewAccountProvider wraps an existing RESTClient for account-state reads.
func NewAccountProvider(client *RESTClient) *AccountProvider {
	return &AccountProvider{client: client, defaultStop: 1.0}
}

type balanceEntry struct {
	Asset            string `json:"asset"`
	Balance          string `json:"balance"`
	AvailableBalance string `json:"availableBalance"`
}

type positionRiskEntry struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	Notional         string `json:"notional"`
	Leverage         string `json:"leverage"`
}

type incomeEntry struct {
	IncomeType string `json:"incomeType"`
	Income     string `json:"income"`
	Time       int64  `json:"time"`
}

// AccountState implements orchestrator.AccountStateProvider.
func (p *AccountProvider) AccountState(ctx context.Context, symbol string, decisionResult decision.DecisionResult) (risk.AccountState, error) {
	equity, err := p.fetchEquity(ctx)
	if err != nil {
		return risk.AccountState{}, err
	}

	openPosition, totalExposure, entryPrice, leverage, err := p.fetchExposure(ctx, symbol)
	if err != nil {
		return risk.AccountState{}, err
	}

	drawdownPct, consecutiveLosses, err := p.updateFromIncome(ctx, equity)
	if err != nil {
		return risk.AccountState{}, err
	}

	stopDistancePct := p.defaultStop
	notional := openPosition
	if notional.IsZero() {
		notional = equity.Mul(decimal.NewFromFloat(0.1))
	}

	return risk.AccountState{
		EquityUSD:             equity,
		OpenPositionUSD:       openPosition,
		TotalExposureUSD:      totalExposure,
		DrawdownPct:           drawdownPct,
		ConsecutiveLosses:     consecutiveLosses,
		ProposedEntryPrice:    entryPrice,
		ProposedStopLossPrice: stopAtDistance(entryPrice, decisionResult.Action, stopDistancePct),
		ProposedLeverage:      leverage,
		ProposedNotionalUSD:   notional,
	}, nil
}

func stopAtDistance(entry decimal.Decimal, action decision.Action, distancePct float64) decimal.Decimal {
	dist := entry.Mul(decimal.NewFromFloat(distancePct / 100))
	if action == decision.ActionShort {
		return entry.Add(dist)
	}
	return entry.Sub(dist)
}

func (p *AccountProvider) fetchEquity(ctx context.Context) (decimal.Decimal, error) {
	var balances []balanceEntry
	if err := p.client.signedGetJSON(ctx, "/fapi/v2/balance", url.Values{}, &balances); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, b := range balances {
		if b.Asset != "USDT" {
			continue
		}
		v, err := decimal.NewFromString(b.Balance)
		if err != nil {
			continue
		}
		total = total.Add(v)
	}
	return total, nil
}

func (p *AccountProvider) fetchExposure(ctx context.Context, symbol string) (openPosition, totalExposure, entryPrice, leverage decimal.Decimal, err error) {
	var positions []positionRiskEntry
	if err = p.client.signedGetJSON(ctx, "/fapi/v2/positionRisk", url.Values{}, &positions); err != nil {
		return
	}

	for _, pos := range positions {
		notional, nerr := decimal.NewFromString(pos.Notional)
		if nerr != nil {
			continue
		}
		abs := notional.Abs()
		totalExposure = totalExposure.Add(abs)

		if pos.Symbol == symbol {
			openPosition = abs
			if ep, eerr := decimal.NewFromString(pos.EntryPrice); eerr == nil {
				entryPrice = ep
			}
			if lev, lerr := decimal.NewFromString(pos.Leverage); lerr == nil {
				leverage = lev
			}
		}
	}
	return
}

// updateFromIncome pulls realized-PnL income entries since the last call,
// folding them into the running peak-equity drawdown and consecutive-loss
// streak. Called once per cycle per symbol; the streak and peak are shared
// engine-wide rather than per symbol, matching how a shared margin account
// actually draws down.
func (p *AccountProvider) updateFromIncome(ctx context.Context, equity decimal.Decimal) (decimal.Decimal, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.peakEquity.IsZero() || equity.GreaterThan(p.peakEquity) {
		p.peakEquity = equity
	}

	q := url.Values{}
	q.Set("incomeType", "REALIZED_PNL")
	q.Set("limit", "100")
	if p.lastIncomeAt > 0 {
		q.Set("startTime", strconv.FormatInt(p.lastIncomeAt+1, 10))
	}

	var entries []incomeEntry
	if err := p.client.signedGetJSON(ctx, "/fapi/v1/income", q, &entries); err != nil {
		return p.currentDrawdown(equity), p.lossStreak, nil
	}

	for _, e := range entries {
		income, err := decimal.NewFromString(e.Income)
		if err != nil {
			continue
		}
		if income.IsNegative() {
			p.lossStreak++
		} else if income.IsPositive() {
			p.lossStreak = 0
		}
		if e.Time > p.lastIncomeAt {
			p.lastIncomeAt = e.Time
		}
	}

	return p.currentDrawdown(equity), p.lossStreak, nil
}

func (p *AccountProvider) currentDrawdown(equity decimal.Decimal) decimal.Decimal {
	if p.peakEquity.IsZero() {
		return decimal.Zero
	}
	drop := p.peakEquity.Sub(equity)
	if drop.IsNegative() {
		return decimal.Zero
	}
	return drop.Div(p.peakEquity).Mul(decimal.NewFromInt(100))
}
