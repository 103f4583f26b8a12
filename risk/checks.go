package risk

import (
	"fmt"

	"github.com/fxlab/simtrader/account"
)

// Policy holds the configured risk limits. A zero limit disables its check.
type Policy struct {
	MaxRiskPct       float64 // max fraction of equity risked per trade, e.g. 0.02
	MinRR            float64 // minimum reward-to-risk ratio when a take is set
	MaxOpenPositions int     // cap on concurrently open positions
	MaxDailyLossPct  float64 // max fraction of balance lost in one day, e.g. 0.05
}

// TradeIntent describes the order being considered.
type TradeIntent struct {
	Symbol       string
	Volume       float64 // lots
	Entry        float64
	Stop         float64
	Take         float64 // 0 when no take profit is planned
	ContractSize float64
	Leverage     float64
}

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	PlannedRisk    float64
	PlannedRiskPct float64
	PlannedRR      float64
	RequiredMargin float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Evaluate checks an intent against the policy, the current account snapshot
// and the day's realized P/L (negative when losing; see Engine.RealizedPLSince).
func Evaluate(p Policy, intent TradeIntent, snap account.Snapshot, dayPL float64) Decision {
	d := Decision{Allowed: true}

	if intent.Entry == 0 || intent.Stop == 0 {
		d.add("NO_STOP_OR_ENTRY", "entry and stop must be set")
		return d
	}
	if intent.Volume <= 0 {
		d.add("NO_VOLUME", "volume must be positive")
		return d
	}

	if p.MaxOpenPositions > 0 && snap.OpenPositions >= p.MaxOpenPositions {
		d.add("TOO_MANY_POSITIONS", fmt.Sprintf("%d positions already open, limit %d",
			snap.OpenPositions, p.MaxOpenPositions))
	}
	if p.MaxDailyLossPct > 0 && dayPL < 0 && snap.Balance > 0 {
		lossPct := -dayPL / snap.Balance
		if lossPct >= p.MaxDailyLossPct {
			d.add("DAILY_LOSS_LIMIT", fmt.Sprintf("daily loss %.2f%% reached limit %.2f%%",
				lossPct*100, p.MaxDailyLossPct*100))
		}
	}

	d.PlannedRisk = PlannedRisk(intent.Volume, intent.ContractSize, intent.Entry, intent.Stop)
	d.PlannedRiskPct = RiskPct(d.PlannedRisk, snap.Equity)
	d.PlannedRR = RR(intent.Entry, intent.Stop, intent.Take)

	leverage := intent.Leverage
	if leverage <= 0 {
		leverage = 1
	}
	d.RequiredMargin = intent.Volume * intent.ContractSize * intent.Entry / leverage

	if p.MaxRiskPct > 0 && d.PlannedRiskPct > p.MaxRiskPct {
		d.add("RISK_TOO_HIGH", fmt.Sprintf("planned risk %.2f%% exceeds limit %.2f%%",
			d.PlannedRiskPct*100, p.MaxRiskPct*100))
	}
	if p.MinRR > 0 && intent.Take != 0 && d.PlannedRR < p.MinRR {
		d.add("RR_TOO_LOW", fmt.Sprintf("reward/risk %.2f below minimum %.2f", d.PlannedRR, p.MinRR))
	}
	if d.RequiredMargin > snap.FreeMargin {
		d.add("INSUFFICIENT_MARGIN", fmt.Sprintf("required margin %.2f exceeds free margin %.2f",
			d.RequiredMargin, snap.FreeMargin))
	}

	return d
}
