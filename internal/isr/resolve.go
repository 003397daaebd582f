package isr

import (
	"github.com/shopspring/decimal"

	moneyutil "github.com/rezonia/cedula-processor/internal/decimal"
	"github.com/rezonia/cedula-processor/internal/model"
)

// Resolution is the tax computed for one base against one bracket
type Resolution struct {
	Bracket     model.TaxBracket
	Excess      decimal.Decimal
	MarginalTax decimal.Decimal
	GrossTax    decimal.Decimal
}

// Resolve selects the bracket for base and computes its tax. brackets must
// be sorted ascending by Lower. It returns false when brackets is empty.
//
// Selection, in order:
//   - the first bracket with Lower <= base <= Upper (or open-ended);
//   - base above every Upper: the highest bracket, read as open-ended;
//   - base inside a gap between brackets: the last bracket with Lower <= base;
//   - base below the lowest Lower: no tax.
func Resolve(base decimal.Decimal, brackets []model.TaxBracket) (Resolution, bool) {
	if len(brackets) == 0 {
		return Resolution{}, false
	}

	chosen := -1
	for i, b := range brackets {
		if b.Contains(base) {
			chosen = i
			break
		}
	}

	if chosen < 0 {
		for i, b := range brackets {
			if b.Lower.LessThanOrEqual(base) {
				chosen = i
			}
		}
	}

	if chosen < 0 {
		untaxed := model.TaxBracket{
			Lower:      decimal.Zero,
			Upper:      brackets[0].Lower,
			Rate:       decimal.Zero,
			FixedQuota: decimal.Zero,
		}
		return Resolution{
			Bracket:     untaxed,
			Excess:      decimal.Zero,
			MarginalTax: decimal.Zero,
			GrossTax:    decimal.Zero,
		}, true
	}

	b := brackets[chosen]
	rate := moneyutil.NormalizeRate(b.Rate)
	excess := moneyutil.MaxZero(base.Sub(b.Lower))
	marginal := moneyutil.RoundCents(excess.Mul(rate))

	b.Rate = rate
	return Resolution{
		Bracket:     b,
		Excess:      excess,
		MarginalTax: marginal,
		GrossTax:    marginal.Add(b.FixedQuota),
	}, true
}
