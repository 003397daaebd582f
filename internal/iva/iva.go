// Package iva nets caused, creditable and withheld IVA per month and over
// the year.
package iva

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	moneyutil "github.com/rezonia/cedula-processor/internal/decimal"
	"github.com/rezonia/cedula-processor/internal/model"
)

// Mode selects how withheld IVA enters the net difference
type Mode string

const (
	// ModeBase nets caused against creditable only; withheld IVA is reported
	// alongside as a separate adjustment
	ModeBase Mode = "base"

	// ModeWithheld subtracts withheld IVA before computing payable or credit
	ModeWithheld Mode = "withheld"
)

// ParseMode reads a configured mode. Empty selects ModeBase.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "base":
		return ModeBase, nil
	case "withheld", "retenido", "retenciones":
		return ModeWithheld, nil
	}
	return "", fmt.Errorf("unknown IVA mode %q (want base or withheld)", s)
}

// MonthInput carries the IVA figures of one month
type MonthInput struct {
	Caused     decimal.Decimal
	Creditable decimal.Decimal
	Withheld   decimal.Decimal
}

// Net computes one netting line
func Net(month int, in MonthInput, mode Mode) model.MonthlyIVALine {
	net := in.Caused.Sub(in.Creditable)
	if mode == ModeWithheld {
		net = net.Sub(in.Withheld)
	}

	return model.MonthlyIVALine{
		Month:            month,
		VATCaused:        in.Caused,
		VATCreditable:    in.Creditable,
		VATWithheld:      in.Withheld,
		NetDifference:    net,
		VATPayable:       moneyutil.MaxZero(net),
		VATCreditBalance: moneyutil.CreditOf(net),
	}
}

// Compute nets months 1 to 12 and the year. The annual line re-nets the
// annual sums, so a credit in one month offsets a later payable.
// The annual line carries Month 0.
func Compute(inputs [12]MonthInput, mode Mode) ([]model.MonthlyIVALine, model.MonthlyIVALine) {
	lines := make([]model.MonthlyIVALine, 0, 12)
	var total MonthInput

	for i, in := range inputs {
		lines = append(lines, Net(i+1, in, mode))
		total.Caused = total.Caused.Add(in.Caused)
		total.Creditable = total.Creditable.Add(in.Creditable)
		total.Withheld = total.Withheld.Add(in.Withheld)
	}

	return lines, Net(0, total, mode)
}
