package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/rezonia/cedula-processor/internal/model"
)

// Aggregation holds the monthly buckets of one fiscal year
type Aggregation struct {
	Buckets map[model.BucketKey]model.MonthlyBucket

	// Excluded counts documents without a usable month or from another year
	Excluded int
}

// Bucket returns the bucket for a key; missing keys read as zero
func (a Aggregation) Bucket(month int, category model.Category) model.MonthlyBucket {
	if b, ok := a.Buckets[model.BucketKey{Month: month, Category: category}]; ok {
		return b
	}
	return model.MonthlyBucket{
		Month:       month,
		Category:    category,
		SumSubtotal: decimal.Zero,
		SumVAT:      decimal.Zero,
		SumTotal:    decimal.Zero,
	}
}

// Aggregate sums subtotal, VAT and total per (month, category) for the
// documents of fiscalYear. The input slice is not modified.
func Aggregate(docs []model.ClassifiedDocument, fiscalYear int) Aggregation {
	agg := Aggregation{Buckets: make(map[model.BucketKey]model.MonthlyBucket)}

	for _, cd := range docs {
		d := cd.Document
		if !d.HasPeriod() || d.Year != fiscalYear {
			agg.Excluded++
			continue
		}

		key := model.BucketKey{Month: d.Month, Category: cd.Category}
		b := agg.Bucket(d.Month, cd.Category)
		b.SumSubtotal = b.SumSubtotal.Add(d.Subtotal)
		b.SumVAT = b.SumVAT.Add(d.VATAmount)
		b.SumTotal = b.SumTotal.Add(d.Total)
		b.Count++
		agg.Buckets[key] = b
	}

	return agg
}

// WithholdingTotals sums withheld ISR and IVA per month of fiscalYear. A
// receipt counts in its period start month; receipts declaring another
// fiscal year, or no valid start month, are excluded.
func WithholdingTotals(docs []model.WithholdingDocument, fiscalYear int) ([12]model.WithholdingMonth, int) {
	var months [12]model.WithholdingMonth
	for i := range months {
		months[i] = model.WithholdingMonth{Month: i + 1, ISRWithheld: decimal.Zero, VATWithheld: decimal.Zero}
	}

	excluded := 0
	for _, w := range docs {
		if w.PeriodStartMonth < 1 || w.PeriodStartMonth > 12 {
			excluded++
			continue
		}
		if w.FiscalYear != 0 && w.FiscalYear != fiscalYear {
			excluded++
			continue
		}
		m := &months[w.PeriodStartMonth-1]
		m.ISRWithheld = m.ISRWithheld.Add(w.ISRWithheld)
		m.VATWithheld = m.VATWithheld.Add(w.VATWithheld)
		m.Count++
	}

	return months, excluded
}
