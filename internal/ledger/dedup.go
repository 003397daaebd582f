// Package ledger turns parsed documents into the monthly income and
// expense ledgers of one fiscal year.
package ledger

import (
	"github.com/rezonia/cedula-processor/internal/model"
	"github.com/rezonia/cedula-processor/internal/stamp"
)

// Dedup keeps the first invoice seen for each stamp UUID, in input order.
// Invoices without a UUID are always kept. Dedup(Dedup(x)) == Dedup(x).
func Dedup(docs []model.FiscalDocument) ([]model.FiscalDocument, int) {
	return dedupBy(docs, func(d model.FiscalDocument) string { return d.ID })
}

// DedupWithholdings applies the Dedup rule to withholding receipts
func DedupWithholdings(docs []model.WithholdingDocument) ([]model.WithholdingDocument, int) {
	return dedupBy(docs, func(d model.WithholdingDocument) string { return d.ID })
}

func dedupBy[T any](docs []T, id func(T) string) ([]T, int) {
	seen := make(map[string]struct{}, len(docs))
	unique := make([]T, 0, len(docs))
	duplicates := 0

	for _, d := range docs {
		key := stamp.NormalizeUUID(id(d))
		if key == "" {
			unique = append(unique, d)
			continue
		}
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, d)
	}

	return unique, duplicates
}
