package ledger

import (
	"path/filepath"
	"strings"

	"github.com/rezonia/cedula-processor/internal/model"
)

// Classifier assigns invoices to the income or expense ledger
type Classifier struct {
	IncomeRoot  string
	ExpenseRoot string
	OwnRFC      string
}

// Classify applies, in order: source under IncomeRoot, source under
// ExpenseRoot, then issuer RFC equal to OwnRFC. Empty roots are skipped.
func (c Classifier) Classify(doc model.FiscalDocument) model.Category {
	switch {
	case within(c.IncomeRoot, doc.SourcePath):
		return model.CategoryIncome
	case within(c.ExpenseRoot, doc.SourcePath):
		return model.CategoryExpense
	}

	own := strings.ToUpper(strings.TrimSpace(c.OwnRFC))
	if own != "" && strings.ToUpper(strings.TrimSpace(doc.IssuerRFC)) == own {
		return model.CategoryIncome
	}
	return model.CategoryExpense
}

// ClassifyAll classifies every document, keeping input order
func (c Classifier) ClassifyAll(docs []model.FiscalDocument) []model.ClassifiedDocument {
	out := make([]model.ClassifiedDocument, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.ClassifiedDocument{Document: d, Category: c.Classify(d)})
	}
	return out
}

// within reports whether p lies strictly below root, comparing whole path
// components so that "ingresos2/a.xml" is not under "ingresos"
func within(root, p string) bool {
	if root == "" || p == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(p))
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}
