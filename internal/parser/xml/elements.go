package xml

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	moneyutil "github.com/rezonia/cedula-processor/internal/decimal"
	"github.com/rezonia/cedula-processor/internal/model"
)

// variant is one namespace a document family may be written in
type variant struct {
	schema    model.Schema
	namespace string
}

// findRoot returns the first element named local in namespace ns, starting
// at root itself and descending depth-first
func findRoot(root *etree.Element, ns, local string) *etree.Element {
	if root == nil {
		return nil
	}
	if root.Tag == local && root.NamespaceURI() == ns {
		return root
	}
	for _, c := range root.ChildElements() {
		if found := findRoot(c, ns, local); found != nil {
			return found
		}
	}
	return nil
}

// child returns the first direct child named local in namespace ns
func child(el *etree.Element, ns, local string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == local && c.NamespaceURI() == ns {
			return c
		}
	}
	return nil
}

// children returns all direct children named local in namespace ns
func children(el *etree.Element, ns, local string) []*etree.Element {
	if el == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == local && c.NamespaceURI() == ns {
			out = append(out, c)
		}
	}
	return out
}

// descendant finds the first element below el named local in namespace ns
func descendant(el *etree.Element, ns, local string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if found := findRoot(c, ns, local); found != nil {
			return found
		}
	}
	return nil
}

// descendants collects every element below el named local in namespace ns
func descendants(el *etree.Element, ns, local string) []*etree.Element {
	if el == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == local && c.NamespaceURI() == ns {
			out = append(out, c)
		}
		out = append(out, descendants(c, ns, local)...)
	}
	return out
}

// attr returns the first present attribute among aliases, trimmed
func attr(el *etree.Element, aliases ...string) string {
	if el == nil {
		return ""
	}
	for _, name := range aliases {
		if a := el.SelectAttr(name); a != nil {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// fieldReader reads typed attribute values and records the ones it could
// not parse as warnings instead of failing the document
type fieldReader struct {
	warnings []string
}

func (f *fieldReader) amount(el *etree.Element, aliases ...string) decimal.Decimal {
	raw := attr(el, aliases...)
	d, err := moneyutil.ParseAmount(raw)
	if err != nil {
		f.warnings = append(f.warnings, fmt.Sprintf("field %s: invalid amount %q, using 0", aliases[0], raw))
		return moneyutil.Zero
	}
	// SAT amounts are non-negative
	if !moneyutil.IsNonNegative(d) {
		f.warnings = append(f.warnings, fmt.Sprintf("field %s: negative amount %q, using 0", aliases[0], raw))
		return moneyutil.Zero
	}
	return d
}

func (f *fieldReader) month(el *etree.Element, aliases ...string) int {
	raw := attr(el, aliases...)
	if raw == "" {
		return 0
	}
	m, err := strconv.Atoi(raw)
	if err != nil || m < 1 || m > 12 {
		f.warnings = append(f.warnings, fmt.Sprintf("field %s: invalid month %q", aliases[0], raw))
		return 0
	}
	return m
}

func (f *fieldReader) year(el *etree.Element, aliases ...string) int {
	raw := attr(el, aliases...)
	if raw == "" {
		return 0
	}
	y, err := strconv.Atoi(raw)
	if err != nil {
		f.warnings = append(f.warnings, fmt.Sprintf("field %s: invalid year %q", aliases[0], raw))
		return 0
	}
	return y
}

func (f *fieldReader) optionalDate(field, raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := parseDate(raw)
	if err != nil {
		f.warnings = append(f.warnings, fmt.Sprintf("field %s: %v", field, err))
		return nil
	}
	return &t
}

// parseDate accepts the ISO-8601 shapes SAT emitters produce
func parseDate(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05",
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse date: %s", s)
}
