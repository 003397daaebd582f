package stamp

import (
	"bytes"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// TimbreNamespace is the namespace of the fiscal stamp complement
const TimbreNamespace = "http://www.sat.gob.mx/TimbreFiscalDigital"

// Stamp is the TimbreFiscalDigital complement of a CFDI or retenciones document
type Stamp struct {
	UUID           string
	RawStampedAt   string
	Version        string
	ProviderRFC    string
	CFDSeal        string
	SATCertificate string
	SATSeal        string
}

// Extractor locates the fiscal stamp inside a parsed document
type Extractor struct{}

// NewExtractor creates a new stamp extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the stamp below root. The UUID is returned in canonical
// upper-case form when it is a well-formed UUID and verbatim (trimmed)
// otherwise.
func (e *Extractor) Extract(root *etree.Element) (*Stamp, error) {
	if root == nil {
		return nil, ErrNoStamp()
	}

	el := findStampElement(root)
	if el == nil {
		return nil, ErrNoStamp()
	}

	s := &Stamp{
		UUID:           NormalizeUUID(attr(el, "UUID", "Uuid", "uuid")),
		RawStampedAt:   strings.TrimSpace(el.SelectAttrValue("FechaTimbrado", "")),
		Version:        attr(el, "Version", "version"),
		ProviderRFC:    el.SelectAttrValue("RfcProvCertif", ""),
		CFDSeal:        el.SelectAttrValue("SelloCFD", ""),
		SATCertificate: el.SelectAttrValue("NoCertificadoSAT", ""),
		SATSeal:        el.SelectAttrValue("SelloSAT", ""),
	}
	if s.UUID == "" {
		return s, ErrMissingUUID()
	}
	return s, nil
}

// findStampElement searches for the TimbreFiscalDigital element
func findStampElement(root *etree.Element) *etree.Element {
	searchPaths := []string{
		"Complemento/TimbreFiscalDigital",
		"cfdi:Complemento/tfd:TimbreFiscalDigital",
		"retenciones:Complemento/tfd:TimbreFiscalDigital",
	}

	for _, path := range searchPaths {
		if elem := root.FindElement(path); elem != nil && isStamp(elem) {
			return elem
		}
	}

	// Fallback: recursive search, some emitters place the stamp elsewhere
	return findElementRecursive(root, "TimbreFiscalDigital")
}

// findElementRecursive searches for a stamp element by local name recursively
func findElementRecursive(elem *etree.Element, localName string) *etree.Element {
	if hasLocalName(elem, localName) && isStamp(elem) {
		return elem
	}

	for _, child := range elem.ChildElements() {
		if found := findElementRecursive(child, localName); found != nil {
			return found
		}
	}

	return nil
}

// hasLocalName checks if element has the given local name (ignoring namespace prefix)
func hasLocalName(elem *etree.Element, localName string) bool {
	tag := elem.Tag
	if idx := bytes.IndexByte([]byte(tag), ':'); idx >= 0 {
		tag = tag[idx+1:]
	}
	return tag == localName
}

// isStamp accepts the stamp namespace, or no namespace at all for
// hand-edited files that dropped the declaration
func isStamp(elem *etree.Element) bool {
	ns := elem.NamespaceURI()
	return ns == "" || ns == TimbreNamespace
}

func attr(el *etree.Element, names ...string) string {
	for _, n := range names {
		if a := el.SelectAttr(n); a != nil {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// NormalizeUUID returns the canonical upper-case form of a UUID string.
// Values that are not UUIDs are only trimmed.
func NormalizeUUID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if id, err := uuid.Parse(s); err == nil {
		return strings.ToUpper(id.String())
	}
	return s
}

// CanExtract returns true if the data appears to carry a fiscal stamp
func (e *Extractor) CanExtract(data []byte) bool {
	if len(data) < 5 {
		return false
	}

	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte("<")) {
		return false
	}

	return bytes.Contains(data, []byte(":TimbreFiscalDigital")) ||
		bytes.Contains(data, []byte("<TimbreFiscalDigital"))
}
