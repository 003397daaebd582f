package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xmlparser "github.com/rezonia/cedula-processor/internal/parser/xml"
	"github.com/rezonia/cedula-processor/internal/source"
)

func TestPrintFileInfo_Stamp(t *testing.T) {
	stamped, err := os.ReadFile(filepath.Join("..", "..", "..", "internal", "parser", "xml", "testdata", "cfdi40_ingreso.xml"))
	require.NoError(t, err)
	unstamped := regexp.MustCompile(`(?s)<cfdi:Complemento>.*</cfdi:Complemento>`).ReplaceAll(stamped, nil)
	require.NotEqual(t, len(stamped), len(unstamped))

	registry := xmlparser.NewRegistry()

	var out bytes.Buffer
	printFileInfo(context.Background(), &out, registry, source.File{Path: "marzo.xml", Data: stamped})
	assert.Contains(t, out.String(), "Format: XML")
	assert.Contains(t, out.String(), "Stamp: present")
	assert.Contains(t, out.String(), "UUID: 6F1B2C3D-4E5F-4A6B-8C7D-9E0F1A2B3C4D")

	out.Reset()
	printFileInfo(context.Background(), &out, registry, source.File{Path: "borrador.xml", Data: unstamped})
	assert.Contains(t, out.String(), "Stamp: missing")
	assert.NotContains(t, out.String(), "Stamp: present")

	out.Reset()
	printFileInfo(context.Background(), &out, registry, source.File{Path: "notas.txt", Data: []byte("hola")})
	assert.NotContains(t, out.String(), "Stamp:")
}
