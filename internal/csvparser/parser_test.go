package csvparser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/config"
)

func settings(delim string) config.CSVSettings {
	return config.CSVSettings{Delimiter: delim, HeaderRows: 1, DataStartRow: 2, Encoding: "UTF-8"}
}

func TestParseReader_SemicolonRagged(t *testing.T) {
	in := "Nombre;Cantidad;PVP\n" +
		"Ivrea Chile\n" +
		"Naruto 1;5;12,50\n" +
		";;\n" +
		"\"Death Note 3 | Ovni Argentina\";2;\n"

	tb, err := ParseReader(strings.NewReader(in), settings(";"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Nombre", "Cantidad", "PVP"}, tb.Headers)
	require.Equal(t, 3, tb.Len(), "blank rows are skipped")
	assert.Equal(t, []string{"Ivrea Chile"}, tb.Rows[0])
	assert.Equal(t, "12,50", tb.Cell(tb.Rows[1], tb.Index("PVP")))
	assert.Equal(t, "", tb.Cell(tb.Rows[0], tb.Index("Cantidad")))
	assert.Equal(t, "Death Note 3 | Ovni Argentina", tb.Rows[2][0])
}

func TestParseReader_MultiRowHeader(t *testing.T) {
	in := "Factura,,Importe\nTitulo,Cantidad,Total\nAkira,1,10\n"
	s := config.CSVSettings{Delimiter: ",", HeaderRows: 2, DataStartRow: 3}

	tb, err := ParseReader(strings.NewReader(in), s)
	require.NoError(t, err)
	assert.Equal(t, []string{"Factura Titulo", "Cantidad", "Importe Total"}, tb.Headers)
	assert.Equal(t, 1, tb.Len())
}

func TestParseReader_EmptyHeaderNamedByPosition(t *testing.T) {
	tb, err := ParseReader(strings.NewReader("A,,C\n1,2,3\n"), settings(","))
	require.NoError(t, err)
	assert.Equal(t, "Column_2", tb.Headers[1])
}

func TestParseReader_Latin1(t *testing.T) {
	// "Perú;3" with ú encoded as 0xFA.
	raw := []byte("Pais;Cantidad\nPer\xfa;3\n")
	s := settings(";")
	s.Encoding = "ISO-8859-1"

	tb, err := ParseReader(strings.NewReader(string(raw)), s)
	require.NoError(t, err)
	assert.Equal(t, "Perú", tb.Rows[0][0])
}

func TestParseReader_StripsUTF8BOM(t *testing.T) {
	tb, err := ParseReader(strings.NewReader("\ufeffPais,Cantidad\nChile,1\n"), settings(","))
	require.NoError(t, err)
	assert.Equal(t, "Pais", tb.Headers[0])
	assert.True(t, tb.Has("Pais"))
}

func TestParseReader_Errors(t *testing.T) {
	_, err := ParseReader(strings.NewReader(""), settings(","))
	assert.Error(t, err)

	s := settings(",")
	s.Encoding = "EBCDIC"
	_, err = ParseReader(strings.NewReader("a\n1\n"), s)
	assert.Error(t, err)

	s = config.CSVSettings{Delimiter: ",", HeaderRows: 3, DataStartRow: 4}
	_, err = ParseReader(strings.NewReader("a\n1\n"), s)
	assert.Error(t, err)
}

func TestParse_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factura.csv")
	require.NoError(t, os.WriteFile(path, []byte("Nombre\tCantidad\nAkira\t2\n"), 0644))

	tb, err := Parse(path, settings("tab"))
	require.NoError(t, err)
	assert.Equal(t, path, tb.Source)
	assert.Equal(t, []string{"Akira", "2"}, tb.Rows[0])

	_, err = Parse(filepath.Join(t.TempDir(), "nope.csv"), settings(","))
	assert.Error(t, err)
}
