// Package ingest reads already-normalized award, contract, patent, and
// tech-label feeds from local CSV and XLSX files. The package performs no
// network I/O; upstream collection jobs produce the files it consumes.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// sniffLen is how much of the stream is inspected to decide between UTF-8
// and Windows-1252.
const sniffLen = 4096

// readRows loads every row of a tabular file, picking the parser by
// extension: .xlsx via the spreadsheet reader, everything else as CSV.
func readRows(path string) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readXLSXRows(path)
	}
	return readCSVRows(path)
}

func readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open file")
	}
	defer file.Close()

	return parseCSV(file)
}

// parseCSV reads all rows through the text decoder. Malformed rows are
// skipped rather than aborting the file; federal bulk exports routinely
// contain a handful of broken lines.
func parseCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(decodeText(r))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}
		rows = append(rows, record)
	}

	return rows, nil
}

// readXLSXRows returns the first sheet of an XLSX workbook as string rows.
func readXLSXRows(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("ingest: %s has no sheets", filepath.Base(path))
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}

	return rows, nil
}

// decodeText wraps r so the CSV parser always sees UTF-8: a UTF-8 byte order
// mark is dropped, and when the leading chunk is not valid UTF-8 the stream
// is decoded as Windows-1252, the encoding older federal exports ship in.
func decodeText(r io.Reader) io.Reader {
	br := bufio.NewReaderSize(r, sniffLen)

	if peek, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(peek, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
		return br
	}

	peek, _ := br.Peek(sniffLen)
	if validUTF8Prefix(peek) {
		return br
	}

	return transform.NewReader(br, charmap.Windows1252.NewDecoder())
}

// validUTF8Prefix reports whether b is valid UTF-8, tolerating a multi-byte
// rune split at the end of the sniff window.
func validUTF8Prefix(b []byte) bool {
	for trim := 0; trim < utf8.UTFMax; trim++ {
		if trim > len(b) {
			return false
		}
		if utf8.Valid(b[:len(b)-trim]) {
			return true
		}
	}
	return false
}
