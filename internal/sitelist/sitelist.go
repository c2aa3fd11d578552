// Package sitelist reads the list of sites to harvest from a spreadsheet.
// Each row holds a display name and a base URL:
//
//	Stack Overflow | https://stackoverflow.com/
//	Law            | https://law.stackexchange.com/
package sitelist

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Entry is one row of the site list.
type Entry struct {
	Name string
	URL  string
}

// Load reads entries from an .xlsx workbook (first sheet) or a .csv file.
// Rows without a URL in the second column, such as headers, are skipped.
func Load(path string) ([]Entry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return loadWorkbook(path)
	case ".csv":
		return loadCSV(path)
	default:
		return nil, fmt.Errorf("unsupported site list format %q", filepath.Ext(path))
	}
}

func loadWorkbook(path string) ([]Entry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return fromRows(rows), nil
}

func loadCSV(path string) ([]Entry, error) {
	f, err := os.Open(path) // #nosec G304 -- user-supplied input file
	if err != nil {
		return nil, fmt.Errorf("open site list %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(stripBOM(f))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read site list %s: %w", path, err)
		}
		rows = append(rows, record)
	}
	return fromRows(rows), nil
}

func fromRows(rows [][]string) []Entry {
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		name := strings.TrimSpace(row[0])
		url := strings.TrimSpace(row[1])
		if !strings.Contains(url, "://") {
			continue
		}
		entries = append(entries, Entry{Name: name, URL: url})
	}
	return entries
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	ch, _, err := br.ReadRune()
	if err != nil {
		return br
	}
	if ch != '\uFEFF' {
		_ = br.UnreadRune()
	}
	return br
}
