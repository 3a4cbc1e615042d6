// Package csvtable loads headered CSV files into rows addressable by column
// name, with the lenient numeric parsing the civic data portals need.
package csvtable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
)

// Table is a parsed CSV with a header row. Header names are kept verbatim,
// including leading or trailing spaces.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// Read parses r after discarding the first skip records.
func Read(r io.Reader, skip int) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	for i := 0; i < skip; i++ {
		if _, err := cr.Read(); err != nil {
			return nil, fmt.Errorf("skip row %d: %w", i+1, err)
		}
	}

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &Table{Header: header, index: make(map[string]int, len(header))}
	for i, h := range header {
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+skip+2, err)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// Open reads the CSV file at path.
func Open(path string, skip int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := Read(f, skip)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return t, nil
}

// Columns resolves names to column indexes. A missing name is reported as
// domain.ErrMissingColumn.
func (t *Table) Columns(names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		j, ok := t.index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrMissingColumn, name)
		}
		idx[i] = j
	}
	return idx, nil
}

// Field returns row[i] trimmed, or "" if the row is short.
func Field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Float parses a numeric cell. Blank cells and NaN are null; thousands
// separators and a leading "$" are tolerated.
func Float(raw string) (*float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "na") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("parse number %q: %w", raw, err)
	}
	if math.IsNaN(v) {
		return nil, nil
	}
	return &v, nil
}

// Int parses an integer cell. Float text such as "17031010100.0" is
// accepted. Blank cells report ok=false.
func Int(raw string) (v int64, ok bool, err error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse integer %q: %w", raw, err)
	}
	if math.IsNaN(f) {
		return 0, false, nil
	}
	return int64(f), true, nil
}
