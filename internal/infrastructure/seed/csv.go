package seed

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var (
	// ErrEmptyFile is returned for a CSV with no content
	ErrEmptyFile = errors.New("CSV file is empty")

	// ErrInvalidEncoding is returned when the CSV is not UTF-8
	ErrInvalidEncoding = errors.New("CSV file is not valid UTF-8")

	// ErrMissingHeader is returned when a required column is absent
	ErrMissingHeader = errors.New("CSV header is missing a required column")
)

// row is one data row keyed by normalised header name
type row struct {
	line   int
	fields map[string]string
}

func (r row) get(col string) string { return r.fields[col] }

func (r row) empty() bool {
	for _, v := range r.fields {
		if v != "" {
			return false
		}
	}
	return true
}

// csvReader reads header-addressed rows from a UTF-8 CSV, stripping a
// leading byte order mark
type csvReader struct {
	reader  *csv.Reader
	headers []string
	line    int
}

func newCSVReader(r io.Reader) (*csvReader, error) {
	buf := bufio.NewReader(r)

	if bom, err := buf.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = buf.Discard(3)
	}

	head, err := buf.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(strings.TrimSpace(string(head))) == 0 {
		return nil, ErrEmptyFile
	}
	if !utf8.Valid(head) {
		return nil, ErrInvalidEncoding
	}

	cr := csv.NewReader(buf)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	record, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	headers := make([]string, len(record))
	for i, h := range record {
		headers[i] = normaliseHeader(h)
	}
	return &csvReader{reader: cr, headers: headers, line: 1}, nil
}

// require reports the first of cols missing from the header
func (c *csvReader) require(cols ...string) error {
	for _, col := range cols {
		found := false
		for _, h := range c.headers {
			if h == col {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrMissingHeader, col)
		}
	}
	return nil
}

// next returns the next non-empty row or io.EOF
func (c *csvReader) next() (row, error) {
	for {
		record, err := c.reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return row{}, io.EOF
			}
			return row{}, fmt.Errorf("failed to read CSV line %d: %w", c.line+1, err)
		}
		c.line++

		r := row{line: c.line, fields: make(map[string]string, len(c.headers))}
		for i, h := range c.headers {
			if i < len(record) {
				r.fields[h] = strings.TrimSpace(record[i])
			}
		}
		if !r.empty() {
			return r, nil
		}
	}
}

// normaliseHeader maps "Generic Name" and "generic-name" to "generic_name"
func normaliseHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
	return h
}
