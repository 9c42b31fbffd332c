// Package csvio reads and writes participant lists as CSV.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"github.com/pscheid92/blastdesk/internal/domain"
)

var (
	ErrEmptyFile     = errors.New("csv file is empty")
	ErrMissingColumn = errors.New("csv header is missing a required column")
)

// Header is the column order written by Encode.
var Header = []string{"name", "email", "role", "department"}

// Decode parses a participant CSV. The header row is matched
// case-insensitively and must contain name and email. Rows that fail
// validation are returned as ImportErrors and do not stop decoding;
// only a malformed file or header is a hard error.
func Decode(r io.Reader) ([]domain.ImportRow, []domain.ImportError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrEmptyFile
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := columns[h]; !dup {
			columns[h] = i
		}
	}
	for _, required := range []string{"name", "email"} {
		if _, ok := columns[required]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []domain.ImportRow
	var rowErrs []domain.ImportError
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, nil, fmt.Errorf("failed to parse csv at line %d: %w", parseErr.StartLine, parseErr.Err)
			}
			return nil, nil, fmt.Errorf("failed to read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)

		if isBlank(record) {
			continue
		}

		row := domain.ImportRow{
			Line:       line,
			Name:       field(record, "name"),
			Email:      field(record, "email"),
			Role:       field(record, "role"),
			Department: field(record, "department"),
		}
		if msg := validateRow(row); msg != "" {
			rowErrs = append(rowErrs, domain.ImportError{Line: line, Message: msg})
			continue
		}
		rows = append(rows, row)
	}
	return rows, rowErrs, nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func validateRow(row domain.ImportRow) string {
	switch {
	case row.Name == "":
		return "name is required"
	case row.Email == "":
		return "email is required"
	}
	addr, err := mail.ParseAddress(row.Email)
	if err != nil || addr.Address != row.Email {
		return fmt.Sprintf("invalid email %q", row.Email)
	}
	return ""
}

// Encode writes participants in the order given, preceded by Header.
func Encode(w io.Writer, participants []domain.Participant) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, p := range participants {
		if err := cw.Write([]string{p.Name, p.Email, p.Role, p.DepartmentName}); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
