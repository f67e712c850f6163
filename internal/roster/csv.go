package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mind-engage/quazian/internal/platform/validate"
)

// Invalid row reasons.
const (
	ReasonMissingFields  = "missing_fields"
	ReasonInvalidEmail   = "invalid_email"
	ReasonDuplicateEmail = "duplicate_email"
	ReasonEmailTaken     = "email_taken"
)

// ImportRow is one student line of a roster CSV.
type ImportRow struct {
	Line      int
	Name      string
	ClassName string
	Email     string
}

// ParseStudentsCSV reads a roster with name, class and email columns (any
// order, case-insensitive headers). Rows that cannot be imported are returned
// separately with a reason.
func ParseStudentsCSV(r io.Reader) ([]ImportRow, []InvalidRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	hdr, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: name, class, email", ErrMissingColumn)
		}
		return nil, nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))] = i
	}
	for _, k := range []string{"name", "class", "email"} {
		if _, ok := idx[k]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, k)
		}
	}
	field := func(rec []string, k string) string {
		i := idx[k]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var (
		rows    []ImportRow
		invalid []InvalidRow
		emails  = map[string]bool{}
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		line, _ := cr.FieldPos(0)
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		row := ImportRow{
			Line:      line,
			Name:      field(rec, "name"),
			ClassName: field(rec, "class"),
			Email:     strings.ToLower(field(rec, "email")),
		}
		switch {
		case row.Name == "" || row.ClassName == "" || row.Email == "":
			invalid = append(invalid, InvalidRow{Line: line, Email: row.Email, Reason: ReasonMissingFields})
		case validate.Validate.Var(row.Email, "email") != nil:
			invalid = append(invalid, InvalidRow{Line: line, Email: row.Email, Reason: ReasonInvalidEmail})
		case emails[row.Email]:
			invalid = append(invalid, InvalidRow{Line: line, Email: row.Email, Reason: ReasonDuplicateEmail})
		default:
			emails[row.Email] = true
			rows = append(rows, row)
		}
	}
	return rows, invalid, nil
}
