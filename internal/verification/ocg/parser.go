// Package ocg parses the verification notifications the Office of the Children's
// Guardian emails to employers. Extraction is structural: tables are located by
// their label and header cells, so the same input always yields the same output.
package ocg

import (
	"errors"
	"io"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"carecheck/internal/verification/models"
)

// ErrMalformedEmail is returned when either required section is missing.
var ErrMalformedEmail = errors.New("ocg email is missing a required section")

// Email is the structured content of one notification.
type Email struct {
	EmployerID           string   `json:"employer_id"`
	EmployerName         string   `json:"employer_name"`
	VerificationDatetime string   `json:"verification_datetime"`
	Results              []Result `json:"results"`
}

// Result is one row of the results table.
type Result struct {
	FamilyName      string  `json:"family_name"`
	ReferenceNumber string  `json:"reference_number"`
	ResultStatus    string  `json:"result_status"`
	ExpiryDate      *string `json:"expiry_date"`
	ResultText      string  `json:"result_text"`
}

// Known result statuses after normalisation.
const (
	ResultCleared               = "CLEARED"
	ResultNotFound              = "NOT FOUND"
	ResultBarred                = "BARRED"
	ResultInterimBar            = "INTERIM BAR"
	ResultApplicationInProgress = "APPLICATION IN PROGRESS"
	ResultExpired               = "EXPIRED"
	ResultClosed                = "CLOSED"
)

// MapResultStatus maps a normalised result onto the WWCC section status.
// Anything unrecognised goes to review so it is never dropped.
func MapResultStatus(status string) models.WWCCStatus {
	switch normaliseStatus(status) {
	case ResultCleared:
		return models.WWCCOCGVerified
	case ResultNotFound:
		return models.WWCCOCGNotFound
	case ResultBarred, ResultInterimBar:
		return models.WWCCBarred
	case ResultApplicationInProgress:
		return models.WWCCApplicationPending
	case ResultExpired:
		return models.WWCCExpired
	case ResultClosed:
		return models.WWCCClosed
	default:
		return models.WWCCReview
	}
}

type parseOptions struct {
	location *time.Location
}

// Option configures Parse.
type Option func(*parseOptions)

// WithLocation sets the zone the verification timestamp is interpreted in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(o *parseOptions) {
		if loc != nil {
			o.location = loc
		}
	}
}

// Parse extracts the employer block and the results table from raw HTML.
func Parse(r io.Reader, opts ...Option) (*Email, error) {
	o := parseOptions{location: time.UTC}
	for _, opt := range opts {
		opt(&o)
	}

	tables, err := collectTables(r)
	if err != nil {
		return nil, err
	}

	email := &Email{}
	var haveEmployer, haveResults bool
	for _, t := range tables {
		if !haveEmployer && readEmployerBlock(t, email, o.location) {
			haveEmployer = true
			continue
		}
		if !haveResults {
			if results, ok := readResultsTable(t); ok {
				email.Results = results
				haveResults = true
			}
		}
	}
	if !haveEmployer || !haveResults {
		return nil, ErrMalformedEmail
	}
	return email, nil
}

// ParseString is Parse over an in-memory document.
func ParseString(doc string, opts ...Option) (*Email, error) {
	return Parse(strings.NewReader(doc), opts...)
}

const (
	labelEmployerID       = "employer id"
	labelEmployerName     = "employer name"
	labelVerificationDate = "verification date"
)

func readEmployerBlock(t table, email *Email, loc *time.Location) bool {
	found := false
	for _, row := range t {
		if len(row) < 2 {
			continue
		}
		value := row[1]
		switch label(row[0]) {
		case labelEmployerID:
			email.EmployerID = value
			found = true
		case labelEmployerName:
			email.EmployerName = value
			found = true
		case labelVerificationDate, "verification date/time", "verification date and time":
			email.VerificationDatetime = normaliseDatetime(value, loc)
		}
	}
	return found
}

type resultColumns struct {
	family, reference, result, expiry, text int
}

func readResultsTable(t table) ([]Result, bool) {
	for i, row := range t {
		cols, ok := resultHeader(row)
		if !ok {
			continue
		}
		var results []Result
		for _, data := range t[i+1:] {
			if isBlankRow(data) {
				continue
			}
			raw := cell(data, cols.result)
			res := Result{
				FamilyName:      cell(data, cols.family),
				ReferenceNumber: strings.ToUpper(cell(data, cols.reference)),
				ResultStatus:    normaliseStatus(raw),
				ExpiryDate:      NormaliseDate(cell(data, cols.expiry)),
				ResultText:      raw,
			}
			if cols.text >= 0 {
				res.ResultText = cell(data, cols.text)
			}
			results = append(results, res)
		}
		// A header with no rows is as malformed as no table at all.
		return results, len(results) > 0
	}
	return nil, false
}

func resultHeader(row []string) (resultColumns, bool) {
	cols := resultColumns{family: -1, reference: -1, result: -1, expiry: -1, text: -1}
	for i, c := range row {
		switch label(c) {
		case "family name", "surname":
			cols.family = i
		case "reference number", "wwcc number", "wwc number":
			cols.reference = i
		case "result", "outcome":
			cols.result = i
		case "expiry date", "expiry":
			cols.expiry = i
		case "result text", "details", "comments":
			cols.text = i
		}
	}
	ok := cols.family >= 0 && cols.reference >= 0 && cols.result >= 0
	return cols, ok
}

// NormaliseDate converts DD/MM/YYYY to YYYY-MM-DD. Unparsable input yields nil.
func NormaliseDate(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse("2/1/2006", s)
	if err != nil {
		return nil
	}
	out := t.Format(time.DateOnly)
	return &out
}

func normaliseDatetime(s string, loc *time.Location) string {
	for _, layout := range []string{"2/1/2006 15:04:05", "2/1/2006 15:04", "2/1/2006"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Format(time.RFC3339)
		}
	}
	return s
}

func normaliseStatus(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

func label(s string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ":")
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

// table is a list of rows of whitespace-collapsed cell text.
type table [][]string

type openTable struct {
	rows   table
	row    []string
	cell   strings.Builder
	inCell bool
}

// collectTables walks the token stream once. Nested tables are tracked on a stack
// so layout tables do not swallow the cells of the tables inside them.
func collectTables(r io.Reader) ([]table, error) {
	z := html.NewTokenizer(r)
	var stack []*openTable
	var done []table

	top := func() *openTable {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}
	endCell := func(t *openTable) {
		if t.inCell {
			t.row = append(t.row, collapse(t.cell.String()))
			t.cell.Reset()
			t.inCell = false
		}
	}
	endRow := func(t *openTable) {
		endCell(t)
		if t.row != nil {
			t.rows = append(t.rows, t.row)
			t.row = nil
		}
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return done, nil
			}
			return nil, z.Err()
		case html.TextToken:
			if t := top(); t != nil && t.inCell {
				t.cell.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Table:
				stack = append(stack, &openTable{})
			case atom.Tr:
				if t := top(); t != nil {
					endRow(t)
				}
			case atom.Td, atom.Th:
				if t := top(); t != nil {
					endCell(t)
					t.inCell = true
				}
			case atom.Br, atom.P, atom.Div:
				if t := top(); t != nil && t.inCell {
					t.cell.WriteByte(' ')
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Table:
				if t := top(); t != nil {
					endRow(t)
					done = append(done, t.rows)
					stack = stack[:len(stack)-1]
				}
			case atom.Tr:
				if t := top(); t != nil {
					endRow(t)
				}
			case atom.Td, atom.Th:
				if t := top(); t != nil {
					endCell(t)
				}
			}
		}
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
