package pipeline

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"2 January 2006",
	"2 Jan 2006",
	"02 January 2006",
	"02 Jan 2006",
}

// normaliseName folds case and diacritics, turns hyphens into spaces, drops
// other punctuation and collapses whitespace.
func normaliseName(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// SameSurname reports whether two renderings of a family name refer to the
// same name once case, accents, punctuation and spacing are ignored.
func SameSurname(a, b string) bool {
	return surnamesMatch(a, b)
}

// surnamesMatch ignores spacing, so "Van Der Berg" matches "VANDERBERG" and
// "Nguyen-Tran" matches "Nguyen Tran".
func surnamesMatch(a, b string) bool {
	na := strings.ReplaceAll(normaliseName(a), " ", "")
	nb := strings.ReplaceAll(normaliseName(b), " ", "")
	return na != "" && na == nb
}

// givenNamesMatch requires the first given name to agree. Middle names are
// often dropped from one document or the other.
func givenNamesMatch(a, b string) bool {
	fa := strings.Fields(normaliseName(a))
	fb := strings.Fields(normaliseName(b))
	if len(fa) == 0 || len(fb) == 0 {
		return false
	}
	return fa[0] == fb[0]
}

// parseDate accepts the date formats documents and candidates use.
func parseDate(s string) (time.Time, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func datesMatch(a, b string) bool {
	ta, ok := parseDate(a)
	if !ok {
		return false
	}
	tb, ok := parseDate(b)
	if !ok {
		return false
	}
	return ta.Equal(tb)
}

// person is the name and date of birth one side of a comparison asserts.
type person struct {
	Surname     string
	GivenNames  string
	DateOfBirth string
}

// comparePeople returns the disagreements between a and b. Given names are only
// compared when both sides carry them.
func comparePeople(aLabel string, a person, bLabel string, b person) []string {
	var issues []string
	if !surnamesMatch(a.Surname, b.Surname) {
		issues = append(issues, "surname mismatch between "+aLabel+" and "+bLabel)
	}
	if strings.TrimSpace(a.GivenNames) != "" && strings.TrimSpace(b.GivenNames) != "" &&
		!givenNamesMatch(a.GivenNames, b.GivenNames) {
		issues = append(issues, "given name mismatch between "+aLabel+" and "+bLabel)
	}
	if !datesMatch(a.DateOfBirth, b.DateOfBirth) {
		issues = append(issues, "date of birth mismatch between "+aLabel+" and "+bLabel)
	}
	return issues
}
