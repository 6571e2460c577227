package ocg

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"carecheck/internal/verification/models"
)

type ParserSuite struct {
	suite.Suite
	fixture string
}

func TestParserSuite(t *testing.T) {
	suite.Run(t, new(ParserSuite))
}

func (s *ParserSuite) SetupSuite() {
	body, err := os.ReadFile("testdata/two_results.html")
	s.Require().NoError(err)
	s.fixture = string(body)
}

func (s *ParserSuite) TestTwoSectionFixture() {
	email, err := ParseString(s.fixture)
	s.Require().NoError(err)

	s.Equal("EMP-0042", email.EmployerID)
	s.Equal("Little Acorns Nannies Pty Ltd", email.EmployerName)
	s.Equal("2026-03-02T14:05:00Z", email.VerificationDatetime)
	s.Require().Len(email.Results, 2)

	first := email.Results[0]
	s.Equal("Nguyen", first.FamilyName)
	s.Equal("WWC1234567E", first.ReferenceNumber)
	s.Equal("CLEARED", first.ResultStatus)
	s.Require().NotNil(first.ExpiryDate)
	s.Equal("2028-10-13", *first.ExpiryDate)
	s.Equal("cleared", first.ResultText)

	second := email.Results[1]
	s.Equal("O'Brien", second.FamilyName)
	s.Equal("NOT FOUND", second.ResultStatus)
	s.Nil(second.ExpiryDate, "unparsable date becomes nil")
}

func (s *ParserSuite) TestDeterministic() {
	a, err := ParseString(s.fixture)
	s.Require().NoError(err)
	b, err := ParseString(s.fixture)
	s.Require().NoError(err)
	s.Equal(a, b)
}

func (s *ParserSuite) TestMissingSections() {
	s.Run("no sections", func() {
		_, err := ParseString("<html><body><p>Hello</p></body></html>")
		s.ErrorIs(err, ErrMalformedEmail)
	})

	s.Run("employer block only", func() {
		_, err := ParseString(`<table><tr><td>Employer ID</td><td>E1</td></tr></table>`)
		s.ErrorIs(err, ErrMalformedEmail)
	})

	s.Run("results table only", func() {
		_, err := ParseString(`<table>
			<tr><th>Family Name</th><th>Reference Number</th><th>Result</th></tr>
			<tr><td>Lee</td><td>WWC1</td><td>CLEARED</td></tr>
		</table>`)
		s.ErrorIs(err, ErrMalformedEmail)
	})

	s.Run("results header without rows", func() {
		_, err := ParseString(`
			<table><tr><td>Employer ID</td><td>E1</td></tr></table>
			<table><tr><th>Family Name</th><th>Reference Number</th><th>Result</th></tr></table>`)
		s.ErrorIs(err, ErrMalformedEmail)
	})

	s.Run("empty input", func() {
		_, err := ParseString("")
		s.ErrorIs(err, ErrMalformedEmail)
	})
}

func (s *ParserSuite) TestOptionalResultTextColumn() {
	email, err := ParseString(`
		<table><tr><td>Employer Name</td><td>Acme Care</td></tr>
		<tr><td>Verification Date</td><td>not a date</td></tr></table>
		<table>
			<tr><th>Surname</th><th>WWCC Number</th><th>Outcome</th><th>Details</th></tr>
			<tr><td>Lee</td><td>WWC9</td><td>interim   bar</td><td>Interim bar imposed</td></tr>
		</table>`)
	s.Require().NoError(err)
	s.Equal("not a date", email.VerificationDatetime, "unparsable timestamp kept raw")
	s.Require().Len(email.Results, 1)
	s.Equal("INTERIM BAR", email.Results[0].ResultStatus)
	s.Equal("Interim bar imposed", email.Results[0].ResultText)
	s.Nil(email.Results[0].ExpiryDate)
}

func TestParseWithLocation(t *testing.T) {
	sydney := time.FixedZone("AEDT", 11*3600)
	email, err := ParseString(`
		<table><tr><td>Employer ID</td><td>E1</td></tr><tr><td>Verification Date</td><td>2/3/2026 09:30:15</td></tr></table>
		<table><tr><th>Family Name</th><th>Reference Number</th><th>Result</th></tr>
		<tr><td>Lee</td><td>WWC1</td><td>CLEARED</td></tr></table>`, WithLocation(sydney))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02T09:30:15+11:00", email.VerificationDatetime)
}

func TestNormaliseDate(t *testing.T) {
	tests := []struct {
		in   string
		want *string
	}{
		{"13/10/2028", ptr("2028-10-13")},
		{"1/2/2027", ptr("2027-02-01")},
		{" 31/12/2030 ", ptr("2030-12-31")},
		{"2028-10-13", nil},
		{"31/02/2028", nil},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormaliseDate(tt.in), tt.in)
	}
}

func TestMapResultStatus(t *testing.T) {
	tests := map[string]models.WWCCStatus{
		"CLEARED":                 models.WWCCOCGVerified,
		" cleared ":               models.WWCCOCGVerified,
		"NOT FOUND":               models.WWCCOCGNotFound,
		"BARRED":                  models.WWCCBarred,
		"INTERIM BAR":             models.WWCCBarred,
		"APPLICATION IN PROGRESS": models.WWCCApplicationPending,
		"EXPIRED":                 models.WWCCExpired,
		"CLOSED":                  models.WWCCClosed,
		"UNDER APPEAL":            models.WWCCReview,
		"":                        models.WWCCReview,
	}
	for in, want := range tests {
		assert.Equal(t, want, MapResultStatus(in), in)
	}
}

func ptr(s string) *string { return &s }
