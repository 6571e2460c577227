package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormaliseName(t *testing.T) {
	tests := map[string]string{
		"  José   María ":  "jose maria",
		"O'Brien":          "obrien",
		"Nguyen-Tran":      "nguyen tran",
		"ZOË":              "zoe",
		"St. John-Smythe":  "st john smythe",
	}
	for in, want := range tests {
		assert.Equal(t, want, normaliseName(in), in)
	}
}

func TestSurnamesMatch(t *testing.T) {
	assert.True(t, surnamesMatch("Van Der Berg", "VANDERBERG"))
	assert.True(t, surnamesMatch("Nguyễn", "nguyen"))
	assert.True(t, surnamesMatch("O'Brien", "OBRIEN"))
	assert.False(t, surnamesMatch("Nguyen", "Tran"))
	assert.False(t, surnamesMatch("", ""))
}

func TestGivenNamesMatch(t *testing.T) {
	assert.True(t, givenNamesMatch("Linh Thi", "LINH"))
	assert.True(t, givenNamesMatch("Anne-Marie", "anne marie"))
	assert.False(t, givenNamesMatch("Linh", "Lan"))
	assert.False(t, givenNamesMatch("", "Linh"))
}

func TestDatesMatch(t *testing.T) {
	assert.True(t, datesMatch("1994-05-02", "02/05/1994"))
	assert.True(t, datesMatch("2/5/1994", "2 May 1994"))
	assert.True(t, datesMatch("02 May 1994", "1994-05-02"))
	assert.False(t, datesMatch("1994-05-02", "05/02/1994"))
	assert.False(t, datesMatch("not a date", "1994-05-02"))
}

func TestComparePeople(t *testing.T) {
	identity := person{Surname: "Nguyen", GivenNames: "Linh Thi", DateOfBirth: "1994-05-02"}

	assert.Empty(t, comparePeople("identity", identity, "wwcc",
		person{Surname: "NGUYEN", GivenNames: "Linh", DateOfBirth: "2 May 1994"}))
	assert.Empty(t, comparePeople("identity", identity, "wwcc",
		person{Surname: "Nguyen", DateOfBirth: "02/05/1994"}), "missing given names are not compared")

	issues := comparePeople("identity", identity, "wwcc",
		person{Surname: "Tran", GivenNames: "Linh", DateOfBirth: "1994-05-03"})
	assert.Equal(t, []string{
		"surname mismatch between identity and wwcc",
		"date of birth mismatch between identity and wwcc",
	}, issues)
}
