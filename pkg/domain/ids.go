// Package domain holds typed identifiers shared across modules. Each id wraps a
// uuid.UUID so the compiler rejects passing a candidate id where a verification
// id is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "carecheck/pkg/domain-errors"
)

type (
	// UserID identifies an authenticated principal (candidate or admin).
	UserID uuid.UUID
	// CandidateID identifies the childcare-worker candidate a record belongs to.
	CandidateID uuid.UUID
	// VerificationID identifies one verification record.
	VerificationID uuid.UUID
)

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id CandidateID) String() string    { return uuid.UUID(id).String() }
func (id VerificationID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id CandidateID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id VerificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewVerificationID returns a random verification id.
func NewVerificationID() VerificationID {
	return VerificationID(uuid.New())
}

// ParseUserID parses an id at a trust boundary.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseCandidateID parses an id at a trust boundary.
func ParseCandidateID(s string) (CandidateID, error) {
	u, err := parseUUID(s, "candidate id")
	return CandidateID(u), err
}

// ParseVerificationID parses an id at a trust boundary.
func ParseVerificationID(s string) (VerificationID, error) {
	u, err := parseUUID(s, "verification id")
	return VerificationID(u), err
}

// CandidateFromUser maps an authenticated candidate principal onto its candidate id.
// Candidates authenticate as themselves, so the ids share a value.
func CandidateFromUser(id UserID) CandidateID {
	return CandidateID(id)
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
