package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"carecheck/internal/verification/models"
	id "carecheck/pkg/domain"
	"carecheck/pkg/platform/sentinel"
	txcontext "carecheck/pkg/platform/tx"
)

const uniqueViolation = "23505"

const recordColumns = `
	id, candidate_id, contact_email, generation,
	identity_status, identity_status_at, identity_declared, identity_documents,
	identity_extracted, identity_issues, identity_reject_reason, identity_generation,
	wwcc_status, wwcc_status_at, wwcc_declared, wwcc_documents,
	wwcc_extracted, wwcc_issues, wwcc_reject_reason, wwcc_ocg, wwcc_generation,
	cross_check_status, cross_check_status_at, cross_check_issues,
	follow_up_pending, created_at, updated_at`

// PostgresStore persists verification records in PostgreSQL. Execute and Upsert
// lock the row with SELECT ... FOR UPDATE for the duration of the callback.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) conn(ctx context.Context) queryer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) FindByID(ctx context.Context, recordID id.VerificationID) (*models.Record, error) {
	rec, err := scanRecord(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM verifications WHERE id = $1`, uuid.UUID(recordID)))
	if err != nil {
		return nil, notFoundOr(err, "find verification by id")
	}
	return rec, nil
}

func (s *PostgresStore) FindByCandidate(ctx context.Context, candidateID id.CandidateID) (*models.Record, error) {
	rec, err := scanRecord(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM verifications WHERE candidate_id = $1`, uuid.UUID(candidateID)))
	if err != nil {
		return nil, notFoundOr(err, "find verification by candidate")
	}
	return rec, nil
}

// FindByWWCCNumber matches on the normalised number held in wwcc_number.
func (s *PostgresStore) FindByWWCCNumber(ctx context.Context, number string) ([]*models.Record, error) {
	want := models.NormaliseWWCCNumber(number)
	if want == "" {
		return nil, nil
	}
	return s.queryRecords(ctx, "find verifications by wwcc number",
		`SELECT `+recordColumns+` FROM verifications WHERE wwcc_number = $1 ORDER BY created_at`, want)
}

func (s *PostgresStore) ListByIdentityStatus(ctx context.Context, statuses ...models.IdentityStatus) ([]*models.Record, error) {
	values := make([]string, len(statuses))
	for i, st := range statuses {
		values[i] = string(st)
	}
	return s.queryRecords(ctx, "list verifications by identity status",
		`SELECT `+recordColumns+` FROM verifications WHERE identity_status = ANY($1) ORDER BY created_at`,
		pq.Array(values))
}

func (s *PostgresStore) ListByWWCCStatus(ctx context.Context, statuses ...models.WWCCStatus) ([]*models.Record, error) {
	values := make([]string, len(statuses))
	for i, st := range statuses {
		values[i] = string(st)
	}
	return s.queryRecords(ctx, "list verifications by wwcc status",
		`SELECT `+recordColumns+` FROM verifications WHERE wwcc_status = ANY($1) ORDER BY created_at`,
		pq.Array(values))
}

func (s *PostgresStore) ListFollowUpPending(ctx context.Context) ([]*models.Record, error) {
	return s.queryRecords(ctx, "list follow-up verifications",
		`SELECT `+recordColumns+` FROM verifications WHERE follow_up_pending ORDER BY updated_at`)
}

// Upsert locks the candidate's row if it exists and saves what build returns.
// Two concurrent first submissions race on the candidate unique key; the loser
// gets sentinel.ErrConflict.
func (s *PostgresStore) Upsert(ctx context.Context, candidateID id.CandidateID, build func(existing *models.Record) (*models.Record, error)) (*models.Record, error) {
	var result *models.Record
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanRecord(tx.QueryRowContext(ctx,
			`SELECT `+recordColumns+` FROM verifications WHERE candidate_id = $1 FOR UPDATE`, uuid.UUID(candidateID)))
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lock verification by candidate: %w", err)
		}
		rec, err := build(existing)
		if err != nil {
			return err
		}
		if err := save(ctx, tx, rec); err != nil {
			return err
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Execute locks the row, runs validate and, if it passes, mutate, then saves.
func (s *PostgresStore) Execute(ctx context.Context, recordID id.VerificationID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error) {
	var result *models.Record
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rec, err := scanRecord(tx.QueryRowContext(ctx,
			`SELECT `+recordColumns+` FROM verifications WHERE id = $1 FOR UPDATE`, uuid.UUID(recordID)))
		if err != nil {
			return notFoundOr(err, "lock verification")
		}
		if err := validate(rec); err != nil {
			return err
		}
		mutate(rec)
		if err := save(ctx, tx, rec); err != nil {
			return err
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func save(ctx context.Context, tx *sql.Tx, rec *models.Record) error {
	identityDeclared, err := json.Marshal(rec.Identity.Declared)
	if err != nil {
		return fmt.Errorf("marshal identity declared: %w", err)
	}
	identityDocs, err := json.Marshal(nonNilDocs(rec.Identity.Documents))
	if err != nil {
		return fmt.Errorf("marshal identity documents: %w", err)
	}
	identityExtracted, err := marshalNullable(rec.Identity.Extracted)
	if err != nil {
		return fmt.Errorf("marshal identity extracted: %w", err)
	}
	wwccDeclared, err := json.Marshal(rec.WWCC.Declared)
	if err != nil {
		return fmt.Errorf("marshal wwcc declared: %w", err)
	}
	wwccDocs, err := json.Marshal(nonNilDocs(rec.WWCC.Documents))
	if err != nil {
		return fmt.Errorf("marshal wwcc documents: %w", err)
	}
	wwccExtracted, err := marshalNullable(rec.WWCC.Extracted)
	if err != nil {
		return fmt.Errorf("marshal wwcc extracted: %w", err)
	}
	var ocg []byte
	if rec.WWCC.OCG != nil {
		if ocg, err = json.Marshal(rec.WWCC.OCG); err != nil {
			return fmt.Errorf("marshal ocg result: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO verifications (`+recordColumns+`, wwcc_number, legacy_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
		ON CONFLICT (id) DO UPDATE SET
			contact_email = EXCLUDED.contact_email,
			generation = EXCLUDED.generation,
			identity_status = EXCLUDED.identity_status,
			identity_status_at = EXCLUDED.identity_status_at,
			identity_declared = EXCLUDED.identity_declared,
			identity_documents = EXCLUDED.identity_documents,
			identity_extracted = EXCLUDED.identity_extracted,
			identity_issues = EXCLUDED.identity_issues,
			identity_reject_reason = EXCLUDED.identity_reject_reason,
			identity_generation = EXCLUDED.identity_generation,
			wwcc_status = EXCLUDED.wwcc_status,
			wwcc_status_at = EXCLUDED.wwcc_status_at,
			wwcc_declared = EXCLUDED.wwcc_declared,
			wwcc_documents = EXCLUDED.wwcc_documents,
			wwcc_extracted = EXCLUDED.wwcc_extracted,
			wwcc_issues = EXCLUDED.wwcc_issues,
			wwcc_reject_reason = EXCLUDED.wwcc_reject_reason,
			wwcc_ocg = EXCLUDED.wwcc_ocg,
			wwcc_generation = EXCLUDED.wwcc_generation,
			cross_check_status = EXCLUDED.cross_check_status,
			cross_check_status_at = EXCLUDED.cross_check_status_at,
			cross_check_issues = EXCLUDED.cross_check_issues,
			follow_up_pending = EXCLUDED.follow_up_pending,
			updated_at = EXCLUDED.updated_at,
			wwcc_number = EXCLUDED.wwcc_number,
			legacy_code = EXCLUDED.legacy_code
	`,
		uuid.UUID(rec.ID), uuid.UUID(rec.CandidateID), rec.ContactEmail, rec.Generation,
		string(rec.Identity.Status), nullableTime(rec.Identity.StatusAt), identityDeclared, identityDocs,
		identityExtracted, pq.Array(nonNilStrings(rec.Identity.Issues)), rec.Identity.RejectionReason, rec.Identity.Generation,
		string(rec.WWCC.Status), nullableTime(rec.WWCC.StatusAt), wwccDeclared, wwccDocs,
		wwccExtracted, pq.Array(nonNilStrings(rec.WWCC.Issues)), rec.WWCC.RejectionReason, ocg, rec.WWCC.Generation,
		string(rec.CrossCheck.Status), nullableTime(rec.CrossCheck.StatusAt), pq.Array(nonNilStrings(rec.CrossCheck.Issues)),
		rec.FollowUpPending, rec.CreatedAt, rec.UpdatedAt,
		models.NormaliseWWCCNumber(rec.WWCC.Declared.Number), rec.OverallStatus().Code(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("save verification: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("save verification: %w", err)
	}
	return nil
}

func (s *PostgresStore) queryRecords(ctx context.Context, op, query string, args ...any) ([]*models.Record, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		recordID, candidateID                   uuid.UUID
		identityStatus, wwccStatus, crossStatus string
		identityAt, wwccAt, crossAt             sql.NullTime
		identityDeclared, identityDocs          []byte
		identityExtracted                       []byte
		wwccDeclared, wwccDocs, wwccExtracted   []byte
		ocg                                     []byte
		identityIssues, wwccIssues, crossIssues pq.StringArray
		rec                                     models.Record
	)
	err := row.Scan(
		&recordID, &candidateID, &rec.ContactEmail, &rec.Generation,
		&identityStatus, &identityAt, &identityDeclared, &identityDocs,
		&identityExtracted, &identityIssues, &rec.Identity.RejectionReason, &rec.Identity.Generation,
		&wwccStatus, &wwccAt, &wwccDeclared, &wwccDocs,
		&wwccExtracted, &wwccIssues, &rec.WWCC.RejectionReason, &ocg, &rec.WWCC.Generation,
		&crossStatus, &crossAt, &crossIssues,
		&rec.FollowUpPending, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.ID = id.VerificationID(recordID)
	rec.CandidateID = id.CandidateID(candidateID)
	if rec.Identity.Status, err = models.ParseIdentityStatus(identityStatus); err != nil {
		return nil, err
	}
	if rec.WWCC.Status, err = models.ParseWWCCStatus(wwccStatus); err != nil {
		return nil, err
	}
	if rec.CrossCheck.Status, err = models.ParseCrossCheckStatus(crossStatus); err != nil {
		return nil, err
	}
	rec.Identity.StatusAt = identityAt.Time
	rec.WWCC.StatusAt = wwccAt.Time
	rec.CrossCheck.StatusAt = crossAt.Time
	rec.Identity.Issues = emptyToNil(identityIssues)
	rec.WWCC.Issues = emptyToNil(wwccIssues)
	rec.CrossCheck.Issues = emptyToNil(crossIssues)

	if err := unmarshalIfPresent(identityDeclared, &rec.Identity.Declared); err != nil {
		return nil, fmt.Errorf("unmarshal identity declared: %w", err)
	}
	if err := unmarshalIfPresent(identityDocs, &rec.Identity.Documents); err != nil {
		return nil, fmt.Errorf("unmarshal identity documents: %w", err)
	}
	if err := unmarshalIfPresent(identityExtracted, &rec.Identity.Extracted); err != nil {
		return nil, fmt.Errorf("unmarshal identity extracted: %w", err)
	}
	if err := unmarshalIfPresent(wwccDeclared, &rec.WWCC.Declared); err != nil {
		return nil, fmt.Errorf("unmarshal wwcc declared: %w", err)
	}
	if err := unmarshalIfPresent(wwccDocs, &rec.WWCC.Documents); err != nil {
		return nil, fmt.Errorf("unmarshal wwcc documents: %w", err)
	}
	if err := unmarshalIfPresent(wwccExtracted, &rec.WWCC.Extracted); err != nil {
		return nil, fmt.Errorf("unmarshal wwcc extracted: %w", err)
	}
	if len(ocg) > 0 {
		var result models.OCGResult
		if err := json.Unmarshal(ocg, &result); err != nil {
			return nil, fmt.Errorf("unmarshal ocg result: %w", err)
		}
		rec.WWCC.OCG = &result
	}
	if len(rec.Identity.Documents) == 0 {
		rec.Identity.Documents = nil
	}
	if len(rec.WWCC.Documents) == 0 {
		rec.WWCC.Documents = nil
	}
	return &rec, nil
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func unmarshalIfPresent(data []byte, dst any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func marshalNullable(fields models.ExtractedFields) ([]byte, error) {
	if fields == nil {
		return nil, nil
	}
	return json.Marshal(fields)
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilDocs(d []models.DocumentRef) []models.DocumentRef {
	if d == nil {
		return []models.DocumentRef{}
	}
	return d
}

func emptyToNil(s pq.StringArray) []string {
	if len(s) == 0 {
		return nil
	}
	return []string(s)
}
