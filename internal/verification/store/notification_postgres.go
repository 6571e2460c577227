package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"carecheck/internal/verification/ports"
	id "carecheck/pkg/domain"
)

// PostgresNotificationLog persists sent notifications.
type PostgresNotificationLog struct {
	db *sql.DB
}

func NewPostgresNotificationLog(db *sql.DB) *PostgresNotificationLog {
	return &PostgresNotificationLog{db: db}
}

func (l *PostgresNotificationLog) LastSent(ctx context.Context, candidateID id.CandidateID, typ ports.NotificationType) (*time.Time, error) {
	var sent sql.NullTime
	err := l.db.QueryRowContext(ctx, `
		SELECT MAX(sent_at) FROM notification_log
		WHERE candidate_id = $1 AND notification_type = $2
	`, uuid.UUID(candidateID), string(typ)).Scan(&sent)
	if err != nil {
		return nil, fmt.Errorf("query last notification: %w", err)
	}
	if !sent.Valid {
		return nil, nil
	}
	return &sent.Time, nil
}

func (l *PostgresNotificationLog) Append(ctx context.Context, entry ports.NotificationEntry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO notification_log (id, candidate_id, notification_type, sent_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.New(), uuid.UUID(entry.CandidateID), string(entry.Type), entry.SentAt)
	if err != nil {
		return fmt.Errorf("append notification log: %w", err)
	}
	return nil
}
