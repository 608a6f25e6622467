package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
)

// MessageLogRepository appends and reads the send log. Rows are never updated
// or deleted.
type MessageLogRepository struct {
	db *pgxpool.Pool
}

// NewMessageLogRepository constructs a MessageLogRepository.
func NewMessageLogRepository(db *pgxpool.Pool) *MessageLogRepository {
	return &MessageLogRepository{db: db}
}

// Create appends a log entry.
func (r *MessageLogRepository) Create(ctx context.Context, l *model.MessageLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO message_logs (id, message_type, trigger, recipient, subject, body, status,
		                           external_id, error_message, registration_id, course_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		l.ID, l.Channel, l.Trigger, l.Recipient, l.Subject, l.Body, l.Status,
		l.ExternalID, l.ErrorMessage, l.RegistrationID, l.CourseID, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message log: %w", err)
	}
	return nil
}

// ListRecent returns the newest log entries first.
func (r *MessageLogRepository) ListRecent(ctx context.Context, limit int) ([]model.MessageLog, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, message_type, trigger, recipient, subject, body, status,
		        external_id, error_message, registration_id, course_id, created_at
		 FROM message_logs
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list message logs: %w", err)
	}
	defer rows.Close()

	var logs []model.MessageLog
	for rows.Next() {
		var l model.MessageLog
		if err := rows.Scan(&l.ID, &l.Channel, &l.Trigger, &l.Recipient, &l.Subject, &l.Body, &l.Status,
			&l.ExternalID, &l.ErrorMessage, &l.RegistrationID, &l.CourseID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
