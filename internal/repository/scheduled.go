package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
)

// ScheduledMessageRepository handles persistence for queued messages.
type ScheduledMessageRepository struct {
	db *pgxpool.Pool
}

// NewScheduledMessageRepository constructs a ScheduledMessageRepository.
func NewScheduledMessageRepository(db *pgxpool.Pool) *ScheduledMessageRepository {
	return &ScheduledMessageRepository{db: db}
}

// CreatePending inserts a pending message. It returns false without error when
// a pending message for the same registration and trigger already exists.
func (r *ScheduledMessageRepository) CreatePending(ctx context.Context, m *model.ScheduledMessage) (bool, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.Status = model.SchedulePending
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	tag, err := r.db.Exec(ctx,
		`INSERT INTO scheduled_messages (id, message_type, trigger, recipient, registration_id,
		                                 course_id, scheduled_for, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (registration_id, trigger) WHERE status = 'pending' DO NOTHING`,
		m.ID, m.Channel, m.Trigger, m.Recipient, m.RegistrationID,
		m.CourseID, m.ScheduledFor, m.Status, m.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert scheduled message: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// HasPending reports whether a pending message exists for the registration
// and trigger.
func (r *ScheduledMessageRepository) HasPending(ctx context.Context, registrationID string, trigger model.Trigger) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM scheduled_messages
		                WHERE registration_id = $1 AND trigger = $2 AND status = 'pending')`,
		registrationID, trigger,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending message: %w", err)
	}
	return exists, nil
}

// ListDue returns pending messages scheduled at or before now, oldest first.
func (r *ScheduledMessageRepository) ListDue(ctx context.Context, now time.Time) ([]model.ScheduledMessage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, message_type, trigger, recipient, registration_id, course_id,
		        scheduled_for, status, sent_at, error_message, created_at
		 FROM scheduled_messages
		 WHERE status = 'pending' AND scheduled_for <= $1
		 ORDER BY scheduled_for ASC`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("list due messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.ScheduledMessage
	for rows.Next() {
		var m model.ScheduledMessage
		if err := rows.Scan(&m.ID, &m.Channel, &m.Trigger, &m.Recipient, &m.RegistrationID, &m.CourseID,
			&m.ScheduledFor, &m.Status, &m.SentAt, &m.ErrorMessage, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan scheduled message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Finish moves a pending message to a terminal status. Rows that already left
// pending are not touched, so a row is finished at most once.
func (r *ScheduledMessageRepository) Finish(ctx context.Context, id string, status model.ScheduleStatus, sentAt *time.Time, errMsg string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE scheduled_messages SET status = $2, sent_at = $3, error_message = $4
		 WHERE id = $1 AND status = 'pending'`,
		id, status, sentAt, errMsg,
	)
	if err != nil {
		return fmt.Errorf("finish scheduled message: %w", err)
	}
	return nil
}

// CancelPending cancels all pending messages of a registration.
func (r *ScheduledMessageRepository) CancelPending(ctx context.Context, registrationID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE scheduled_messages SET status = 'cancelled'
		 WHERE registration_id = $1 AND status = 'pending'`,
		registrationID,
	)
	if err != nil {
		return 0, fmt.Errorf("cancel scheduled messages: %w", err)
	}
	return tag.RowsAffected(), nil
}
