package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
)

const templateColumns = `id, message_type, trigger, subject, body, is_active, updated_at`

// TemplateRepository handles persistence for message templates.
type TemplateRepository struct {
	db *pgxpool.Pool
}

// NewTemplateRepository constructs a TemplateRepository.
func NewTemplateRepository(db *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// GetActive returns the active template for (channel, trigger), or ErrNotFound
// when it is missing or switched off.
func (r *TemplateRepository) GetActive(ctx context.Context, channel model.Channel, trigger model.Trigger) (*model.MessageTemplate, error) {
	tpl, err := scanTemplate(r.db.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM message_templates
		 WHERE message_type = $1 AND trigger = $2 AND is_active`,
		channel, trigger,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return tpl, nil
}

// List returns every template ordered by channel and trigger.
func (r *TemplateRepository) List(ctx context.Context) ([]model.MessageTemplate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+templateColumns+` FROM message_templates ORDER BY message_type, trigger`,
	)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var tpls []model.MessageTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		tpls = append(tpls, *tpl)
	}
	return tpls, rows.Err()
}

// Upsert creates or replaces the template for (channel, trigger).
func (r *TemplateRepository) Upsert(ctx context.Context, tpl *model.MessageTemplate) error {
	tpl.UpdatedAt = time.Now().UTC()
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO message_templates (id, message_type, trigger, subject, body, is_active, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (message_type, trigger) DO UPDATE
		 SET subject = EXCLUDED.subject, body = EXCLUDED.body,
		     is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		tpl.ID, tpl.Channel, tpl.Trigger, tpl.Subject, tpl.Body, tpl.IsActive, tpl.UpdatedAt,
	).Scan(&tpl.ID)
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	return nil
}

// InsertIfMissing stores tpl unless a template for its (channel, trigger)
// already exists. Existing, possibly edited, templates are left alone.
func (r *TemplateRepository) InsertIfMissing(ctx context.Context, tpl *model.MessageTemplate) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO message_templates (id, message_type, trigger, subject, body, is_active, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (message_type, trigger) DO NOTHING`,
		uuid.New().String(), tpl.Channel, tpl.Trigger, tpl.Subject, tpl.Body, tpl.IsActive, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert template: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanTemplate(row pgx.Row) (*model.MessageTemplate, error) {
	var tpl model.MessageTemplate
	if err := row.Scan(&tpl.ID, &tpl.Channel, &tpl.Trigger, &tpl.Subject, &tpl.Body, &tpl.IsActive, &tpl.UpdatedAt); err != nil {
		return nil, err
	}
	return &tpl, nil
}
