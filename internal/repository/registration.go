package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/allocation"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
)

const registrationColumns = `id, course_id, first_name, last_name, phone, email,
	num_participants, is_waitlist, confirmation_sent, registered_at`

// Booking is the persisted outcome of one registration request. Confirmed and
// Waitlisted are nil when their bucket is empty.
type Booking struct {
	Course     model.Course
	Result     allocation.Result
	Confirmed  *model.Registration
	Waitlisted *model.Registration
}

// Primary returns the row notifications are addressed from: the confirmed row
// when there is one, else the waitlisted row.
func (b *Booking) Primary() *model.Registration {
	if b.Confirmed != nil {
		return b.Confirmed
	}
	return b.Waitlisted
}

// PromotionOutcome is the persisted outcome of a waitlist promotion.
// Remaining is set only when the waitlisted row was split.
type PromotionOutcome struct {
	Course    model.Course
	Promoted  model.Registration
	Remaining *model.Registration
}

// RegistrationRepository handles persistence for registrations.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Book allocates a registration request against the course capacity and
// persists one row per non-empty bucket, all inside one transaction. Courses
// that are not active return ErrCourseInactive; the flag is read under the
// course lock, so a concurrent deactivation is either seen or waits for us.
//
// The capacity read and the inserts must not interleave with another booking
// for the same course: two requests reading the same confirmed count would
// both be granted the last seats and oversubscribe the course. The course row
// is therefore locked with SELECT ... FOR UPDATE before the count is read, and
// any concurrent Book or Promote on that course blocks until we commit.
func (r *RegistrationRepository) Book(ctx context.Context, courseID string, p model.Participant, requested int) (*Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	course, err := lockCourse(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsActive {
		return nil, ErrCourseInactive
	}

	booking := &Booking{Result: allocation.Allocate(course.SpotsAvailable(), requested)}
	now := time.Now().UTC()

	if n := booking.Result.Confirmed; n > 0 {
		booking.Confirmed = newRegistration(courseID, p, n, false, now)
		if err := insertRegistration(ctx, tx, booking.Confirmed); err != nil {
			return nil, err
		}
	}
	if n := booking.Result.Waitlisted; n > 0 {
		booking.Waitlisted = newRegistration(courseID, p, n, true, now)
		if err := insertRegistration(ctx, tx, booking.Waitlisted); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	course.RegistrationCount += booking.Result.Confirmed
	booking.Course = *course
	return booking, nil
}

// Promote moves a waitlisted registration into confirmed seats as far as the
// course capacity allows. A whole registration is flipped in place; a partial
// one keeps its remainder on the waitlist and the promoted participants get a
// new confirmed row with the same identity.
func (r *RegistrationRepository) Promote(ctx context.Context, registrationID string) (*PromotionOutcome, error) {
	if !validID(registrationID) {
		return nil, ErrNotFound
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	reg, err := scanRegistration(tx.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM course_registrations WHERE id = $1`,
		registrationID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}

	course, err := lockCourse(ctx, tx, reg.CourseID)
	if err != nil {
		return nil, err
	}

	// Re-read under the course lock; a concurrent promotion may have won.
	if err := tx.QueryRow(ctx,
		`SELECT num_participants, is_waitlist FROM course_registrations WHERE id = $1 FOR UPDATE`,
		registrationID,
	).Scan(&reg.NumParticipants, &reg.IsWaitlist); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock registration row: %w", err)
	}
	if !reg.IsWaitlist {
		return nil, ErrNotWaitlisted
	}

	plan := allocation.PlanPromotion(course.SpotsAvailable(), reg.NumParticipants)
	if plan.Moved == 0 {
		return nil, ErrNoSpotsAvailable
	}

	out := &PromotionOutcome{}
	if plan.Split() {
		if _, err := tx.Exec(ctx,
			`UPDATE course_registrations SET num_participants = $2 WHERE id = $1`,
			reg.ID, plan.Remaining,
		); err != nil {
			return nil, fmt.Errorf("shrink waitlisted registration: %w", err)
		}
		remaining := *reg
		remaining.NumParticipants = plan.Remaining
		out.Remaining = &remaining

		promoted := newRegistration(reg.CourseID, reg.Participant, plan.Moved, false, time.Now().UTC())
		if err := insertRegistration(ctx, tx, promoted); err != nil {
			return nil, err
		}
		out.Promoted = *promoted
	} else {
		if _, err := tx.Exec(ctx,
			`UPDATE course_registrations SET is_waitlist = FALSE WHERE id = $1`,
			reg.ID,
		); err != nil {
			return nil, fmt.Errorf("confirm registration: %w", err)
		}
		reg.IsWaitlist = false
		out.Promoted = *reg
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	course.RegistrationCount += plan.Moved
	out.Course = *course
	return out, nil
}

// Delete removes a registration and cancels its pending scheduled messages in
// the same transaction.
func (r *RegistrationRepository) Delete(ctx context.Context, registrationID string) error {
	if !validID(registrationID) {
		return ErrNotFound
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`UPDATE scheduled_messages SET status = 'cancelled'
		 WHERE registration_id = $1 AND status = 'pending'`,
		registrationID,
	); err != nil {
		return fmt.Errorf("cancel scheduled messages: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM course_registrations WHERE id = $1`, registrationID)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID returns a single registration or ErrNotFound.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	reg, err := scanRegistration(r.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM course_registrations WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// ListByCourse returns all registrations for a given course, oldest first.
func (r *RegistrationRepository) ListByCourse(ctx context.Context, courseID string) ([]model.Registration, error) {
	if !validID(courseID) {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM course_registrations
		 WHERE course_id = $1
		 ORDER BY registered_at ASC, is_waitlist ASC`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// MarkConfirmationSent records that the participant received a message.
func (r *RegistrationRepository) MarkConfirmationSent(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE course_registrations SET confirmation_sent = TRUE WHERE id = $1`, id,
	); err != nil {
		return fmt.Errorf("mark confirmation sent: %w", err)
	}
	return nil
}

func newRegistration(courseID string, p model.Participant, n int, waitlist bool, at time.Time) *model.Registration {
	return &model.Registration{
		ID:              uuid.New().String(),
		CourseID:        courseID,
		Participant:     p,
		NumParticipants: n,
		IsWaitlist:      waitlist,
		RegisteredAt:    at,
	}
}

func insertRegistration(ctx context.Context, tx pgx.Tx, reg *model.Registration) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO course_registrations (id, course_id, first_name, last_name, phone, email,
		                                   num_participants, is_waitlist, confirmation_sent, registered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		reg.ID, reg.CourseID, reg.FirstName, reg.LastName, reg.Phone, reg.Email,
		reg.NumParticipants, reg.IsWaitlist, reg.ConfirmationSent, reg.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var reg model.Registration
	err := row.Scan(
		&reg.ID, &reg.CourseID, &reg.FirstName, &reg.LastName, &reg.Phone, &reg.Email,
		&reg.NumParticipants, &reg.IsWaitlist, &reg.ConfirmationSent, &reg.RegisteredAt,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}
