// Package repository implements all database queries for the workshop
// registration system. It uses pgx directly (no ORM).
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

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotWaitlisted is returned when promoting a registration that already holds
// confirmed seats.
var ErrNotWaitlisted = errors.New("registration is not on the waitlist")

// ErrNoSpotsAvailable is returned when promoting into a full course.
var ErrNoSpotsAvailable = errors.New("course has no free spots")

// ErrCourseInactive is returned when booking a course that is not published.
var ErrCourseInactive = errors.New("course is not open for registration")

// confirmedCountSQL sums the participants holding confirmed seats.
const confirmedCountSQL = `SELECT COALESCE(SUM(num_participants), 0)
	FROM course_registrations
	WHERE course_id = $1 AND NOT is_waitlist`

const courseColumns = `c.id, c.title, c.description, c.date, c.time_info, c.location,
	c.location_url, c.max_participants, c.is_active, c.created_at, c.updated_at`

// CourseRepository handles persistence for courses.
type CourseRepository struct {
	db *pgxpool.Pool
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create inserts a new course and returns it with a generated UUID.
func (r *CourseRepository) Create(ctx context.Context, req model.CreateCourseRequest) (*model.Course, error) {
	now := time.Now().UTC()
	course := &model.Course{
		ID:              uuid.New().String(),
		Title:           req.Title,
		Description:     req.Description,
		Date:            req.Date,
		TimeInfo:        req.TimeInfo,
		Location:        req.Location,
		LocationURL:     req.LocationURL,
		MaxParticipants: req.MaxParticipants,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO courses (id, title, description, date, time_info, location, location_url,
		                      max_participants, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		course.ID, course.Title, course.Description, course.Date, course.TimeInfo, course.Location,
		course.LocationURL, course.MaxParticipants, course.IsActive, course.CreatedAt, course.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert course: %w", err)
	}
	return course, nil
}

// List returns all courses, most recent course date first, with their
// confirmed registration counts.
func (r *CourseRepository) List(ctx context.Context) ([]model.Course, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+courseColumns+`,
		        COALESCE((SELECT SUM(r.num_participants) FROM course_registrations r
		                  WHERE r.course_id = c.id AND NOT r.is_waitlist), 0)
		 FROM courses c
		 ORDER BY c.date DESC NULLS LAST, c.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := scanCourse(rows, &c, &c.RegistrationCount); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// GetByID returns a single course with its confirmed count, or ErrNotFound.
func (r *CourseRepository) GetByID(ctx context.Context, id string) (*model.Course, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var c model.Course
	err := scanCourse(r.db.QueryRow(ctx,
		`SELECT `+courseColumns+`,
		        COALESCE((SELECT SUM(r.num_participants) FROM course_registrations r
		                  WHERE r.course_id = c.id AND NOT r.is_waitlist), 0)
		 FROM courses c WHERE c.id = $1`,
		id,
	), &c, &c.RegistrationCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &c, nil
}

// lockCourse takes a row lock on the course and loads its confirmed count.
// Every read-then-write on a course's capacity goes through here, so two
// registrations for the same course are serialised until commit.
func lockCourse(ctx context.Context, tx pgx.Tx, courseID string) (*model.Course, error) {
	if !validID(courseID) {
		return nil, ErrNotFound
	}
	var c model.Course
	err := scanCourse(tx.QueryRow(ctx,
		`SELECT `+courseColumns+` FROM courses c WHERE c.id = $1 FOR UPDATE`,
		courseID,
	), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock course row: %w", err)
	}

	if err := tx.QueryRow(ctx, confirmedCountSQL, courseID).Scan(&c.RegistrationCount); err != nil {
		return nil, fmt.Errorf("count confirmed participants: %w", err)
	}
	return &c, nil
}

// validID reports whether id can name a row. Malformed ids are reported as
// ErrNotFound instead of surfacing a database cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func scanCourse(row pgx.Row, c *model.Course, extra ...any) error {
	dest := []any{
		&c.ID, &c.Title, &c.Description, &c.Date, &c.TimeInfo, &c.Location,
		&c.LocationURL, &c.MaxParticipants, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}
