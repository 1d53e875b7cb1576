package repository

import (
	"context"

	"github.com/DrumilPatell/edumanage-sms/internal/model"
)

const enrollmentColumns = `e.id, e.student_id, e.course_id, e.enrollment_date, e.status, e.created_at`

const enrollmentDetailsSelect = `SELECT ` + enrollmentColumns + `, u.full_name, u.email, s.student_id, c.course_name, c.course_code
	FROM enrollments e
	JOIN students s ON s.id = e.student_id
	JOIN users u ON u.id = s.user_id
	JOIN courses c ON c.id = e.course_id`

type EnrollmentFilter struct {
	StudentID int64
	CourseID  int64
	Status    string
	Page
}

func scanEnrollment(row scanner) (model.Enrollment, error) {
	var e model.Enrollment
	err := row.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.EnrollmentDate, &e.Status, &e.CreatedAt)
	return e, err
}

func scanEnrollmentDetails(row scanner) (model.EnrollmentWithDetails, error) {
	var e model.EnrollmentWithDetails
	err := row.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.EnrollmentDate, &e.Status, &e.CreatedAt,
		&e.StudentName, &e.StudentEmail, &e.StudentCode, &e.CourseName, &e.CourseCode)
	return e, err
}

func (s *Store) ListEnrollments(ctx context.Context, filter EnrollmentFilter) ([]model.EnrollmentWithDetails, error) {
	var w where
	if filter.StudentID > 0 {
		w.add("e.student_id = ?", filter.StudentID)
	}
	if filter.CourseID > 0 {
		w.add("e.course_id = ?", filter.CourseID)
	}
	if filter.Status != "" {
		w.add("e.status = ?", filter.Status)
	}
	query := enrollmentDetailsSelect + w.String() + ` ORDER BY e.id` + w.page(filter.Page)
	rows, err := s.db.Query(ctx, query, w.args...)
	return collect(rows, err, scanEnrollmentDetails)
}

func (s *Store) GetEnrollment(ctx context.Context, id int64) (model.EnrollmentWithDetails, error) {
	return scanEnrollmentDetails(s.db.QueryRow(ctx, enrollmentDetailsSelect+` WHERE e.id = $1`, id))
}

// CreateEnrollment rejects a second active enrollment for the same student
// and course with ErrDuplicate. The enrollments_active_pair_idx partial index
// enforces this, so concurrent creates cannot both succeed.
func (s *Store) CreateEnrollment(ctx context.Context, enrollment model.Enrollment) (model.Enrollment, error) {
	created, err := scanEnrollment(s.db.QueryRow(ctx, `
		INSERT INTO enrollments AS e (student_id, course_id, enrollment_date, status)
		VALUES ($1, $2, COALESCE($3, NOW()), $4)
		RETURNING `+enrollmentColumns,
		enrollment.StudentID, enrollment.CourseID, nullTime(enrollment.EnrollmentDate), enrollment.Status,
	))
	return created, mapErr(err)
}

// UpdateEnrollment returns ErrDuplicate when reactivating would leave two
// active enrollments for the pair.
func (s *Store) UpdateEnrollment(ctx context.Context, enrollment model.Enrollment) (model.Enrollment, error) {
	updated, err := scanEnrollment(s.db.QueryRow(ctx, `
		UPDATE enrollments AS e SET status = $2, enrollment_date = $3
		WHERE e.id = $1
		RETURNING `+enrollmentColumns,
		enrollment.ID, enrollment.Status, enrollment.EnrollmentDate,
	))
	return updated, mapErr(err)
}

func (s *Store) DeleteEnrollment(ctx context.Context, id int64) error {
	return affected(s.db.Exec(ctx, `DELETE FROM enrollments WHERE id = $1`, id))
}
