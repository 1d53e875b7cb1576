package repository

import (
	"context"
	"time"

	"github.com/DrumilPatell/edumanage-sms/internal/model"
)

const attendanceColumns = `a.id, a.student_id, a.course_id, a.date, a.status, a.notes, a.created_at`

const attendanceDetailsSelect = `SELECT ` + attendanceColumns + `, u.full_name, c.course_name, c.course_code
	FROM attendance a
	JOIN students s ON s.id = a.student_id
	JOIN users u ON u.id = s.user_id
	JOIN courses c ON c.id = a.course_id`

type AttendanceFilter struct {
	StudentID int64
	CourseID  int64
	DateFrom  *time.Time
	DateTo    *time.Time
	Page
}

func scanAttendance(row scanner) (model.Attendance, error) {
	var a model.Attendance
	err := row.Scan(&a.ID, &a.StudentID, &a.CourseID, &a.Date, &a.Status, &a.Notes, &a.CreatedAt)
	return a, err
}

func scanAttendanceDetails(row scanner) (model.AttendanceWithDetails, error) {
	var a model.AttendanceWithDetails
	err := row.Scan(&a.ID, &a.StudentID, &a.CourseID, &a.Date, &a.Status, &a.Notes, &a.CreatedAt,
		&a.StudentName, &a.CourseName, &a.CourseCode)
	return a, err
}

func (s *Store) ListAttendance(ctx context.Context, filter AttendanceFilter) ([]model.AttendanceWithDetails, error) {
	var w where
	if filter.StudentID > 0 {
		w.add("a.student_id = ?", filter.StudentID)
	}
	if filter.CourseID > 0 {
		w.add("a.course_id = ?", filter.CourseID)
	}
	if filter.DateFrom != nil {
		w.add("a.date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		w.add("a.date <= ?", *filter.DateTo)
	}
	query := attendanceDetailsSelect + w.String() + ` ORDER BY a.date DESC, a.id DESC` + w.page(filter.Page)
	rows, err := s.db.Query(ctx, query, w.args...)
	return collect(rows, err, scanAttendanceDetails)
}

func (s *Store) GetAttendance(ctx context.Context, id int64) (model.Attendance, error) {
	return scanAttendance(s.db.QueryRow(ctx, `SELECT `+attendanceColumns+` FROM attendance a WHERE a.id = $1`, id))
}

// CreateAttendance returns ErrDuplicate when the student already has a
// record for the course on that date, and ErrReference when the student or
// course is missing.
func (s *Store) CreateAttendance(ctx context.Context, a model.Attendance) (model.Attendance, error) {
	created, err := scanAttendance(s.db.QueryRow(ctx, `
		INSERT INTO attendance AS a (student_id, course_id, date, status, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+attendanceColumns,
		a.StudentID, a.CourseID, a.Date, a.Status, a.Notes,
	))
	return created, mapErr(err)
}

func (s *Store) UpdateAttendance(ctx context.Context, a model.Attendance) (model.Attendance, error) {
	updated, err := scanAttendance(s.db.QueryRow(ctx, `
		UPDATE attendance AS a SET student_id = $2, course_id = $3, date = $4, status = $5, notes = $6
		WHERE a.id = $1
		RETURNING `+attendanceColumns,
		a.ID, a.StudentID, a.CourseID, a.Date, a.Status, a.Notes,
	))
	return updated, mapErr(err)
}

func (s *Store) DeleteAttendance(ctx context.Context, id int64) error {
	return affected(s.db.Exec(ctx, `DELETE FROM attendance WHERE id = $1`, id))
}

const gradeColumns = `id, student_id, course_id, assessment_type, assessment_name, score, max_score,
	percentage, letter_grade, remarks, created_at, updated_at`

type GradeFilter struct {
	StudentID      int64
	CourseID       int64
	AssessmentType string
	Page
}

func scanGrade(row scanner) (model.Grade, error) {
	var g model.Grade
	err := row.Scan(&g.ID, &g.StudentID, &g.CourseID, &g.AssessmentType, &g.AssessmentName, &g.Score, &g.MaxScore,
		&g.Percentage, &g.LetterGrade, &g.Remarks, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func (s *Store) ListGrades(ctx context.Context, filter GradeFilter) ([]model.Grade, error) {
	var w where
	if filter.StudentID > 0 {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.CourseID > 0 {
		w.add("course_id = ?", filter.CourseID)
	}
	if filter.AssessmentType != "" {
		w.add("assessment_type = ?", filter.AssessmentType)
	}
	query := `SELECT ` + gradeColumns + ` FROM grades` + w.String() + ` ORDER BY id` + w.page(filter.Page)
	rows, err := s.db.Query(ctx, query, w.args...)
	return collect(rows, err, scanGrade)
}

func (s *Store) GetGrade(ctx context.Context, id int64) (model.Grade, error) {
	return scanGrade(s.db.QueryRow(ctx, `SELECT `+gradeColumns+` FROM grades WHERE id = $1`, id))
}

// CreateGrade returns ErrReference when the student or course is missing.
func (s *Store) CreateGrade(ctx context.Context, g model.Grade) (model.Grade, error) {
	created, err := scanGrade(s.db.QueryRow(ctx, `
		INSERT INTO grades (student_id, course_id, assessment_type, assessment_name, score, max_score, percentage, letter_grade, remarks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+gradeColumns,
		g.StudentID, g.CourseID, g.AssessmentType, g.AssessmentName, g.Score, g.MaxScore, g.Percentage, g.LetterGrade, g.Remarks,
	))
	return created, mapErr(err)
}

func (s *Store) UpdateGrade(ctx context.Context, g model.Grade) (model.Grade, error) {
	return scanGrade(s.db.QueryRow(ctx, `
		UPDATE grades
		SET assessment_type = $2, assessment_name = $3, score = $4, max_score = $5, percentage = $6,
		    letter_grade = $7, remarks = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING `+gradeColumns,
		g.ID, g.AssessmentType, g.AssessmentName, g.Score, g.MaxScore, g.Percentage, g.LetterGrade, g.Remarks,
	))
}

func (s *Store) DeleteGrade(ctx context.Context, id int64) error {
	return affected(s.db.Exec(ctx, `DELETE FROM grades WHERE id = $1`, id))
}
