package repository

import (
	"context"

	"github.com/DrumilPatell/edumanage-sms/internal/model"
)

const courseColumns = `c.id, c.course_code, c.course_name, c.description, c.credits, c.semester, c.faculty_id,
	c.max_students, c.is_active, c.created_at, c.updated_at`

type CourseFilter struct {
	Semester string
	IsActive *bool
	Page
}

func scanCourse(row scanner) (model.Course, error) {
	var c model.Course
	err := row.Scan(&c.ID, &c.CourseCode, &c.CourseName, &c.Description, &c.Credits, &c.Semester, &c.FacultyID,
		&c.MaxStudents, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanCourseWithFaculty(row scanner) (model.CourseWithFaculty, error) {
	var c model.CourseWithFaculty
	err := row.Scan(&c.ID, &c.CourseCode, &c.CourseName, &c.Description, &c.Credits, &c.Semester, &c.FacultyID,
		&c.MaxStudents, &c.IsActive, &c.CreatedAt, &c.UpdatedAt, &c.FacultyName, &c.FacultyEmail)
	return c, err
}

const courseWithFacultySelect = `SELECT ` + courseColumns + `, f.full_name, f.email
	FROM courses c LEFT JOIN users f ON f.id = c.faculty_id`

func (s *Store) ListCourses(ctx context.Context, filter CourseFilter) ([]model.CourseWithFaculty, error) {
	var w where
	if filter.Semester != "" {
		w.add("c.semester = ?", filter.Semester)
	}
	if filter.IsActive != nil {
		w.add("c.is_active = ?", *filter.IsActive)
	}
	query := courseWithFacultySelect + w.String() + ` ORDER BY c.id` + w.page(filter.Page)
	rows, err := s.db.Query(ctx, query, w.args...)
	return collect(rows, err, scanCourseWithFaculty)
}

func (s *Store) ListCoursesByFaculty(ctx context.Context, facultyID int64) ([]model.Course, error) {
	rows, err := s.db.Query(ctx, `SELECT `+courseColumns+` FROM courses c WHERE c.faculty_id = $1 ORDER BY c.id`, facultyID)
	return collect(rows, err, scanCourse)
}

func (s *Store) GetCourse(ctx context.Context, id int64) (model.CourseWithFaculty, error) {
	return scanCourseWithFaculty(s.db.QueryRow(ctx, courseWithFacultySelect+` WHERE c.id = $1`, id))
}

func (s *Store) CreateCourse(ctx context.Context, course model.Course) (model.Course, error) {
	created, err := scanCourse(s.db.QueryRow(ctx, `
		INSERT INTO courses AS c (course_code, course_name, description, credits, semester, faculty_id, max_students, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+courseColumns,
		course.CourseCode, course.CourseName, course.Description, course.Credits, course.Semester,
		course.FacultyID, course.MaxStudents, course.IsActive,
	))
	return created, mapErr(err)
}

// UpdateCourse writes every mutable column of course.
func (s *Store) UpdateCourse(ctx context.Context, course model.Course) (model.Course, error) {
	updated, err := scanCourse(s.db.QueryRow(ctx, `
		UPDATE courses AS c
		SET course_code = $2, course_name = $3, description = $4, credits = $5, semester = $6,
		    faculty_id = $7, max_students = $8, is_active = $9, updated_at = NOW()
		WHERE c.id = $1
		RETURNING `+courseColumns,
		course.ID, course.CourseCode, course.CourseName, course.Description, course.Credits, course.Semester,
		course.FacultyID, course.MaxStudents, course.IsActive,
	))
	return updated, mapErr(err)
}

// SetAllCourseSemesters assigns semester to every course and reports how
// many rows changed.
func (s *Store) SetAllCourseSemesters(ctx context.Context, semester string) (int64, error) {
	tag, err := s.db.Exec(ctx, `UPDATE courses SET semester = $1, updated_at = NOW()`, semester)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteCourse(ctx context.Context, id int64) error {
	return affected(s.db.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id))
}
