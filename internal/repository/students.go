package repository

import (
	"context"

	"github.com/DrumilPatell/edumanage-sms/internal/model"
)

const studentColumns = `s.id, s.user_id, s.student_id, s.date_of_birth, s.phone, s.address, s.gender, s.enrollment_date,
	s.year_level, s.enrollment_year, s.program, s.current_semester, s.gpa, s.status, s.created_at, s.updated_at,
	u.email, u.full_name, u.profile_picture, u.is_active`

const studentFrom = ` FROM students s JOIN users u ON u.id = s.user_id`

type StudentFilter struct {
	Status  string
	Program string
	Page
}

func scanStudent(row scanner) (model.StudentWithUser, error) {
	var st model.StudentWithUser
	err := row.Scan(
		&st.ID, &st.UserID, &st.StudentCode, &st.DateOfBirth, &st.Phone, &st.Address, &st.Gender, &st.EnrollmentDate,
		&st.YearLevel, &st.EnrollmentYear, &st.Program, &st.CurrentSemester, &st.GPA, &st.Status, &st.CreatedAt, &st.UpdatedAt,
		&st.Email, &st.FullName, &st.ProfilePicture, &st.IsActive,
	)
	return st, err
}

func (s *Store) ListStudents(ctx context.Context, filter StudentFilter) ([]model.StudentWithUser, error) {
	var w where
	if filter.Status != "" {
		w.add("s.status = ?", filter.Status)
	}
	if filter.Program != "" {
		w.add("s.program = ?", filter.Program)
	}
	query := `SELECT ` + studentColumns + studentFrom + w.String() + ` ORDER BY s.id` + w.page(filter.Page)
	rows, err := s.db.Query(ctx, query, w.args...)
	return collect(rows, err, scanStudent)
}

func (s *Store) GetStudent(ctx context.Context, id int64) (model.StudentWithUser, error) {
	return scanStudent(s.db.QueryRow(ctx, `SELECT `+studentColumns+studentFrom+` WHERE s.id = $1`, id))
}

func (s *Store) GetStudentByUserID(ctx context.Context, userID int64) (model.StudentWithUser, error) {
	return scanStudent(s.db.QueryRow(ctx, `SELECT `+studentColumns+studentFrom+` WHERE s.user_id = $1`, userID))
}

// CreateStudentWithUser inserts the owning user and the student row together.
func (s *Store) CreateStudentWithUser(ctx context.Context, user model.User, student model.Student) (model.StudentWithUser, error) {
	var out model.StudentWithUser
	err := s.WithTx(ctx, func(tx *Store) error {
		created, err := tx.CreateUser(ctx, user)
		if err != nil {
			return err
		}
		student.UserID = created.ID
		var id int64
		err = tx.db.QueryRow(ctx, `
			INSERT INTO students (user_id, student_id, date_of_birth, phone, address, gender, enrollment_date,
				year_level, enrollment_year, program, current_semester, gpa, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id`,
			student.UserID, student.StudentCode, student.DateOfBirth, student.Phone, student.Address, student.Gender,
			student.EnrollmentDate, student.YearLevel, student.EnrollmentYear, student.Program, student.CurrentSemester,
			student.GPA, student.Status,
		).Scan(&id)
		if err != nil {
			return mapErr(err)
		}
		out, err = tx.GetStudent(ctx, id)
		return err
	})
	return out, err
}

// UpdateStudent writes every mutable column of student.
func (s *Store) UpdateStudent(ctx context.Context, student model.Student) (model.StudentWithUser, error) {
	err := affected(s.db.Exec(ctx, `
		UPDATE students
		SET student_id = $2, date_of_birth = $3, phone = $4, address = $5, gender = $6, enrollment_date = $7,
		    year_level = $8, enrollment_year = $9, program = $10, current_semester = $11, gpa = $12, status = $13,
		    updated_at = NOW()
		WHERE id = $1`,
		student.ID, student.StudentCode, student.DateOfBirth, student.Phone, student.Address, student.Gender,
		student.EnrollmentDate, student.YearLevel, student.EnrollmentYear, student.Program, student.CurrentSemester,
		student.GPA, student.Status,
	))
	if err != nil {
		return model.StudentWithUser{}, mapErr(err)
	}
	return s.GetStudent(ctx, student.ID)
}

func (s *Store) DeleteStudent(ctx context.Context, id int64) error {
	return affected(s.db.Exec(ctx, `DELETE FROM students WHERE id = $1`, id))
}
