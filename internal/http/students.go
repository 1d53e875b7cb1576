package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DrumilPatell/edumanage-sms/internal/crypto"
	"github.com/DrumilPatell/edumanage-sms/internal/model"
	"github.com/DrumilPatell/edumanage-sms/internal/repository"
)

type studentResponse struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	StudentID       string     `json:"student_id"`
	DateOfBirth     *date      `json:"date_of_birth"`
	Phone           *string    `json:"phone"`
	Address         *string    `json:"address"`
	Gender          *string    `json:"gender"`
	EnrollmentDate  *date      `json:"enrollment_date"`
	YearLevel       *int32     `json:"year_level"`
	EnrollmentYear  *int32     `json:"enrollment_year"`
	Program         *string    `json:"program"`
	CurrentSemester *string    `json:"current_semester"`
	GPA             *float64   `json:"gpa"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at"`
	Email           string     `json:"email"`
	FullName        string     `json:"full_name"`
	ProfilePicture  *string    `json:"profile_picture"`
	IsActive        bool       `json:"is_active"`
}

func mapStudent(st model.StudentWithUser) studentResponse {
	return studentResponse{
		ID:              st.ID,
		UserID:          st.UserID,
		StudentID:       st.StudentCode,
		DateOfBirth:     datePtr(st.DateOfBirth),
		Phone:           st.Phone,
		Address:         st.Address,
		Gender:          st.Gender,
		EnrollmentDate:  datePtr(st.EnrollmentDate),
		YearLevel:       st.YearLevel,
		EnrollmentYear:  st.EnrollmentYear,
		Program:         st.Program,
		CurrentSemester: st.CurrentSemester,
		GPA:             st.GPA,
		Status:          st.Status,
		CreatedAt:       st.CreatedAt,
		UpdatedAt:       st.UpdatedAt,
		Email:           st.Email,
		FullName:        st.FullName,
		ProfilePicture:  st.ProfilePicture,
		IsActive:        st.IsActive,
	}
}

type studentFields struct {
	DateOfBirth     *date    `json:"date_of_birth"`
	Phone           *string  `json:"phone"`
	Address         *string  `json:"address"`
	Gender          *string  `json:"gender"`
	EnrollmentDate  *date    `json:"enrollment_date"`
	YearLevel       *int32   `json:"year_level" validate:"omitempty,min=1"`
	EnrollmentYear  *int32   `json:"enrollment_year" validate:"omitempty,min=1900"`
	Program         *string  `json:"program"`
	CurrentSemester *string  `json:"current_semester"`
	GPA             *float64 `json:"gpa" validate:"omitempty,min=0,max=4"`
}

type createStudentRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	FullName  string  `json:"full_name" validate:"required"`
	Password  *string `json:"password" validate:"omitempty,min=6"`
	StudentID string  `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"omitempty,oneof=active withdrawn completed"`
	studentFields
}

type updateStudentRequest struct {
	StudentID *string `json:"student_id" validate:"omitempty,min=1"`
	Status    *string `json:"status" validate:"omitempty,oneof=active withdrawn completed"`
	studentFields
}

func (f studentFields) apply(st *model.Student) {
	if f.DateOfBirth != nil {
		st.DateOfBirth = f.DateOfBirth.timePtr()
	}
	if f.Phone != nil {
		st.Phone = f.Phone
	}
	if f.Address != nil {
		st.Address = f.Address
	}
	if f.Gender != nil {
		st.Gender = f.Gender
	}
	if f.EnrollmentDate != nil {
		st.EnrollmentDate = f.EnrollmentDate.timePtr()
	}
	if f.YearLevel != nil {
		st.YearLevel = f.YearLevel
	}
	if f.EnrollmentYear != nil {
		st.EnrollmentYear = f.EnrollmentYear
	}
	if f.Program != nil {
		st.Program = f.Program
	}
	if f.CurrentSemester != nil {
		st.CurrentSemester = f.CurrentSemester
	}
	if f.GPA != nil {
		st.GPA = f.GPA
	}
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	students, err := s.store.ListStudents(r.Context(), repository.StudentFilter{
		Status:  q.Get("status"),
		Program: q.Get("program"),
		Page:    page(r, 100, 1000),
	})
	if err != nil {
		serverError(w, r, err)
		return
	}
	out := make([]studentResponse, 0, len(students))
	for _, st := range students {
		out = append(out, mapStudent(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetMyStudent(w http.ResponseWriter, r *http.Request) {
	caller, _ := userFromContext(r.Context())
	st, err := s.store.GetStudentByUserID(r.Context(), caller.ID)
	if err != nil {
		lookupError(w, r, err, "Student profile not found")
		return
	}
	writeJSON(w, http.StatusOK, mapStudent(st))
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	st, err := s.store.GetStudent(r.Context(), id)
	if err != nil {
		lookupError(w, r, err, "Student not found")
		return
	}
	caller, _ := userFromContext(r.Context())
	if caller.Role == model.RoleStudent && st.UserID != caller.ID {
		writeError(w, http.StatusForbidden, "forbidden", "Not enough permissions")
		return
	}
	writeJSON(w, http.StatusOK, mapStudent(st))
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if !s.decode(w, r, &req) {
		return
	}

	user := model.User{
		Email:    strings.TrimSpace(req.Email),
		FullName: strings.TrimSpace(req.FullName),
		Role:     model.RoleStudent,
		IsActive: true,
	}
	if req.Password != nil {
		hash, err := crypto.HashPassword(*req.Password)
		if err != nil {
			serverError(w, r, err)
			return
		}
		user.HashedPassword = &hash
	}
	if _, err := s.store.GetUserByEmail(r.Context(), user.Email); err == nil {
		writeError(w, http.StatusBadRequest, "email_taken", "Email already registered")
		return
	} else if !errors.Is(err, pgx.ErrNoRows) {
		serverError(w, r, err)
		return
	}

	student := model.Student{StudentCode: strings.TrimSpace(req.StudentID), Status: req.Status}
	if student.Status == "" {
		student.Status = model.StudentActive
	}
	req.studentFields.apply(&student)

	created, err := s.store.CreateStudentWithUser(r.Context(), user, student)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "duplicate_student", "Email or student ID already exists")
			return
		}
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapStudent(created))
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateStudentRequest
	if !s.decode(w, r, &req) {
		return
	}
	current, err := s.store.GetStudent(r.Context(), id)
	if err != nil {
		lookupError(w, r, err, "Student not found")
		return
	}

	st := current.Student
	if req.StudentID != nil {
		st.StudentCode = strings.TrimSpace(*req.StudentID)
	}
	if req.Status != nil {
		st.Status = *req.Status
	}
	req.studentFields.apply(&st)

	updated, err := s.store.UpdateStudent(r.Context(), st)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "duplicate_student", "Student ID already exists")
			return
		}
		lookupError(w, r, err, "Student not found")
		return
	}
	writeJSON(w, http.StatusOK, mapStudent(updated))
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteStudent(r.Context(), id); err != nil {
		lookupError(w, r, err, "Student not found")
		return
	}
	writeMessage(w, "Student deleted successfully")
}
