package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DrumilPatell/edumanage-sms/internal/model"
	"github.com/DrumilPatell/edumanage-sms/internal/repository"
)

type enrollmentResponse struct {
	ID             int64     `json:"id"`
	StudentID      int64     `json:"student_id"`
	CourseID       int64     `json:"course_id"`
	EnrollmentDate time.Time `json:"enrollment_date"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	StudentName    string    `json:"student_name,omitempty"`
	StudentEmail   string    `json:"student_email,omitempty"`
	StudentCode    string    `json:"student_code,omitempty"`
	CourseName     string    `json:"course_name,omitempty"`
	CourseCode     string    `json:"course_code,omitempty"`
}

func mapEnrollment(e model.Enrollment) enrollmentResponse {
	return enrollmentResponse{
		ID:             e.ID,
		StudentID:      e.StudentID,
		CourseID:       e.CourseID,
		EnrollmentDate: e.EnrollmentDate,
		Status:         e.Status,
		CreatedAt:      e.CreatedAt,
	}
}

func mapEnrollmentDetails(e model.EnrollmentWithDetails) enrollmentResponse {
	out := mapEnrollment(e.Enrollment)
	out.StudentName = e.StudentName
	out.StudentEmail = e.StudentEmail
	out.StudentCode = e.StudentCode
	out.CourseName = e.CourseName
	out.CourseCode = e.CourseCode
	return out
}

type createEnrollmentRequest struct {
	StudentID      int64      `json:"student_id" validate:"required,min=1"`
	CourseID       int64      `json:"course_id" validate:"required,min=1"`
	EnrollmentDate *time.Time `json:"enrollment_date"`
}

type updateEnrollmentRequest struct {
	Status         *string    `json:"status" validate:"omitempty,oneof=active completed dropped withdrawn"`
	EnrollmentDate *time.Time `json:"enrollment_date"`
}

func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	filter := repository.EnrollmentFilter{
		StudentID: queryInt64(r, "student_id"),
		CourseID:  queryInt64(r, "course_id"),
		Status:    r.URL.Query().Get("status"),
		Page:      page(r, 100, 1000),
	}

	caller, _ := userFromContext(r.Context())
	if caller.Role == model.RoleStudent {
		own, err := s.store.GetStudentByUserID(r.Context(), caller.ID)
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusOK, []enrollmentResponse{})
			return
		}
		if err != nil {
			serverError(w, r, err)
			return
		}
		filter.StudentID = own.ID
	}

	enrollments, err := s.store.ListEnrollments(r.Context(), filter)
	if err != nil {
		serverError(w, r, err)
		return
	}
	out := make([]enrollmentResponse, 0, len(enrollments))
	for _, e := range enrollments {
		out = append(out, mapEnrollmentDetails(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetEnrollment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	enrollment, err := s.store.GetEnrollment(r.Context(), id)
	if err != nil {
		lookupError(w, r, err, "Enrollment not found")
		return
	}
	caller, _ := userFromContext(r.Context())
	if caller.Role == model.RoleStudent {
		own, err := s.store.GetStudentByUserID(r.Context(), caller.ID)
		if err != nil || own.ID != enrollment.StudentID {
			writeError(w, http.StatusForbidden, "forbidden", "Not enough permissions")
			return
		}
	}
	writeJSON(w, http.StatusOK, mapEnrollmentDetails(enrollment))
}

func (s *Server) handleCreateEnrollment(w http.ResponseWriter, r *http.Request) {
	var req createEnrollmentRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.requireStudentAndCourse(w, r, req.StudentID, req.CourseID) {
		return
	}

	enrollment := model.Enrollment{StudentID: req.StudentID, CourseID: req.CourseID, Status: model.EnrollmentActive}
	if req.EnrollmentDate != nil {
		enrollment.EnrollmentDate = *req.EnrollmentDate
	}
	created, err := s.store.CreateEnrollment(r.Context(), enrollment)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "duplicate_enrollment", "Student is already enrolled in this course")
			return
		}
		if referenceError(w, r, err) {
			return
		}
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapEnrollment(created))
}

func (s *Server) handleUpdateEnrollment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateEnrollmentRequest
	if !s.decode(w, r, &req) {
		return
	}
	current, err := s.store.GetEnrollment(r.Context(), id)
	if err != nil {
		lookupError(w, r, err, "Enrollment not found")
		return
	}
	enrollment := current.Enrollment
	if req.Status != nil {
		enrollment.Status = *req.Status
	}
	if req.EnrollmentDate != nil {
		enrollment.EnrollmentDate = *req.EnrollmentDate
	}
	updated, err := s.store.UpdateEnrollment(r.Context(), enrollment)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "duplicate_enrollment", "Student is already enrolled in this course")
			return
		}
		lookupError(w, r, err, "Enrollment not found")
		return
	}
	writeJSON(w, http.StatusOK, mapEnrollment(updated))
}

func (s *Server) handleDeleteEnrollment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteEnrollment(r.Context(), id); err != nil {
		lookupError(w, r, err, "Enrollment not found")
		return
	}
	writeMessage(w, "Enrollment deleted successfully")
}
