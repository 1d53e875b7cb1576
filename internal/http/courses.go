package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DrumilPatell/edumanage-sms/internal/model"
	"github.com/DrumilPatell/edumanage-sms/internal/repository"
)

type courseResponse struct {
	ID           int64      `json:"id"`
	CourseCode   string     `json:"course_code"`
	CourseName   string     `json:"course_name"`
	Description  *string    `json:"description"`
	Credits      int32      `json:"credits"`
	Semester     *string    `json:"semester"`
	FacultyID    *int64     `json:"faculty_id"`
	MaxStudents  *int32     `json:"max_students"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`
	FacultyName  *string    `json:"faculty_name,omitempty"`
	FacultyEmail *string    `json:"faculty_email,omitempty"`
}

func mapCourse(c model.Course) courseResponse {
	return courseResponse{
		ID:          c.ID,
		CourseCode:  c.CourseCode,
		CourseName:  c.CourseName,
		Description: c.Description,
		Credits:     c.Credits,
		Semester:    c.Semester,
		FacultyID:   c.FacultyID,
		MaxStudents: c.MaxStudents,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func mapCourseWithFaculty(c model.CourseWithFaculty) courseResponse {
	out := mapCourse(c.Course)
	out.FacultyName = c.FacultyName
	out.FacultyEmail = c.FacultyEmail
	return out
}

type createCourseRequest struct {
	CourseCode  string  `json:"course_code" validate:"required"`
	CourseName  string  `json:"course_name" validate:"required"`
	Description *string `json:"description"`
	Credits     *int32  `json:"credits" validate:"omitempty,min=0"`
	Semester    *string `json:"semester"`
	FacultyID   *int64  `json:"faculty_id"`
	MaxStudents *int32  `json:"max_students" validate:"omitempty,min=1"`
	IsActive    *bool   `json:"is_active"`
}

type updateCourseRequest struct {
	CourseCode  *string `json:"course_code" validate:"omitempty,min=1"`
	CourseName  *string `json:"course_name" validate:"omitempty,min=1"`
	Description *string `json:"description"`
	Credits     *int32  `json:"credits" validate:"omitempty,min=0"`
	Semester    *string `json:"semester"`
	FacultyID   *int64  `json:"faculty_id"`
	MaxStudents *int32  `json:"max_students" validate:"omitempty,min=1"`
	IsActive    *bool   `json:"is_active"`
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	filter := repository.CourseFilter{
		Semester: r.URL.Query().Get("semester"),
		Page:     page(r, 100, 1000),
	}
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", "is_active must be a boolean")
			return
		}
		filter.IsActive = &active
	}
	courses, err := s.store.ListCourses(r.Context(), filter)
	if err != nil {
		serverError(w, r, err)
		return
	}
	out := make([]courseResponse, 0, len(courses))
	for _, c := range courses {
		out = append(out, mapCourseWithFaculty(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMyCourses(w http.ResponseWriter, r *http.Request) {
	caller, _ := userFromContext(r.Context())
	courses, err := s.store.ListCoursesByFaculty(r.Context(), caller.ID)
	if err != nil {
		serverError(w, r, err)
		return
	}
	out := make([]courseResponse, 0, len(courses))
	for _, c := range courses {
		out = append(out, mapCourse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	course, err := s.store.GetCourse(r.Context(), id)
	if err != nil {
		lookupError(w, r, err, "Course not found")
		return
	}
	writeJSON(w, http.StatusOK, mapCourseWithFaculty(course))
}

// validFaculty reports whether id names an admin or faculty user.
func (s *Server) validFaculty(w http.ResponseWriter, r *http.Request, id *int64) bool {
	if id == nil {
		return true
	}
	user, err := s.store.GetUserByID(r.Context(), *id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		serverError(w, r, err)
		return false
	}
	if err != nil || !hasRole(user, model.RoleAdmin, model.RoleFaculty) {
		writeError(w, http.StatusBadRequest, "invalid_faculty", "Invalid faculty ID")
		return false
	}
	return true
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.validFaculty(w, r, req.FacultyID) {
		return
	}
	course := model.Course{
		CourseCode:  strings.TrimSpace(req.CourseCode),
		CourseName:  strings.TrimSpace(req.CourseName),
		Description: req.Description,
		Credits:     3,
		Semester:    req.Semester,
		FacultyID:   req.FacultyID,
		MaxStudents: req.MaxStudents,
		IsActive:    true,
	}
	if req.Credits != nil {
		course.Credits = *req.Credits
	}
	if req.IsActive != nil {
		course.IsActive = *req.IsActive
	}
	created, err := s.store.CreateCourse(r.Context(), course)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "duplicate_course", "Course code already exists")
			return
		}
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapCourse(created))
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateCourseRequest
	if !s.decode(w, r, &req) {
		return
	}
	current, err := s.store.GetCourse(r.Context(), id)
	if err != nil {
		lookupError(w, r, err, "Course not found")
		return
	}
	if !s.validFaculty(w, r, req.FacultyID) {
		return
	}

	course := current.Course
	if req.CourseCode != nil {
		course.CourseCode = strings.TrimSpace(*req.CourseCode)
	}
	if req.CourseName != nil {
		course.CourseName = strings.TrimSpace(*req.CourseName)
	}
	if req.Description != nil {
		course.Description = req.Description
	}
	if req.Credits != nil {
		course.Credits = *req.Credits
	}
	if req.Semester != nil {
		course.Semester = req.Semester
	}
	if req.FacultyID != nil {
		course.FacultyID = req.FacultyID
	}
	if req.MaxStudents != nil {
		course.MaxStudents = req.MaxStudents
	}
	if req.IsActive != nil {
		course.IsActive = *req.IsActive
	}

	updated, err := s.store.UpdateCourse(r.Context(), course)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "duplicate_course", "Course code already exists")
			return
		}
		lookupError(w, r, err, "Course not found")
		return
	}
	writeJSON(w, http.StatusOK, mapCourse(updated))
}

func (s *Server) handleBulkSemester(w http.ResponseWriter, r *http.Request) {
	semester := strings.TrimSpace(r.URL.Query().Get("semester"))
	if semester == "" {
		writeError(w, http.StatusBadRequest, "missing_semester", "semester is required")
		return
	}
	count, err := s.store.SetAllCourseSemesters(r.Context(), semester)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       fmt.Sprintf("Successfully updated semester to '%s' for %d courses", semester, count),
		"updated_count": count,
	})
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteCourse(r.Context(), id); err != nil {
		lookupError(w, r, err, "Course not found")
		return
	}
	writeMessage(w, "Course deleted successfully")
}
