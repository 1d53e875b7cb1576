package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DrumilPatell/edumanage-sms/internal/model"
	"github.com/DrumilPatell/edumanage-sms/internal/repository"
)

type attendanceResponse struct {
	ID          int64     `json:"id"`
	StudentID   int64     `json:"student_id"`
	CourseID    int64     `json:"course_id"`
	Date        date      `json:"date"`
	Status      string    `json:"status"`
	Notes       *string   `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	StudentName string    `json:"student_name,omitempty"`
	CourseName  string    `json:"course_name,omitempty"`
	CourseCode  string    `json:"course_code,omitempty"`
}

func mapAttendance(a model.Attendance) attendanceResponse {
	return attendanceResponse{
		ID:        a.ID,
		StudentID: a.StudentID,
		CourseID:  a.CourseID,
		Date:      date{Time: a.Date},
		Status:    a.Status,
		Notes:     a.Notes,
		CreatedAt: a.CreatedAt,
	}
}

type createAttendanceRequest struct {
	StudentID int64   `json:"student_id" validate:"required,min=1"`
	CourseID  int64   `json:"course_id" validate:"required,min=1"`
	Date      *date   `json:"date" validate:"required"`
	Status    string  `json:"status" validate:"required,oneof=present absent late excused"`
	Notes     *string `json:"notes"`
}

type updateAttendanceRequest struct {
	StudentID *int64  `json:"student_id" validate:"omitempty,min=1"`
	CourseID  *int64  `json:"course_id" validate:"omitempty,min=1"`
	Date      *date   `json:"date"`
	Status    *string `json:"status" validate:"omitempty,oneof=present absent late excused"`
	Notes     *string `json:"notes"`
}

func queryDate(w http.ResponseWriter, r *http.Request, key string) (*time.Time, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter", key+" must be YYYY-MM-DD")
		return nil, false
	}
	return &parsed, true
}

func (s *Server) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	from, ok := queryDate(w, r, "date_from")
	if !ok {
		return
	}
	to, ok := queryDate(w, r, "date_to")
	if !ok {
		return
	}
	records, err := s.store.ListAttendance(r.Context(), repository.AttendanceFilter{
		StudentID: queryInt64(r, "student_id"),
		CourseID:  queryInt64(r, "course_id"),
		DateFrom:  from,
		DateTo:    to,
		Page:      page(r, 500, 500),
	})
	if err != nil {
		serverError(w, r, err)
		return
	}
	out := make([]attendanceResponse, 0, len(records))
	for _, rec := range records {
		item := mapAttendance(rec.Attendance)
		item.StudentName = rec.StudentName
		item.CourseName = rec.CourseName
		item.CourseCode = rec.CourseCode
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAttendance(w http.ResponseWriter, r *http.Request) {
	var req createAttendanceRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.requireStudentAndCourse(w, r, req.StudentID, req.CourseID) {
		return
	}
	created, err := s.store.CreateAttendance(r.Context(), model.Attendance{
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		Date:      req.Date.Time,
		Status:    req.Status,
		Notes:     req.Notes,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "duplicate_attendance", "Attendance record already exists for this date")
			return
		}
		if referenceError(w, r, err) {
			return
		}
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapAttendance(created))
}

func (s *Server) handleGetAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	record, err := s.store.GetAttendance(r.Context(), id)
	if err != nil {
		lookupError(w, r, err, "Attendance record not found")
		return
	}
	writeJSON(w, http.StatusOK, mapAttendance(record))
}

// handleUpdateAttendance serves both PATCH and PUT; absent fields keep their
// stored values.
func (s *Server) handleUpdateAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateAttendanceRequest
	if !s.decode(w, r, &req) {
		return
	}
	record, err := s.store.GetAttendance(r.Context(), id)
	if err != nil {
		lookupError(w, r, err, "Attendance record not found")
		return
	}
	if req.StudentID != nil {
		record.StudentID = *req.StudentID
	}
	if req.CourseID != nil {
		record.CourseID = *req.CourseID
	}
	if req.Date != nil {
		record.Date = req.Date.Time
	}
	if req.Status != nil {
		record.Status = *req.Status
	}
	if req.Notes != nil {
		record.Notes = req.Notes
	}
	if (req.StudentID != nil || req.CourseID != nil) && !s.requireStudentAndCourse(w, r, record.StudentID, record.CourseID) {
		return
	}
	updated, err := s.store.UpdateAttendance(r.Context(), record)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "duplicate_attendance", "Attendance record already exists for this date")
			return
		}
		if referenceError(w, r, err) {
			return
		}
		lookupError(w, r, err, "Attendance record not found")
		return
	}
	writeJSON(w, http.StatusOK, mapAttendance(updated))
}

func (s *Server) handleDeleteAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteAttendance(r.Context(), id); err != nil {
		lookupError(w, r, err, "Attendance record not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type gradeResponse struct {
	ID             int64      `json:"id"`
	StudentID      int64      `json:"student_id"`
	CourseID       int64      `json:"course_id"`
	AssessmentType string     `json:"assessment_type"`
	AssessmentName string     `json:"assessment_name"`
	Score          float64    `json:"score"`
	MaxScore       float64    `json:"max_score"`
	Percentage     *float64   `json:"percentage"`
	LetterGrade    *string    `json:"letter_grade"`
	Remarks        *string    `json:"remarks"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
}

func mapGrade(g model.Grade) gradeResponse {
	return gradeResponse{
		ID:             g.ID,
		StudentID:      g.StudentID,
		CourseID:       g.CourseID,
		AssessmentType: g.AssessmentType,
		AssessmentName: g.AssessmentName,
		Score:          g.Score,
		MaxScore:       g.MaxScore,
		Percentage:     g.Percentage,
		LetterGrade:    g.LetterGrade,
		Remarks:        g.Remarks,
		CreatedAt:      g.CreatedAt,
		UpdatedAt:      g.UpdatedAt,
	}
}

type createGradeRequest struct {
	StudentID      int64    `json:"student_id" validate:"required,min=1"`
	CourseID       int64    `json:"course_id" validate:"required,min=1"`
	AssessmentType string   `json:"assessment_type" validate:"required"`
	AssessmentName string   `json:"assessment_name" validate:"required"`
	Score          *float64 `json:"score" validate:"required,min=0"`
	MaxScore       *float64 `json:"max_score" validate:"required,min=0"`
	LetterGrade    *string  `json:"letter_grade"`
	Remarks        *string  `json:"remarks"`
}

type updateGradeRequest struct {
	AssessmentType *string  `json:"assessment_type" validate:"omitempty,min=1"`
	AssessmentName *string  `json:"assessment_name" validate:"omitempty,min=1"`
	Score          *float64 `json:"score" validate:"omitempty,min=0"`
	MaxScore       *float64 `json:"max_score" validate:"omitempty,min=0"`
	LetterGrade    *string  `json:"letter_grade"`
	Remarks        *string  `json:"remarks"`
}

// percentage is score/max*100, or nil when max is not positive.
func percentage(score, max float64) *float64 {
	if max <= 0 {
		return nil
	}
	p := score / max * 100
	return &p
}

func (s *Server) handleListGrades(w http.ResponseWriter, r *http.Request) {
	filter := repository.GradeFilter{
		StudentID:      queryInt64(r, "student_id"),
		CourseID:       queryInt64(r, "course_id"),
		AssessmentType: r.URL.Query().Get("assessment_type"),
		Page:           page(r, 100, 100),
	}
	caller, _ := userFromContext(r.Context())
	if caller.Role == model.RoleStudent {
		own, err := s.store.GetStudentByUserID(r.Context(), caller.ID)
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusOK, []gradeResponse{})
			return
		}
		if err != nil {
			serverError(w, r, err)
			return
		}
		filter.StudentID = own.ID
	}

	grades, err := s.store.ListGrades(r.Context(), filter)
	if err != nil {
		serverError(w, r, err)
		return
	}
	out := make([]gradeResponse, 0, len(grades))
	for _, g := range grades {
		out = append(out, mapGrade(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateGrade(w http.ResponseWriter, r *http.Request) {
	var req createGradeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.requireStudentAndCourse(w, r, req.StudentID, req.CourseID) {
		return
	}
	grade := model.Grade{
		StudentID:      req.StudentID,
		CourseID:       req.CourseID,
		AssessmentType: strings.TrimSpace(req.AssessmentType),
		AssessmentName: strings.TrimSpace(req.AssessmentName),
		Score:          *req.Score,
		MaxScore:       *req.MaxScore,
		LetterGrade:    req.LetterGrade,
		Remarks:        req.Remarks,
	}
	grade.Percentage = percentage(grade.Score, grade.MaxScore)
	created, err := s.store.CreateGrade(r.Context(), grade)
	if err != nil {
		if referenceError(w, r, err) {
			return
		}
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapGrade(created))
}

func (s *Server) handleUpdateGrade(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateGradeRequest
	if !s.decode(w, r, &req) {
		return
	}
	grade, err := s.store.GetGrade(r.Context(), id)
	if err != nil {
		lookupError(w, r, err, "Grade record not found")
		return
	}
	if req.AssessmentType != nil {
		grade.AssessmentType = strings.TrimSpace(*req.AssessmentType)
	}
	if req.AssessmentName != nil {
		grade.AssessmentName = strings.TrimSpace(*req.AssessmentName)
	}
	if req.LetterGrade != nil {
		grade.LetterGrade = req.LetterGrade
	}
	if req.Remarks != nil {
		grade.Remarks = req.Remarks
	}
	if req.Score != nil || req.MaxScore != nil {
		if req.Score != nil {
			grade.Score = *req.Score
		}
		if req.MaxScore != nil {
			grade.MaxScore = *req.MaxScore
		}
		if p := percentage(grade.Score, grade.MaxScore); p != nil {
			grade.Percentage = p
		}
	}
	updated, err := s.store.UpdateGrade(r.Context(), grade)
	if err != nil {
		lookupError(w, r, err, "Grade record not found")
		return
	}
	writeJSON(w, http.StatusOK, mapGrade(updated))
}

func (s *Server) handleDeleteGrade(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteGrade(r.Context(), id); err != nil {
		lookupError(w, r, err, "Grade record not found")
		return
	}
	writeMessage(w, "Grade deleted successfully")
}
