package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/DrumilPatell/edumanage-sms/internal/model"
	"github.com/DrumilPatell/edumanage-sms/internal/repository"
)

type semesterResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsCurrent bool      `json:"is_current"`
	StartDate *date     `json:"start_date"`
	EndDate   *date     `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
}

func mapSemester(sem model.Semester) semesterResponse {
	return semesterResponse{
		ID:        sem.ID,
		Name:      sem.Name,
		IsCurrent: sem.IsCurrent,
		StartDate: datePtr(sem.StartDate),
		EndDate:   datePtr(sem.EndDate),
		CreatedAt: sem.CreatedAt,
	}
}

type createSemesterRequest struct {
	Name      string `json:"name" validate:"required"`
	StartDate *date  `json:"start_date"`
	EndDate   *date  `json:"end_date"`
}

func (s *Server) handleListSemesters(w http.ResponseWriter, r *http.Request) {
	semesters, err := s.store.ListSemesters(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}
	out := make([]semesterResponse, 0, len(semesters))
	for _, sem := range semesters {
		out = append(out, mapSemester(sem))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSemester(w http.ResponseWriter, r *http.Request) {
	var req createSemesterRequest
	if !s.decode(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	created, err := s.store.CreateSemester(r.Context(), model.Semester{
		Name:      name,
		StartDate: req.StartDate.timePtr(),
		EndDate:   req.EndDate.timePtr(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "duplicate_semester", fmt.Sprintf("Semester '%s' already exists", name))
			return
		}
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSemester(created))
}

func (s *Server) handleSetCurrentSemester(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sem, err := s.store.SetCurrentSemester(r.Context(), id)
	if err != nil {
		lookupError(w, r, err, "Semester not found")
		return
	}
	writeMessage(w, fmt.Sprintf("'%s' is now the current semester", sem.Name))
}

func (s *Server) handleDeleteSemester(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sem, err := s.store.GetSemester(r.Context(), id)
	if err != nil {
		lookupError(w, r, err, "Semester not found")
		return
	}
	if err := s.store.DeleteSemester(r.Context(), id); err != nil {
		lookupError(w, r, err, "Semester not found")
		return
	}
	writeMessage(w, fmt.Sprintf("Semester '%s' deleted successfully", sem.Name))
}
