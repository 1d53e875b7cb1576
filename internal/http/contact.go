package http

import (
	"log"
	"net/http"
	"strings"

	"github.com/DrumilPatell/edumanage-sms/internal/mail"
)

type contactRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=300"`
	Message string `json:"message" validate:"required,max=5000"`
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !s.decode(w, r, &req) {
		return
	}
	form := mail.ContactForm{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Subject: strings.TrimSpace(req.Subject),
		Message: req.Message,
	}
	if err := s.svc.Contact.SendContact(r.Context(), s.cfg.ContactEmail, form); err != nil {
		log.Printf("contact delivery failed from=%s: %v", form.Email, err)
		writeError(w, http.StatusInternalServerError, "contact_delivery_failed",
			"Failed to send your message. Please try again later or contact us directly via email.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Your message has been sent successfully. We'll get back to you soon!",
	})
}
