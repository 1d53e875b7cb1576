package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/DrumilPatell/edumanage-sms/internal/otp"
)

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"new_password"`
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	err := s.svc.Resets.RequestReset(r.Context(), strings.TrimSpace(req.Email))
	switch {
	case err == nil:
		writeMessage(w, "OTP has been sent to your email address")
	case errors.Is(err, otp.ErrUnknownUser):
		writeError(w, http.StatusNotFound, "unknown_email", "No account found with this email address")
	case errors.Is(err, otp.ErrOAuthAccount):
		writeError(w, http.StatusBadRequest, "oauth_account",
			"This account uses OAuth login (Google/Microsoft/GitHub). Password reset is not available.")
	case errors.Is(err, otp.ErrDelivery):
		writeError(w, http.StatusInternalServerError, "otp_delivery_failed", "Failed to send OTP email. Please try again later.")
	default:
		serverError(w, r, err)
	}
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !s.decode(w, r, &req) {
		return
	}
	err := s.svc.Resets.Verify(r.Context(), strings.TrimSpace(req.Email), strings.TrimSpace(req.OTP))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]interface{}{"message": "OTP verified successfully", "verified": true})
	case errors.Is(err, otp.ErrNotFound):
		writeError(w, http.StatusBadRequest, "otp_not_found", "No OTP found for this email. Please request a new OTP.")
	case errors.Is(err, otp.ErrExpired):
		writeError(w, http.StatusBadRequest, "otp_expired", "OTP has expired. Please request a new OTP.")
	case errors.Is(err, otp.ErrMismatch):
		writeError(w, http.StatusBadRequest, "otp_invalid", "Invalid OTP. Please check and try again.")
	default:
		serverError(w, r, err)
	}
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	err := s.svc.Resets.Reset(r.Context(), strings.TrimSpace(req.Email), strings.TrimSpace(req.OTP), req.NewPassword)
	switch {
	case err == nil:
		countAuth("password_reset", "ok")
		writeMessage(w, "Password has been reset successfully. You can now login with your new password.")
	case errors.Is(err, otp.ErrNotFound):
		writeError(w, http.StatusBadRequest, "otp_not_found", "No OTP found. Please start the forgot password process again.")
	case errors.Is(err, otp.ErrExpired):
		writeError(w, http.StatusBadRequest, "otp_expired", "OTP has expired. Please request a new OTP.")
	case errors.Is(err, otp.ErrMismatch):
		writeError(w, http.StatusBadRequest, "otp_invalid", "Invalid OTP.")
	case errors.Is(err, otp.ErrUnknownUser):
		writeError(w, http.StatusNotFound, "unknown_user", "User not found")
	case errors.Is(err, otp.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, "password_too_short", "Password must be at least 6 characters long")
	default:
		serverError(w, r, err)
	}
}
