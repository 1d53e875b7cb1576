package otp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/DrumilPatell/edumanage-sms/internal/crypto"
	"github.com/DrumilPatell/edumanage-sms/internal/model"
)

const (
	DefaultTTL        = 300 * time.Second
	MinPasswordLength = 6
)

var (
	ErrUnknownUser      = errors.New("no account for email")
	ErrOAuthAccount     = errors.New("account uses oauth login")
	ErrDelivery         = errors.New("otp delivery failed")
	ErrNotFound         = errors.New("no otp for email")
	ErrExpired          = errors.New("otp expired")
	ErrMismatch         = errors.New("otp mismatch")
	ErrPasswordTooShort = errors.New("password too short")
)

var otpEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "edumanage_otp_events_total",
	Help: "Password reset OTP lifecycle events.",
}, []string{"event"})

// Users is the slice of the credential store the reset flow needs. Lookups
// report pgx.ErrNoRows for unknown emails.
type Users interface {
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	UpdatePassword(ctx context.Context, userID int64, hash string) error
}

type Mailer interface {
	SendOTP(ctx context.Context, to, name, code string) error
}

type Service struct {
	store  Store
	users  Users
	mailer Mailer
	ttl    time.Duration
	now    func() time.Time
	locks  *keyedMutex
}

func NewService(store Store, users Users, mailer Mailer, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store:  store,
		users:  users,
		mailer: mailer,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		locks:  newKeyedMutex(),
	}
}

// RequestReset issues a fresh code for email, replacing any pending one, and
// mails it. The code stays stored when delivery fails.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUnknownUser
		}
		return err
	}
	if !user.HasPassword() {
		return ErrOAuthAccount
	}

	code, err := crypto.NewOTPCode()
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(email)
	err = s.store.Put(ctx, email, Record{Code: code, CreatedAt: s.now()})
	unlock()
	if err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	otpEvents.WithLabelValues("issued").Inc()

	if err := s.mailer.SendOTP(ctx, email, user.FullName, code); err != nil {
		otpEvents.WithLabelValues("delivery_failed").Inc()
		log.Printf("otp delivery failed email=%s: %v", email, err)
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return nil
}

// Verify checks code without consuming it.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	unlock := s.locks.Lock(email)
	defer unlock()

	if _, err := s.check(ctx, email, code); err != nil {
		return err
	}
	otpEvents.WithLabelValues("verified").Inc()
	return nil
}

// Reset re-checks code, stores the new password and consumes the code. A code
// can complete at most one reset.
func (s *Service) Reset(ctx context.Context, email, code, newPassword string) error {
	unlock := s.locks.Lock(email)
	defer unlock()

	record, err := s.check(ctx, email, code)
	if err != nil {
		return err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUnknownUser
		}
		return err
	}
	if utf8.RuneCountInString(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return err
	}

	consumed, err := s.store.Consume(ctx, email, code)
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	if !consumed {
		return ErrNotFound
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		if putErr := s.store.Put(ctx, email, record); putErr != nil {
			log.Printf("otp restore failed email=%s: %v", email, putErr)
		}
		return fmt.Errorf("update password: %w", err)
	}
	otpEvents.WithLabelValues("reset").Inc()
	log.Printf("password reset completed user_id=%d", user.ID)
	return nil
}

func (s *Service) check(ctx context.Context, email, code string) (Record, error) {
	record, ok, err := s.store.Get(ctx, email)
	if err != nil {
		return Record{}, fmt.Errorf("load otp: %w", err)
	}
	if !ok {
		otpEvents.WithLabelValues("missing").Inc()
		return Record{}, ErrNotFound
	}
	if s.now().Sub(record.CreatedAt) > s.ttl {
		if err := s.store.Delete(ctx, email); err != nil {
			log.Printf("expired otp delete failed email=%s: %v", email, err)
		}
		otpEvents.WithLabelValues("expired").Inc()
		return Record{}, ErrExpired
	}
	if record.Code != code {
		otpEvents.WithLabelValues("mismatch").Inc()
		return Record{}, ErrMismatch
	}
	return record, nil
}
