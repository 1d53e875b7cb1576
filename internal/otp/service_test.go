package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DrumilPatell/edumanage-sms/internal/crypto"
	"github.com/DrumilPatell/edumanage-sms/internal/model"
)

type fakeUsers struct {
	mu        sync.Mutex
	users     map[string]model.User
	updates   int
	updateErr error
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[email]
	if !ok {
		return model.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, userID int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for email, user := range f.users {
		if user.ID == userID {
			user.HashedPassword = &hash
			f.users[email] = user
			f.updates++
			return nil
		}
	}
	return pgx.ErrNoRows
}

type fakeMailer struct {
	codes map[string]string
	names map[string]string
	err   error
}

func (f *fakeMailer) SendOTP(_ context.Context, to, name, code string) error {
	if f.err != nil {
		return f.err
	}
	f.codes[to] = code
	f.names[to] = name
	return nil
}

type fixture struct {
	svc    *Service
	store  *MemoryStore
	users  *fakeUsers
	mailer *fakeMailer
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hash, err := crypto.HashPassword("old-password")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	f := &fixture{
		store: NewMemoryStore(DefaultTTL),
		users: &fakeUsers{users: map[string]model.User{
			"pw@x.com":    {ID: 1, Email: "pw@x.com", FullName: "Pat Wu", HashedPassword: &hash, Role: model.RoleStudent, IsActive: true},
			"oauth@x.com": {ID: 2, Email: "oauth@x.com", Role: model.RoleStudent, IsActive: true},
		}},
		mailer: &fakeMailer{codes: map[string]string{}, names: map[string]string{}},
		now:    time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.store, f.users, f.mailer, DefaultTTL)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestResetRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.RequestReset(ctx, "pw@x.com"); err != nil {
		t.Fatalf("request error: %v", err)
	}
	code := f.mailer.codes["pw@x.com"]
	if len(code) != 6 {
		t.Fatalf("expected mailed six digit code, got %q", code)
	}
	if name := f.mailer.names["pw@x.com"]; name != "Pat Wu" {
		t.Fatalf("expected mail addressed to Pat Wu, got %q", name)
	}

	if err := f.svc.Verify(ctx, "pw@x.com", code); err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if err := f.svc.Verify(ctx, "pw@x.com", code); err != nil {
		t.Fatalf("verify must not consume the code: %v", err)
	}

	if err := f.svc.Reset(ctx, "pw@x.com", code, "new-password"); err != nil {
		t.Fatalf("reset error: %v", err)
	}
	user, _ := f.users.GetUserByEmail(ctx, "pw@x.com")
	if !crypto.VerifyPassword("new-password", *user.HashedPassword) {
		t.Fatalf("expected password updated")
	}

	if err := f.svc.Reset(ctx, "pw@x.com", code, "another-password"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected consumed code to fail with ErrNotFound, got %v", err)
	}
}

func TestRequestResetRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.RequestReset(ctx, "ghost@x.com"); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
	if err := f.svc.RequestReset(ctx, "oauth@x.com"); !errors.Is(err, ErrOAuthAccount) {
		t.Fatalf("expected ErrOAuthAccount, got %v", err)
	}
	if _, ok, _ := f.store.Get(ctx, "oauth@x.com"); ok {
		t.Fatalf("expected no otp stored for oauth account")
	}
}

func TestDeliveryFailureKeepsCode(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("smtp down")
	ctx := context.Background()

	if err := f.svc.RequestReset(ctx, "pw@x.com"); !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
	record, ok, _ := f.store.Get(ctx, "pw@x.com")
	if !ok || len(record.Code) != 6 {
		t.Fatalf("expected otp to remain stored after delivery failure")
	}
}

func TestExpiredCodeIsPurged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.svc.RequestReset(ctx, "pw@x.com"); err != nil {
		t.Fatalf("request error: %v", err)
	}
	code := f.mailer.codes["pw@x.com"]

	f.now = f.now.Add(300 * time.Second)
	if err := f.svc.Verify(ctx, "pw@x.com", code); err != nil {
		t.Fatalf("expected code valid at exactly the ttl, got %v", err)
	}

	f.now = f.now.Add(time.Second)
	if err := f.svc.Verify(ctx, "pw@x.com", code); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, ok, _ := f.store.Get(ctx, "pw@x.com"); ok {
		t.Fatalf("expected expired record to be purged")
	}
	if err := f.svc.Reset(ctx, "pw@x.com", code, "new-password"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after purge, got %v", err)
	}
}

func TestMismatchAndOverwrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.svc.RequestReset(ctx, "pw@x.com"); err != nil {
		t.Fatalf("request error: %v", err)
	}
	first := f.mailer.codes["pw@x.com"]

	wrong := "000000"
	if first == wrong {
		wrong = "111111"
	}
	if err := f.svc.Verify(ctx, "pw@x.com", wrong); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}

	// A second request replaces the pending code.
	for i := 0; i < 5 && f.mailer.codes["pw@x.com"] == first; i++ {
		if err := f.svc.RequestReset(ctx, "pw@x.com"); err != nil {
			t.Fatalf("request error: %v", err)
		}
	}
	second := f.mailer.codes["pw@x.com"]
	if second == first {
		t.Skip("random codes collided repeatedly")
	}
	if err := f.svc.Verify(ctx, "pw@x.com", first); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected old code rejected, got %v", err)
	}
	if err := f.svc.Verify(ctx, "pw@x.com", second); err != nil {
		t.Fatalf("expected new code accepted, got %v", err)
	}
}

func TestShortPasswordDoesNotConsume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.svc.RequestReset(ctx, "pw@x.com"); err != nil {
		t.Fatalf("request error: %v", err)
	}
	code := f.mailer.codes["pw@x.com"]

	if err := f.svc.Reset(ctx, "pw@x.com", code, "12345"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := f.svc.Reset(ctx, "pw@x.com", code, "123456"); err != nil {
		t.Fatalf("expected six character password accepted, got %v", err)
	}
}

func TestPasswordLengthCountsCharacters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.svc.RequestReset(ctx, "pw@x.com"); err != nil {
		t.Fatalf("request error: %v", err)
	}
	code := f.mailer.codes["pw@x.com"]

	// three characters, six bytes
	if err := f.svc.Reset(ctx, "pw@x.com", code, "ééé"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort for multibyte password, got %v", err)
	}
	if f.users.updates != 0 {
		t.Fatalf("expected no password update, got %d", f.users.updates)
	}
	if err := f.svc.Reset(ctx, "pw@x.com", code, "éééééé"); err != nil {
		t.Fatalf("expected six character multibyte password accepted, got %v", err)
	}
}

func TestResetUnknownUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.store.Put(ctx, "gone@x.com", Record{Code: "123456", CreatedAt: f.now})
	if err := f.svc.Reset(ctx, "gone@x.com", "123456", "new-password"); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestUpdateFailureRestoresCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.svc.RequestReset(ctx, "pw@x.com"); err != nil {
		t.Fatalf("request error: %v", err)
	}
	code := f.mailer.codes["pw@x.com"]

	f.users.updateErr = errors.New("db down")
	if err := f.svc.Reset(ctx, "pw@x.com", code, "new-password"); err == nil {
		t.Fatalf("expected update failure")
	}
	f.users.updateErr = nil
	if err := f.svc.Reset(ctx, "pw@x.com", code, "new-password"); err != nil {
		t.Fatalf("expected code usable after failed write, got %v", err)
	}
}

func TestConcurrentResetsConsumeOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.svc.RequestReset(ctx, "pw@x.com"); err != nil {
		t.Fatalf("request error: %v", err)
	}
	code := f.mailer.codes["pw@x.com"]

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.svc.Reset(ctx, "pw@x.com", code, "new-password")
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrNotFound) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if succeeded != 1 || f.users.updates != 1 {
		t.Fatalf("expected exactly one reset, got %d (updates %d)", succeeded, f.users.updates)
	}
}
