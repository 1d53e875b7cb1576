package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DrumilPatell/edumanage-sms/internal/auth"
	"github.com/DrumilPatell/edumanage-sms/internal/config"
	"github.com/DrumilPatell/edumanage-sms/internal/identity"
	"github.com/DrumilPatell/edumanage-sms/internal/mail"
	"github.com/DrumilPatell/edumanage-sms/internal/model"
	"github.com/DrumilPatell/edumanage-sms/internal/oauth"
	"github.com/DrumilPatell/edumanage-sms/internal/otp"
	"github.com/DrumilPatell/edumanage-sms/internal/repository"
)

// Store is the persistence surface the handlers use. Missing rows are
// reported as pgx.ErrNoRows and unique violations as repository.ErrDuplicate.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, id int64) (model.User, error)
	CreateUser(ctx context.Context, user model.User) (model.User, error)
	UpdateUser(ctx context.Context, user model.User) (model.User, error)
	DeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context, filter repository.UserFilter) ([]model.User, error)

	ListStudents(ctx context.Context, filter repository.StudentFilter) ([]model.StudentWithUser, error)
	GetStudent(ctx context.Context, id int64) (model.StudentWithUser, error)
	GetStudentByUserID(ctx context.Context, userID int64) (model.StudentWithUser, error)
	CreateStudentWithUser(ctx context.Context, user model.User, student model.Student) (model.StudentWithUser, error)
	UpdateStudent(ctx context.Context, student model.Student) (model.StudentWithUser, error)
	DeleteStudent(ctx context.Context, id int64) error

	ListCourses(ctx context.Context, filter repository.CourseFilter) ([]model.CourseWithFaculty, error)
	ListCoursesByFaculty(ctx context.Context, facultyID int64) ([]model.Course, error)
	GetCourse(ctx context.Context, id int64) (model.CourseWithFaculty, error)
	CreateCourse(ctx context.Context, course model.Course) (model.Course, error)
	UpdateCourse(ctx context.Context, course model.Course) (model.Course, error)
	SetAllCourseSemesters(ctx context.Context, semester string) (int64, error)
	DeleteCourse(ctx context.Context, id int64) error

	ListEnrollments(ctx context.Context, filter repository.EnrollmentFilter) ([]model.EnrollmentWithDetails, error)
	GetEnrollment(ctx context.Context, id int64) (model.EnrollmentWithDetails, error)
	CreateEnrollment(ctx context.Context, enrollment model.Enrollment) (model.Enrollment, error)
	UpdateEnrollment(ctx context.Context, enrollment model.Enrollment) (model.Enrollment, error)
	DeleteEnrollment(ctx context.Context, id int64) error

	ListAttendance(ctx context.Context, filter repository.AttendanceFilter) ([]model.AttendanceWithDetails, error)
	GetAttendance(ctx context.Context, id int64) (model.Attendance, error)
	CreateAttendance(ctx context.Context, attendance model.Attendance) (model.Attendance, error)
	UpdateAttendance(ctx context.Context, attendance model.Attendance) (model.Attendance, error)
	DeleteAttendance(ctx context.Context, id int64) error

	ListGrades(ctx context.Context, filter repository.GradeFilter) ([]model.Grade, error)
	GetGrade(ctx context.Context, id int64) (model.Grade, error)
	CreateGrade(ctx context.Context, grade model.Grade) (model.Grade, error)
	UpdateGrade(ctx context.Context, grade model.Grade) (model.Grade, error)
	DeleteGrade(ctx context.Context, id int64) error

	ListSemesters(ctx context.Context) ([]model.Semester, error)
	GetSemester(ctx context.Context, id int64) (model.Semester, error)
	CreateSemester(ctx context.Context, semester model.Semester) (model.Semester, error)
	SetCurrentSemester(ctx context.Context, id int64) (model.Semester, error)
	DeleteSemester(ctx context.Context, id int64) error
}

type ContactMailer interface {
	SendContact(ctx context.Context, to string, form mail.ContactForm) error
}

// Services are the domain collaborators behind the handlers.
type Services struct {
	Tokens    *auth.TokenService
	LastToken *auth.LastToken
	Providers *oauth.Registry
	Identity  *identity.Resolver
	Resets    *otp.Service
	Contact   ContactMailer
}

type Server struct {
	cfg      config.Config
	store    Store
	svc      Services
	validate *validator.Validate
}

func NewServer(cfg config.Config, store Store, svc Services) *Server {
	if svc.LastToken == nil {
		svc.LastToken = &auth.LastToken{}
	}
	return &Server{
		cfg:      cfg,
		store:    store,
		svc:      svc,
		validate: newValidator(),
	}
}

// APIPrefix is where the versioned API is mounted. /health and /metrics stay
// at the root.
const APIPrefix = "/api/v1"

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	limited := s.rateLimit()
	authed := s.authenticate
	faculty := s.requireRole(model.RoleAdmin, model.RoleFaculty)
	admin := s.requireRole(model.RoleAdmin)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.With(limited).Post("/login", s.handleLogin)
			r.With(authed).Get("/me", s.handleMe)
			r.With(authed).Post("/logout", s.handleLogout)
			r.With(limited).Post("/forgot-password", s.handleForgotPassword)
			r.With(limited).Post("/verify-otp", s.handleVerifyOTP)
			r.With(limited).Post("/reset-password", s.handleResetPassword)
			if s.cfg.DebugEndpoints {
				r.Get("/debug-token", s.handleDebugToken)
				r.Get("/last-jwt", s.handleLastJWT)
			}
			r.Get("/{provider}/login", s.handleOAuthLogin)
			r.Get("/{provider}/callback", s.handleOAuthCallback)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(authed, admin).Get("/", s.handleListUsers)
			r.With(authed).Get("/{id}", s.handleGetUser)
			r.With(authed, admin).Patch("/{id}", s.handleUpdateUser)
			r.With(authed, admin).Delete("/{id}", s.handleDeleteUser)
		})

		r.Route("/students", func(r chi.Router) {
			r.With(authed, faculty).Get("/", s.handleListStudents)
			r.With(authed, admin).Post("/", s.handleCreateStudent)
			r.With(authed).Get("/me", s.handleGetMyStudent)
			r.With(authed).Get("/{id}", s.handleGetStudent)
			r.With(authed, faculty).Patch("/{id}", s.handleUpdateStudent)
			r.With(authed, admin).Delete("/{id}", s.handleDeleteStudent)
		})

		r.Route("/courses", func(r chi.Router) {
			r.With(authed).Get("/", s.handleListCourses)
			r.With(authed, admin).Post("/", s.handleCreateCourse)
			r.With(authed, faculty).Get("/faculty/my-courses", s.handleMyCourses)
			r.With(authed, faculty).Patch("/bulk/semester", s.handleBulkSemester)
			r.With(authed).Get("/{id}", s.handleGetCourse)
			r.With(authed, admin).Patch("/{id}", s.handleUpdateCourse)
			r.With(authed, admin).Delete("/{id}", s.handleDeleteCourse)
		})

		r.Route("/enrollments", func(r chi.Router) {
			r.With(authed).Get("/", s.handleListEnrollments)
			r.With(authed, faculty).Post("/", s.handleCreateEnrollment)
			r.With(authed).Get("/{id}", s.handleGetEnrollment)
			r.With(authed, faculty).Patch("/{id}", s.handleUpdateEnrollment)
			r.With(authed, faculty).Delete("/{id}", s.handleDeleteEnrollment)
		})

		r.Route("/academic", func(r chi.Router) {
			r.With(authed, faculty).Get("/attendance", s.handleListAttendance)
			r.With(authed, faculty).Post("/attendance", s.handleCreateAttendance)
			r.With(authed, faculty).Get("/attendance/{id}", s.handleGetAttendance)
			r.With(authed, faculty).Patch("/attendance/{id}", s.handleUpdateAttendance)
			r.With(authed, faculty).Put("/attendance/{id}", s.handleUpdateAttendance)
			r.With(authed, faculty).Delete("/attendance/{id}", s.handleDeleteAttendance)

			r.With(authed).Get("/grades", s.handleListGrades)
			r.With(authed, faculty).Post("/grades", s.handleCreateGrade)
			r.With(authed, faculty).Patch("/grades/{id}", s.handleUpdateGrade)
			r.With(authed, faculty).Delete("/grades/{id}", s.handleDeleteGrade)
		})

		r.Route("/semesters", func(r chi.Router) {
			r.With(authed).Get("/", s.handleListSemesters)
			r.With(authed, faculty).Post("/", s.handleCreateSemester)
			r.With(authed, faculty).Patch("/{id}/set-current", s.handleSetCurrentSemester)
			r.With(authed, faculty).Delete("/{id}", s.handleDeleteSemester)
		})

		r.With(limited).Post("/contact", s.handleContact)
	})

	return r
}

// authenticate verifies the bearer token and loads the caller. Unknown users
// are rejected with 401 and inactive ones with 403.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "Could not validate credentials")
			return
		}
		claims, err := s.svc.Tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token", "Could not validate credentials")
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token", "Could not validate credentials")
			return
		}

		user, err := s.store.GetUserByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeError(w, http.StatusUnauthorized, "unknown_user", "Could not validate credentials")
				return
			}
			serverError(w, r, err)
			return
		}
		if !user.IsActive {
			writeError(w, http.StatusForbidden, "inactive_user", "Inactive user")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		ctx = context.WithValue(ctx, userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireRole(allowed ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userFromContext(r.Context())
			if !ok || !hasRole(user, allowed...) {
				writeError(w, http.StatusForbidden, "forbidden", "Not enough permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type (
	claimsKey    struct{}
	userKey      struct{}
	requestIDKey struct{}
)

func claimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}

func userFromContext(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(userKey{}).(model.User)
	return user, ok
}

func hasRole(user model.User, allowed ...model.Role) bool {
	for _, role := range allowed {
		if user.Role == role {
			return true
		}
	}
	return false
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body and runs struct validation. It writes the 400
// response itself and reports whether the handler may continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := decodeJSON(r, out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Malformed request body")
		return false
	}
	if err := s.validate.Struct(out); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", validationDetail(err))
		return false
	}
	return true
}

func validationDetail(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{"error": code, "detail": detail})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

func serverError(w http.ResponseWriter, r *http.Request, err error) {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	log.Printf("request failed id=%s method=%s path=%s: %v", id, r.Method, r.URL.Path, err)
	writeError(w, http.StatusInternalServerError, "server_error", "Internal server error")
}

// lookupError maps a store error to 404 or 500.
func lookupError(w http.ResponseWriter, r *http.Request, err error, detail string) {
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "not_found", detail)
		return
	}
	serverError(w, r, err)
}

// requireStudentAndCourse writes a 404 and returns false when either id has no
// row.
func (s *Server) requireStudentAndCourse(w http.ResponseWriter, r *http.Request, studentID, courseID int64) bool {
	if _, err := s.store.GetStudent(r.Context(), studentID); err != nil {
		lookupError(w, r, err, "Student not found")
		return false
	}
	if _, err := s.store.GetCourse(r.Context(), courseID); err != nil {
		lookupError(w, r, err, "Course not found")
		return false
	}
	return true
}

// referenceError covers a student or course deleted between the existence
// check and the write.
func referenceError(w http.ResponseWriter, r *http.Request, err error) bool {
	if errors.Is(err, repository.ErrReference) {
		writeError(w, http.StatusNotFound, "not_found", "Student or course not found")
		return true
	}
	return false
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "Invalid id")
		return 0, false
	}
	return id, true
}

// page reads skip and limit, clamping limit to max.
func page(r *http.Request, def, max int) repository.Page {
	p := repository.Page{Limit: def}
	q := r.URL.Query()
	if raw := q.Get("skip"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			p.Skip = parsed
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			p.Limit = parsed
		}
	}
	if p.Limit > max {
		p.Limit = max
	}
	return p
}

func queryInt64(r *http.Request, key string) int64 {
	value, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil {
		return 0
	}
	return value
}

const dateLayout = "2006-01-02"

// date is a calendar day that travels as YYYY-MM-DD.
type date struct {
	time.Time
}

func (d date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return err
	}
	d.Time = parsed
	return nil
}

func datePtr(t *time.Time) *date {
	if t == nil {
		return nil
	}
	return &date{Time: *t}
}

func (d *date) timePtr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
