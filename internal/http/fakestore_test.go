package http

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DrumilPatell/edumanage-sms/internal/model"
	"github.com/DrumilPatell/edumanage-sms/internal/repository"
)

type memStore struct {
	mu          sync.Mutex
	nextID      int64
	users       map[int64]model.User
	students    map[int64]model.Student
	courses     map[int64]model.Course
	enrollments map[int64]model.Enrollment
	attendance  map[int64]model.Attendance
	grades      map[int64]model.Grade
	semesters   map[int64]model.Semester
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[int64]model.User{},
		students:    map[int64]model.Student{},
		courses:     map[int64]model.Course{},
		enrollments: map[int64]model.Enrollment{},
		attendance:  map[int64]model.Attendance{},
		grades:      map[int64]model.Grade{},
		semesters:   map[int64]model.Semester{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func sortedKeys[V any](items map[int64]V) []int64 {
	keys := make([]int64, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func window[T any](items []T, p repository.Page) []T {
	if p.Skip >= len(items) {
		return []T{}
	}
	items = items[p.Skip:]
	if p.Limit > 0 && p.Limit < len(items) {
		items = items[:p.Limit]
	}
	return items
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userByEmail(email)
}

func (m *memStore) userByEmail(email string) (model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, pgx.ErrNoRows
}

func (m *memStore) GetUserByID(_ context.Context, id int64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *memStore) CreateUser(_ context.Context, user model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createUser(user)
}

func (m *memStore) createUser(user model.User) (model.User, error) {
	if _, err := m.userByEmail(user.Email); err == nil {
		return model.User{}, repository.ErrDuplicate
	}
	user.ID = m.id()
	user.CreatedAt = time.Now().UTC()
	m.users[user.ID] = user
	return user, nil
}

func (m *memStore) UpdateUser(_ context.Context, user model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return model.User{}, pgx.ErrNoRows
	}
	if other, err := m.userByEmail(user.Email); err == nil && other.ID != user.ID {
		return model.User{}, repository.ErrDuplicate
	}
	now := time.Now().UTC()
	user.UpdatedAt = &now
	m.users[user.ID] = user
	return user, nil
}

func (m *memStore) UpdatePassword(_ context.Context, userID int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	u.HashedPassword = &hash
	m.users[userID] = u
	return nil
}

func (m *memStore) DeleteUser(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) ListUsers(_ context.Context, filter repository.UserFilter) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.User{}
	for _, id := range sortedKeys(m.users) {
		u := m.users[id]
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		out = append(out, u)
	}
	return window(out, filter.Page), nil
}

func (m *memStore) UpsertByEmail(_ context.Context, email string, apply func(existing *model.User) model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, err := m.userByEmail(email)
	if err != nil {
		return m.createUser(apply(nil))
	}
	next := apply(&existing)
	next.ID = existing.ID
	m.users[next.ID] = next
	return next, nil
}

func (m *memStore) withUser(st model.Student) model.StudentWithUser {
	u := m.users[st.UserID]
	return model.StudentWithUser{Student: st, Email: u.Email, FullName: u.FullName, ProfilePicture: u.ProfilePicture, IsActive: u.IsActive}
}

func (m *memStore) ListStudents(_ context.Context, filter repository.StudentFilter) ([]model.StudentWithUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.StudentWithUser{}
	for _, id := range sortedKeys(m.students) {
		st := m.students[id]
		if filter.Status != "" && st.Status != filter.Status {
			continue
		}
		if filter.Program != "" && (st.Program == nil || *st.Program != filter.Program) {
			continue
		}
		out = append(out, m.withUser(st))
	}
	return window(out, filter.Page), nil
}

func (m *memStore) GetStudent(_ context.Context, id int64) (model.StudentWithUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.students[id]
	if !ok {
		return model.StudentWithUser{}, pgx.ErrNoRows
	}
	return m.withUser(st), nil
}

func (m *memStore) GetStudentByUserID(_ context.Context, userID int64) (model.StudentWithUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.students {
		if st.UserID == userID {
			return m.withUser(st), nil
		}
	}
	return model.StudentWithUser{}, pgx.ErrNoRows
}

func (m *memStore) CreateStudentWithUser(_ context.Context, user model.User, student model.Student) (model.StudentWithUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.students {
		if st.StudentCode == student.StudentCode {
			return model.StudentWithUser{}, repository.ErrDuplicate
		}
	}
	created, err := m.createUser(user)
	if err != nil {
		return model.StudentWithUser{}, err
	}
	student.ID = m.id()
	student.UserID = created.ID
	student.CreatedAt = time.Now().UTC()
	m.students[student.ID] = student
	return m.withUser(student), nil
}

func (m *memStore) UpdateStudent(_ context.Context, student model.Student) (model.StudentWithUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[student.ID]; !ok {
		return model.StudentWithUser{}, pgx.ErrNoRows
	}
	for _, st := range m.students {
		if st.ID != student.ID && st.StudentCode == student.StudentCode {
			return model.StudentWithUser{}, repository.ErrDuplicate
		}
	}
	m.students[student.ID] = student
	return m.withUser(student), nil
}

func (m *memStore) DeleteStudent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.students, id)
	return nil
}

func (m *memStore) withFaculty(c model.Course) model.CourseWithFaculty {
	out := model.CourseWithFaculty{Course: c}
	if c.FacultyID != nil {
		if u, ok := m.users[*c.FacultyID]; ok {
			name, email := u.FullName, u.Email
			out.FacultyName, out.FacultyEmail = &name, &email
		}
	}
	return out
}

func (m *memStore) ListCourses(_ context.Context, filter repository.CourseFilter) ([]model.CourseWithFaculty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.CourseWithFaculty{}
	for _, id := range sortedKeys(m.courses) {
		c := m.courses[id]
		if filter.Semester != "" && (c.Semester == nil || *c.Semester != filter.Semester) {
			continue
		}
		if filter.IsActive != nil && c.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, m.withFaculty(c))
	}
	return window(out, filter.Page), nil
}

func (m *memStore) ListCoursesByFaculty(_ context.Context, facultyID int64) ([]model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Course{}
	for _, id := range sortedKeys(m.courses) {
		c := m.courses[id]
		if c.FacultyID != nil && *c.FacultyID == facultyID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) GetCourse(_ context.Context, id int64) (model.CourseWithFaculty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return model.CourseWithFaculty{}, pgx.ErrNoRows
	}
	return m.withFaculty(c), nil
}

func (m *memStore) CreateCourse(_ context.Context, course model.Course) (model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.courses {
		if c.CourseCode == course.CourseCode {
			return model.Course{}, repository.ErrDuplicate
		}
	}
	course.ID = m.id()
	course.CreatedAt = time.Now().UTC()
	m.courses[course.ID] = course
	return course, nil
}

func (m *memStore) UpdateCourse(_ context.Context, course model.Course) (model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[course.ID]; !ok {
		return model.Course{}, pgx.ErrNoRows
	}
	for _, c := range m.courses {
		if c.ID != course.ID && c.CourseCode == course.CourseCode {
			return model.Course{}, repository.ErrDuplicate
		}
	}
	m.courses[course.ID] = course
	return course, nil
}

func (m *memStore) SetAllCourseSemesters(_ context.Context, semester string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.courses {
		value := semester
		c.Semester = &value
		m.courses[id] = c
	}
	return int64(len(m.courses)), nil
}

func (m *memStore) DeleteCourse(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.courses, id)
	return nil
}

func (m *memStore) enrollmentDetails(e model.Enrollment) model.EnrollmentWithDetails {
	st := m.withUser(m.students[e.StudentID])
	c := m.courses[e.CourseID]
	return model.EnrollmentWithDetails{
		Enrollment:   e,
		StudentName:  st.FullName,
		StudentEmail: st.Email,
		StudentCode:  st.StudentCode,
		CourseName:   c.CourseName,
		CourseCode:   c.CourseCode,
	}
}

func (m *memStore) ListEnrollments(_ context.Context, filter repository.EnrollmentFilter) ([]model.EnrollmentWithDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.EnrollmentWithDetails{}
	for _, id := range sortedKeys(m.enrollments) {
		e := m.enrollments[id]
		if filter.StudentID > 0 && e.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID > 0 && e.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, m.enrollmentDetails(e))
	}
	return window(out, filter.Page), nil
}

func (m *memStore) GetEnrollment(_ context.Context, id int64) (model.EnrollmentWithDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return model.EnrollmentWithDetails{}, pgx.ErrNoRows
	}
	return m.enrollmentDetails(e), nil
}

// references mirrors the student and course foreign keys.
func (m *memStore) references(studentID, courseID int64) error {
	if _, ok := m.students[studentID]; !ok {
		return repository.ErrReference
	}
	if _, ok := m.courses[courseID]; !ok {
		return repository.ErrReference
	}
	return nil
}

func (m *memStore) activeClash(enrollment model.Enrollment) bool {
	if enrollment.Status != model.EnrollmentActive {
		return false
	}
	for _, e := range m.enrollments {
		if e.ID != enrollment.ID && e.StudentID == enrollment.StudentID && e.CourseID == enrollment.CourseID && e.Status == model.EnrollmentActive {
			return true
		}
	}
	return false
}

func (m *memStore) CreateEnrollment(_ context.Context, enrollment model.Enrollment) (model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.references(enrollment.StudentID, enrollment.CourseID); err != nil {
		return model.Enrollment{}, err
	}
	if m.activeClash(enrollment) {
		return model.Enrollment{}, repository.ErrDuplicate
	}
	enrollment.ID = m.id()
	enrollment.CreatedAt = time.Now().UTC()
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = enrollment.CreatedAt
	}
	m.enrollments[enrollment.ID] = enrollment
	return enrollment, nil
}

func (m *memStore) UpdateEnrollment(_ context.Context, enrollment model.Enrollment) (model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.enrollments[enrollment.ID]; !ok {
		return model.Enrollment{}, pgx.ErrNoRows
	}
	if m.activeClash(enrollment) {
		return model.Enrollment{}, repository.ErrDuplicate
	}
	m.enrollments[enrollment.ID] = enrollment
	return enrollment, nil
}

func (m *memStore) DeleteEnrollment(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.enrollments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.enrollments, id)
	return nil
}

func (m *memStore) ListAttendance(_ context.Context, filter repository.AttendanceFilter) ([]model.AttendanceWithDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.AttendanceWithDetails{}
	for _, id := range sortedKeys(m.attendance) {
		a := m.attendance[id]
		if filter.StudentID > 0 && a.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID > 0 && a.CourseID != filter.CourseID {
			continue
		}
		if filter.DateFrom != nil && a.Date.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && a.Date.After(*filter.DateTo) {
			continue
		}
		c := m.courses[a.CourseID]
		out = append(out, model.AttendanceWithDetails{
			Attendance:  a,
			StudentName: m.withUser(m.students[a.StudentID]).FullName,
			CourseName:  c.CourseName,
			CourseCode:  c.CourseCode,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return window(out, filter.Page), nil
}

func (m *memStore) GetAttendance(_ context.Context, id int64) (model.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attendance[id]
	if !ok {
		return model.Attendance{}, pgx.ErrNoRows
	}
	return a, nil
}

func (m *memStore) attendanceClash(a model.Attendance) bool {
	for _, other := range m.attendance {
		if other.ID != a.ID && other.StudentID == a.StudentID && other.CourseID == a.CourseID && other.Date.Equal(a.Date) {
			return true
		}
	}
	return false
}

func (m *memStore) CreateAttendance(_ context.Context, a model.Attendance) (model.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.references(a.StudentID, a.CourseID); err != nil {
		return model.Attendance{}, err
	}
	if m.attendanceClash(a) {
		return model.Attendance{}, repository.ErrDuplicate
	}
	a.ID = m.id()
	a.CreatedAt = time.Now().UTC()
	m.attendance[a.ID] = a
	return a, nil
}

func (m *memStore) UpdateAttendance(_ context.Context, a model.Attendance) (model.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attendance[a.ID]; !ok {
		return model.Attendance{}, pgx.ErrNoRows
	}
	if err := m.references(a.StudentID, a.CourseID); err != nil {
		return model.Attendance{}, err
	}
	if m.attendanceClash(a) {
		return model.Attendance{}, repository.ErrDuplicate
	}
	m.attendance[a.ID] = a
	return a, nil
}

func (m *memStore) DeleteAttendance(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attendance[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.attendance, id)
	return nil
}

func (m *memStore) ListGrades(_ context.Context, filter repository.GradeFilter) ([]model.Grade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Grade{}
	for _, id := range sortedKeys(m.grades) {
		g := m.grades[id]
		if filter.StudentID > 0 && g.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID > 0 && g.CourseID != filter.CourseID {
			continue
		}
		if filter.AssessmentType != "" && g.AssessmentType != filter.AssessmentType {
			continue
		}
		out = append(out, g)
	}
	return window(out, filter.Page), nil
}

func (m *memStore) GetGrade(_ context.Context, id int64) (model.Grade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grades[id]
	if !ok {
		return model.Grade{}, pgx.ErrNoRows
	}
	return g, nil
}

func (m *memStore) CreateGrade(_ context.Context, g model.Grade) (model.Grade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.references(g.StudentID, g.CourseID); err != nil {
		return model.Grade{}, err
	}
	g.ID = m.id()
	g.CreatedAt = time.Now().UTC()
	m.grades[g.ID] = g
	return g, nil
}

func (m *memStore) UpdateGrade(_ context.Context, g model.Grade) (model.Grade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grades[g.ID]; !ok {
		return model.Grade{}, pgx.ErrNoRows
	}
	m.grades[g.ID] = g
	return g, nil
}

func (m *memStore) DeleteGrade(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grades[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.grades, id)
	return nil
}

func (m *memStore) ListSemesters(_ context.Context) ([]model.Semester, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := sortedKeys(m.semesters)
	out := make([]model.Semester, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		out = append(out, m.semesters[keys[i]])
	}
	return out, nil
}

func (m *memStore) GetSemester(_ context.Context, id int64) (model.Semester, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sem, ok := m.semesters[id]
	if !ok {
		return model.Semester{}, pgx.ErrNoRows
	}
	return sem, nil
}

func (m *memStore) CreateSemester(_ context.Context, sem model.Semester) (model.Semester, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.semesters {
		if other.Name == sem.Name {
			return model.Semester{}, repository.ErrDuplicate
		}
	}
	sem.ID = m.id()
	sem.CreatedAt = time.Now().UTC()
	m.semesters[sem.ID] = sem
	return sem, nil
}

func (m *memStore) SetCurrentSemester(_ context.Context, id int64) (model.Semester, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.semesters[id]; !ok {
		return model.Semester{}, pgx.ErrNoRows
	}
	for key, sem := range m.semesters {
		sem.IsCurrent = key == id
		m.semesters[key] = sem
	}
	return m.semesters[id], nil
}

func (m *memStore) DeleteSemester(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.semesters[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.semesters, id)
	return nil
}
