package model

import "time"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFaculty Role = "faculty"
	RoleStudent Role = "student"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFaculty, RoleStudent:
		return true
	default:
		return false
	}
}

type User struct {
	ID             int64
	Email          string
	FullName       string
	HashedPassword *string
	Role           Role
	OAuthProvider  *string
	OAuthID        *string
	ProfilePicture *string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

func (u User) HasPassword() bool {
	return u.HashedPassword != nil && *u.HashedPassword != ""
}

type Student struct {
	ID              int64
	UserID          int64
	StudentCode     string
	DateOfBirth     *time.Time
	Phone           *string
	Address         *string
	Gender          *string
	EnrollmentDate  *time.Time
	YearLevel       *int32
	EnrollmentYear  *int32
	Program         *string
	CurrentSemester *string
	GPA             *float64
	Status          string
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

// StudentWithUser is a student row joined with its owning user.
type StudentWithUser struct {
	Student
	Email          string
	FullName       string
	ProfilePicture *string
	IsActive       bool
}

type Course struct {
	ID          int64
	CourseCode  string
	CourseName  string
	Description *string
	Credits     int32
	Semester    *string
	FacultyID   *int64
	MaxStudents *int32
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

type CourseWithFaculty struct {
	Course
	FacultyName  *string
	FacultyEmail *string
}

type Enrollment struct {
	ID             int64
	StudentID      int64
	CourseID       int64
	EnrollmentDate time.Time
	Status         string
	CreatedAt      time.Time
}

type EnrollmentWithDetails struct {
	Enrollment
	StudentName  string
	StudentEmail string
	StudentCode  string
	CourseName   string
	CourseCode   string
}

type Attendance struct {
	ID        int64
	StudentID int64
	CourseID  int64
	Date      time.Time
	Status    string
	Notes     *string
	CreatedAt time.Time
}

type AttendanceWithDetails struct {
	Attendance
	StudentName string
	CourseName  string
	CourseCode  string
}

type Grade struct {
	ID             int64
	StudentID      int64
	CourseID       int64
	AssessmentType string
	AssessmentName string
	Score          float64
	MaxScore       float64
	Percentage     *float64
	LetterGrade    *string
	Remarks        *string
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

type Semester struct {
	ID        int64
	Name      string
	IsCurrent bool
	StartDate *time.Time
	EndDate   *time.Time
	CreatedAt time.Time
}

const (
	StudentActive    = "active"
	StudentWithdrawn = "withdrawn"
	StudentCompleted = "completed"

	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
	EnrollmentDropped   = "dropped"
	EnrollmentWithdrawn = "withdrawn"

	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceLate    = "late"
	AttendanceExcused = "excused"
)
