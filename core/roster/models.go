package roster

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/rollcall/core"
)

// Role is the kind of person on the roster.
type Role string

// Roles
const (
	RoleCadet Role = "cadet"
	RoleStaff Role = "staff"
)

var AllRoles = []Role{RoleCadet, RoleStaff}

func (r Role) IsValid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// LoginRole is the role stored on the LoginAccount of an Identity with this Role.
func (r Role) LoginRole() string {
	if r == RoleStaff {
		return "training_staff"
	}
	return string(r)
}

// ParseRole maps user input ("Cadet", "training staff", ...) to a Role.
func ParseRole(s string) (Role, bool) {
	switch core.CleanString(s, true /* lower */) {
	case "cadet", "cadets", "student", "students":
		return RoleCadet, true
	case "staff", "training staff", "training_staff", "trainingstaff":
		return RoleStaff, true
	default:
		return "", false
	}
}

// Identity is a known person: a Cadet or a TrainingStaff member.
// (Role, StudentID) is the natural key.
type Identity struct {
	ID            int64     `json:"id" db:"id"`
	Role          Role      `json:"role" db:"role"`
	StudentID     string    `json:"student_id" db:"student_id"`
	FirstName     string    `json:"first_name" db:"first_name"`
	MiddleName    string    `json:"middle_name" db:"middle_name"`
	LastName      string    `json:"last_name" db:"last_name"`
	Suffix        string    `json:"suffix" db:"suffix"`
	Email         string    `json:"email" db:"email"`
	Gender        string    `json:"gender" db:"gender"`
	Course        string    `json:"course" db:"course"`
	YearLevel     string    `json:"year_level" db:"year_level"`
	Company       string    `json:"company" db:"company"`
	Platoon       string    `json:"platoon" db:"platoon"`
	Rank          string    `json:"rank" db:"rank"`
	ContactNumber string    `json:"contact_number" db:"contact_number"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// FullName renders "First Middle Last Suffix", skipping blank parts.
func (i Identity) FullName() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{i.FirstName, i.MiddleName, i.LastName, i.Suffix} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// LoginAccount is the 1:1 login identity of an Identity.
type LoginAccount struct {
	ID           int64     `json:"id" db:"id"`
	IdentityID   int64     `json:"identity_id" db:"identity_id"`
	Username     string    `json:"username" db:"username"`
	Role         string    `json:"role" db:"role"`
	IsApproved   bool      `json:"is_approved" db:"is_approved"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// SetPlaceholderPassword stores the hash of a secret nobody knows.
// These accounts sign in through a passwordless channel.
func (la *LoginAccount) SetPlaceholderPassword(secret string, cost int) error {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return err
	}
	la.PasswordHash = hash
	return nil
}

// GradeAggregate is the per-identity aggregate record used by grading.
type GradeAggregate struct {
	ID                int64     `json:"id" db:"id"`
	IdentityID        int64     `json:"identity_id" db:"identity_id"`
	AttendancePresent int       `json:"attendance_present" db:"attendance_present"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// TrainingDay is the context of an attendance sheet.
type TrainingDay struct {
	ID     int64     `json:"id" db:"id"`
	HeldOn time.Time `json:"held_on" db:"held_on"`
	Title  string    `json:"title" db:"title"`
}

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLate    AttendanceStatus = "late"
	StatusExcused AttendanceStatus = "excused"
	StatusUnknown AttendanceStatus = "unknown"
)

var (
	// AttendanceStatuses are the statuses that can be stored.
	AttendanceStatuses = []AttendanceStatus{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

	// CountedStatuses are the statuses counted in the presence total.
	CountedStatuses = []AttendanceStatus{StatusPresent, StatusExcused}
)

func (s AttendanceStatus) IsStorable() bool {
	for _, st := range AttendanceStatuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s AttendanceStatus) IsCounted() bool {
	for _, st := range CountedStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// AttendanceRecord is unique per (TrainingDayID, IdentityID).
type AttendanceRecord struct {
	ID            int64            `json:"id" db:"id"`
	TrainingDayID int64            `json:"training_day_id" db:"training_day_id"`
	IdentityID    int64            `json:"identity_id" db:"identity_id"`
	Status        AttendanceStatus `json:"status" db:"status"`
	Remarks       string           `json:"remarks" db:"remarks"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// GetFilter selects one Identity. Fields are tried in this order: ID, StudentID, Email, FirstName+LastName.
// Email and name comparisons are case-insensitive.
type GetFilter struct {
	ID        int64
	Role      Role
	StudentID string
	Email     string
	FirstName string
	LastName  string
}

func (f GetFilter) IsEmpty() bool {
	return f.ID == 0 && f.StudentID == "" && f.Email == "" && (f.FirstName == "" || f.LastName == "")
}
