// Package domain defines the persistent school directory entities, value
// types, and rule evaluation primitives used by schoolcore.
package domain

import "time"

// EntityType identifies the type of record stored in the directory.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntitySchool identifies a school record.
	EntitySchool EntityType = "school"
	// EntityCollege identifies a college record owned by a school.
	EntityCollege EntityType = "college"
	// EntityStudent identifies a student record.
	EntityStudent EntityType = "student"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// School is the root of the hierarchy. Names are globally unique.
type School struct {
	Base
	Name string `json:"name"`
}

// College belongs to exactly one school. Names are unique within the school.
type College struct {
	Base
	SchoolID string `json:"school_id"`
	Name     string `json:"name"`
}

// Student is identified by a caller-supplied ID. CollegeID is optional; when
// set, College mirrors the referenced college's current name.
type Student struct {
	Base
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	SchoolID  string  `json:"school_id"`
	CollegeID *string `json:"college_id,omitempty"`
	College   string  `json:"college,omitempty"`
}

// HasCollege reports whether the student references a college.
func (s Student) HasCollege() bool {
	return s.CollegeID != nil && *s.CollegeID != ""
}

// InCollege reports whether the student references the given college ID.
func (s Student) InCollege(collegeID string) bool {
	return s.CollegeID != nil && *s.CollegeID == collegeID
}

// FullName renders "Last First" with a single separating space.
func (s Student) FullName() string {
	return s.LastName + " " + s.FirstName
}

// NewStudent carries the caller-visible fields for student creation. School
// and College are references resolved by ID first, then by name.
type NewStudent struct {
	ID        string
	FirstName string
	LastName  string
	School    string
	College   string
}

// StudentPatch lists the fields to change on a student. Nil fields are left
// untouched; ClearCollege detaches the student from its college.
type StudentPatch struct {
	FirstName    *string
	LastName     *string
	School       *string
	College      *string
	ClearCollege bool
}

// Empty reports whether the patch would change nothing.
func (p StudentPatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.School == nil && p.College == nil && !p.ClearCollege
}

// JoinRow is one line of the school/college/student outer-join report.
type JoinRow struct {
	School    string  `json:"school"`
	College   *string `json:"college"`
	Student   *string `json:"student"`
	StudentID *string `json:"student_id,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock && v.Message != "" {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
