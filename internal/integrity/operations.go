// Package integrity validates directory operations against a read-only view
// of the hierarchy. It never mutates state: an Approval lists the resolved
// records and every dependent the caller must touch to apply the operation.
package integrity

import "schoolcore/pkg/domain"

// MaxNameLength bounds names and identifiers so every backend can index them.
const MaxNameLength = 191

// Operation is one of the directory mutations understood by Validate.
type Operation interface {
	// Op identifies the operation in logs and metrics.
	Op() string
}

// CreateSchool adds a school with a globally unique name.
type CreateSchool struct {
	Name string
}

// RenameSchool changes a school's name.
type RenameSchool struct {
	School  string
	NewName string
}

// DeleteSchool removes a school with all of its colleges and students.
type DeleteSchool struct {
	School string
}

// CreateCollege adds a college to a school.
type CreateCollege struct {
	School string
	Name   string
}

// RenameCollege renames a college and every student reference to it.
type RenameCollege struct {
	School  string
	College string
	NewName string
}

// DeleteCollege removes a college; Cascade also removes its students.
type DeleteCollege struct {
	School  string
	College string
	Cascade bool
}

// CreateStudent registers a new student.
type CreateStudent struct {
	Student        domain.NewStudent
	RequireCollege bool
}

// UpdateStudent applies a partial update to a student.
type UpdateStudent struct {
	ID             string
	Patch          domain.StudentPatch
	RequireCollege bool
}

// DeleteStudent removes a student.
type DeleteStudent struct {
	ID string
}

func (CreateSchool) Op() string  { return "school.create" }
func (RenameSchool) Op() string  { return "school.rename" }
func (DeleteSchool) Op() string  { return "school.delete" }
func (CreateCollege) Op() string { return "college.create" }
func (RenameCollege) Op() string { return "college.rename" }
func (DeleteCollege) Op() string { return "college.delete" }
func (CreateStudent) Op() string { return "student.create" }
func (UpdateStudent) Op() string { return "student.update" }
func (DeleteStudent) Op() string { return "student.delete" }

// Approval carries what an approved operation resolved to.
//
//   - School: the school the operation is scoped to.
//   - College: the target college (college ops, and the student's college
//     after a student op when it has one).
//   - Student: the record to write for student create/update, or the record
//     being removed for delete.
//   - Colleges: colleges removed by a school delete.
//   - Dependents: students a cascade deletes or a rename rewrites.
type Approval struct {
	School     domain.School
	College    *domain.College
	Student    *domain.Student
	Colleges   []domain.College
	Dependents []domain.Student
}
