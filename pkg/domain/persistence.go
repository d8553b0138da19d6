package domain

import "context"

// Transaction exposes the directory operations that a persistence
// implementation must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateSchool(School) (School, error)
	UpdateSchool(id string, mutator func(*School) error) (School, error)
	DeleteSchool(id string) error
	CreateCollege(College) (College, error)
	UpdateCollege(id string, mutator func(*College) error) (College, error)
	DeleteCollege(id string) error
	CreateStudent(Student) (Student, error)
	UpdateStudent(id string, mutator func(*Student) error) (Student, error)
	DeleteStudent(id string) error
	FindSchool(id string) (School, bool)
	FindCollege(id string) (College, bool)
	FindStudent(id string) (Student, bool)
}

// TransactionView provides read-only access to snapshot data for the
// integrity enforcer, rules and queries.
type TransactionView interface {
	ListSchools() []School
	ListColleges() []College
	ListStudents() []Student
	FindSchool(id string) (School, bool)
	FindCollege(id string) (College, bool)
	FindStudent(id string) (Student, bool)
	ScanColleges(match func(College) bool) []College
	ScanStudents(match func(Student) bool) []Student
}

// PersistentStore is a minimal abstraction over durable backends.
// RunInTransaction is the atomic group: fn either commits in full or leaves
// no trace.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	Close() error
}

// JoinQuerier is implemented by backends able to answer the outer-join
// report natively. Rows are returned unordered.
type JoinQuerier interface {
	JoinRows(ctx context.Context) ([]JoinRow, error)
}
