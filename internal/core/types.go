// Package core wires the school directory: it validates every mutation with
// the integrity enforcer, applies it through a domain.PersistentStore and
// exposes the query projections.
package core

import (
	"context"
	"time"

	"schoolcore/pkg/domain"
)

type (
	// School aliases domain.School.
	School = domain.School
	// College aliases domain.College.
	College = domain.College
	// Student aliases domain.Student.
	Student = domain.Student
	// NewStudent aliases domain.NewStudent.
	NewStudent = domain.NewStudent
	// StudentPatch aliases domain.StudentPatch.
	StudentPatch = domain.StudentPatch
	// JoinRow aliases domain.JoinRow.
	JoinRow = domain.JoinRow
	// Snapshot aliases domain.Snapshot.
	Snapshot = domain.Snapshot
	// Result aliases domain.Result.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore.
	PersistentStore = domain.PersistentStore
)

// NewRulesEngine returns an engine with no rules registered.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// Logger is the structured logging surface used by the service. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsRecorder receives the outcome of every service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation's error, if any.
type TraceSpan interface {
	End(err error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Policy holds the directory-wide behaviour switches.
type Policy struct {
	// RequireStudentCollege rejects students without a college, as the
	// single-school directory does. When false a student may sit directly
	// under its school.
	RequireStudentCollege bool
}
