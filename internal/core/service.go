package core

import (
	"context"
	"time"

	"schoolcore/internal/infra/persistence/memory"
	"schoolcore/internal/integrity"
	"schoolcore/internal/query"
	"schoolcore/pkg/domain"
)

// Service is the directory. Every mutation is validated against the
// transaction snapshot before any store call, then re-checked by the rules
// engine before commit.
type Service struct {
	store   PersistentStore
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
	policy  Policy
}

// ServiceOption customises a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
	policy  Policy
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger:  noopLogger{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
}

// WithLogger sets the service logger. Nil restores the no-op logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger == nil {
			logger = noopLogger{}
		}
		o.logger = logger
	}
}

// WithMetricsRecorder sets the recorder observing every operation.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder == nil {
			recorder = noopMetricsRecorder{}
		}
		o.metrics = recorder
	}
}

// WithTracer sets the tracer wrapping every operation.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer == nil {
			tracer = noopTracer{}
		}
		o.tracer = tracer
	}
}

// WithClock sets the clock used for exports and backup keys.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithPolicy sets the directory policy.
func WithPolicy(policy Policy) ServiceOption {
	return func(o *serviceOptions) { o.policy = policy }
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{
		store:   store,
		logger:  cfg.logger,
		metrics: cfg.metrics,
		tracer:  cfg.tracer,
		clock:   cfg.clock,
		policy:  cfg.policy,
	}
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Policy returns the configured directory policy.
func (s *Service) Policy() Policy { return s.policy }

// Close releases the store.
func (s *Service) Close() error { return s.store.Close() }

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		s.logger.Error("directory operation failed", "operation", op, "error", err)
		return err
	}
	s.logger.Debug("directory operation", "operation", op, "duration", time.Since(start))
	return nil
}

// mutate validates op inside the store transaction and, once approved,
// hands the approval to apply.
func (s *Service) mutate(ctx context.Context, op integrity.Operation, apply func(Transaction, integrity.Approval) error) error {
	return s.run(ctx, op.Op(), func(ctx context.Context) error {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			approval, err := integrity.Validate(tx.Snapshot(), op)
			if err != nil {
				return err
			}
			return apply(tx, approval)
		})
		s.logViolations(op.Op(), res)
		return err
	})
}

func (s *Service) logViolations(op string, res Result) {
	for _, v := range res.Violations {
		args := []any{"operation", op, "rule", v.Rule, "entity", v.Entity, "entity_id", v.EntityID, "message", v.Message}
		switch v.Severity {
		case domain.SeverityWarn:
			s.logger.Warn("rule warning", args...)
		case domain.SeverityLog:
			s.logger.Info("rule notice", args...)
		}
	}
}

func (s *Service) read(ctx context.Context, op string, fn func(TransactionView) error) error {
	return s.run(ctx, op, func(ctx context.Context) error {
		return s.store.View(ctx, fn)
	})
}

// CreateSchool adds a school with a globally unique name.
func (s *Service) CreateSchool(ctx context.Context, name string) (School, error) {
	var created School
	err := s.mutate(ctx, integrity.CreateSchool{Name: name}, func(tx Transaction, _ integrity.Approval) error {
		var err error
		created, err = tx.CreateSchool(School{Name: name})
		return err
	})
	return created, err
}

// RenameSchool changes a school's name.
func (s *Service) RenameSchool(ctx context.Context, schoolRef, newName string) (School, error) {
	var renamed School
	op := integrity.RenameSchool{School: schoolRef, NewName: newName}
	err := s.mutate(ctx, op, func(tx Transaction, approval integrity.Approval) error {
		var err error
		renamed, err = tx.UpdateSchool(approval.School.ID, func(school *School) error {
			school.Name = newName
			return nil
		})
		return err
	})
	return renamed, err
}

// DeleteSchool removes a school, its students and its colleges in that order.
func (s *Service) DeleteSchool(ctx context.Context, schoolRef string) error {
	return s.mutate(ctx, integrity.DeleteSchool{School: schoolRef}, func(tx Transaction, approval integrity.Approval) error {
		for _, student := range approval.Dependents {
			if err := tx.DeleteStudent(student.ID); err != nil {
				return err
			}
		}
		for _, college := range approval.Colleges {
			if err := tx.DeleteCollege(college.ID); err != nil {
				return err
			}
		}
		return tx.DeleteSchool(approval.School.ID)
	})
}

// CreateCollege adds a college to a school.
func (s *Service) CreateCollege(ctx context.Context, schoolRef, name string) (College, error) {
	var created College
	op := integrity.CreateCollege{School: schoolRef, Name: name}
	err := s.mutate(ctx, op, func(tx Transaction, approval integrity.Approval) error {
		var err error
		created, err = tx.CreateCollege(*approval.College)
		return err
	})
	return created, err
}

// RenameCollege renames a college and every student that references it.
func (s *Service) RenameCollege(ctx context.Context, schoolRef, collegeRef, newName string) (College, error) {
	var renamed College
	op := integrity.RenameCollege{School: schoolRef, College: collegeRef, NewName: newName}
	err := s.mutate(ctx, op, func(tx Transaction, approval integrity.Approval) error {
		var err error
		renamed, err = tx.UpdateCollege(approval.College.ID, func(college *College) error {
			college.Name = newName
			return nil
		})
		if err != nil {
			return err
		}
		for _, student := range approval.Dependents {
			if _, err := tx.UpdateStudent(student.ID, func(st *Student) error {
				st.College = newName
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return renamed, err
}

// DeleteCollege removes a college. With cascade its students go first;
// without it a college that still has students is rejected.
func (s *Service) DeleteCollege(ctx context.Context, schoolRef, collegeRef string, cascade bool) error {
	op := integrity.DeleteCollege{School: schoolRef, College: collegeRef, Cascade: cascade}
	return s.mutate(ctx, op, func(tx Transaction, approval integrity.Approval) error {
		for _, student := range approval.Dependents {
			if err := tx.DeleteStudent(student.ID); err != nil {
				return err
			}
		}
		return tx.DeleteCollege(approval.College.ID)
	})
}

// CreateStudent registers a student under a caller-supplied ID.
func (s *Service) CreateStudent(ctx context.Context, in NewStudent) (Student, error) {
	var created Student
	op := integrity.CreateStudent{Student: in, RequireCollege: s.policy.RequireStudentCollege}
	err := s.mutate(ctx, op, func(tx Transaction, approval integrity.Approval) error {
		var err error
		created, err = tx.CreateStudent(*approval.Student)
		return err
	})
	return created, err
}

// UpdateStudent applies the supplied fields of patch.
func (s *Service) UpdateStudent(ctx context.Context, id string, patch StudentPatch) (Student, error) {
	var updated Student
	op := integrity.UpdateStudent{ID: id, Patch: patch, RequireCollege: s.policy.RequireStudentCollege}
	err := s.mutate(ctx, op, func(tx Transaction, approval integrity.Approval) error {
		if patch.Empty() {
			updated = *approval.Student
			return nil
		}
		var err error
		updated, err = tx.UpdateStudent(id, func(st *Student) error {
			*st = *approval.Student
			return nil
		})
		return err
	})
	return updated, err
}

// DeleteStudent removes a student.
func (s *Service) DeleteStudent(ctx context.Context, id string) error {
	return s.mutate(ctx, integrity.DeleteStudent{ID: id}, func(tx Transaction, _ integrity.Approval) error {
		return tx.DeleteStudent(id)
	})
}

// ListSchools returns every school ordered by name.
func (s *Service) ListSchools(ctx context.Context) ([]School, error) {
	var schools []School
	err := s.read(ctx, "school.list", func(view TransactionView) error {
		schools = query.ListSchools(view)
		return nil
	})
	return schools, err
}

// GetSchool resolves a school by ID or name.
func (s *Service) GetSchool(ctx context.Context, schoolRef string) (School, error) {
	var school School
	err := s.read(ctx, "school.get", func(view TransactionView) error {
		var err error
		school, err = integrity.ResolveSchool(view, schoolRef)
		return err
	})
	return school, err
}

// ListColleges returns the colleges of a school ordered by name.
func (s *Service) ListColleges(ctx context.Context, schoolRef string) ([]College, error) {
	var colleges []College
	err := s.read(ctx, "college.list", func(view TransactionView) error {
		school, err := integrity.ResolveSchool(view, schoolRef)
		if err != nil {
			return err
		}
		colleges = query.ListColleges(view, school.ID)
		return nil
	})
	return colleges, err
}

// HasCollege reports whether the school has a college with the given name.
func (s *Service) HasCollege(ctx context.Context, schoolRef, name string) (bool, error) {
	var found bool
	err := s.read(ctx, "college.exists", func(view TransactionView) error {
		school, err := integrity.ResolveSchool(view, schoolRef)
		if err != nil {
			return err
		}
		found = query.HasCollege(view, school.ID, name)
		return nil
	})
	return found, err
}

// ListStudents returns students keyed by ID. An empty schoolRef spans every
// school; collegeRef narrows to one college and requires a school.
func (s *Service) ListStudents(ctx context.Context, schoolRef, collegeRef string) (map[string]Student, error) {
	var students map[string]Student
	err := s.read(ctx, "student.list", func(view TransactionView) error {
		if schoolRef == "" {
			if collegeRef != "" {
				return domain.InvalidInput(domain.EntityCollege, "college filter requires a school")
			}
			students = query.ListStudents(view, "", "")
			return nil
		}
		school, err := integrity.ResolveSchool(view, schoolRef)
		if err != nil {
			return err
		}
		collegeID := ""
		if collegeRef != "" {
			college, err := integrity.ResolveCollege(view, school, collegeRef)
			if err != nil {
				return err
			}
			collegeID = college.ID
		}
		students = query.ListStudents(view, school.ID, collegeID)
		return nil
	})
	return students, err
}

// GetStudent returns a student by ID.
func (s *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	var student Student
	err := s.read(ctx, "student.get", func(view TransactionView) error {
		found, ok := view.FindStudent(id)
		if !ok {
			return domain.NotFound(domain.EntityStudent, id)
		}
		student = found
		return nil
	})
	return student, err
}

// FullName renders a student's name as "Last First".
func (s *Service) FullName(ctx context.Context, id string) (string, error) {
	var name string
	err := s.read(ctx, "student.fullname", func(view TransactionView) error {
		var err error
		name, err = query.FullName(view, id)
		return err
	})
	return name, err
}

// JoinAll returns the school/college/student outer-join report. Backends
// implementing domain.JoinQuerier answer it natively.
func (s *Service) JoinAll(ctx context.Context) ([]JoinRow, error) {
	var rows []JoinRow
	err := s.run(ctx, "report.join", func(ctx context.Context) error {
		if jq, ok := s.store.(domain.JoinQuerier); ok {
			raw, err := jq.JoinRows(ctx)
			if err != nil {
				return err
			}
			rows = query.NormalizeJoin(raw)
			return nil
		}
		return s.store.View(ctx, func(view TransactionView) error {
			rows = query.JoinAll(view)
			return nil
		})
	})
	return rows, err
}

// Export captures the whole directory as a snapshot.
func (s *Service) Export(ctx context.Context) (Snapshot, error) {
	var snapshot Snapshot
	err := s.read(ctx, "directory.export", func(view TransactionView) error {
		snapshot = domain.SnapshotFromView(view, s.clock.Now())
		return nil
	})
	return snapshot, err
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
