// Package memory provides an in-memory implementation of the directory
// persistence store used for tests, ephemeral environments, and as the
// transactional mirror behind the durable backends.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"schoolcore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// School aliases domain.School for in-memory persistence operations.
	School = domain.School
	// College aliases domain.College.
	College = domain.College
	// Student aliases domain.Student.
	Student = domain.Student
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// CommitHook makes a transaction's ordered change set durable. It runs after
// rule evaluation while the store's write lock is held; a non-nil error
// aborts the commit and the in-memory state stays untouched.
type CommitHook func(ctx context.Context, changes []Change) error

// Option customises a Store.
type Option func(*Store)

// WithCommitHook installs the durable commit step used by backend stores.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) { s.commit = hook }
}

// WithNowFunc overrides the clock used for record timestamps.
func WithNowFunc(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

type memoryState struct {
	schools  map[string]School
	colleges map[string]College
	students map[string]Student
}

func newMemoryState() memoryState {
	return memoryState{
		schools:  make(map[string]School),
		colleges: make(map[string]College),
		students: make(map[string]Student),
	}
}

func (s memoryState) clone() memoryState {
	cloned := memoryState{
		schools:  make(map[string]School, len(s.schools)),
		colleges: make(map[string]College, len(s.colleges)),
		students: make(map[string]Student, len(s.students)),
	}
	for k, v := range s.schools {
		cloned.schools[k] = v
	}
	for k, v := range s.colleges {
		cloned.colleges[k] = v
	}
	for k, v := range s.students {
		cloned.students[k] = cloneStudent(v)
	}
	return cloned
}

func cloneStudent(s Student) Student {
	cp := s
	if s.CollegeID != nil {
		id := *s.CollegeID
		cp.CollegeID = &id
	}
	return cp
}

// normalizeSnapshot repairs dangling references in imported data: colleges
// and students of missing schools are dropped, college references that do
// not resolve inside the student's school are cleared, and denormalised
// college names are refreshed.
func normalizeSnapshot(snapshot domain.Snapshot) memoryState {
	state := newMemoryState()
	for _, school := range snapshot.Schools {
		state.schools[school.ID] = school
	}
	for _, college := range snapshot.Colleges {
		if _, ok := state.schools[college.SchoolID]; !ok {
			continue
		}
		state.colleges[college.ID] = college
	}
	for _, student := range snapshot.Students {
		if _, ok := state.schools[student.SchoolID]; !ok {
			continue
		}
		student = cloneStudent(student)
		if student.CollegeID != nil {
			college, ok := state.colleges[*student.CollegeID]
			if !ok || college.SchoolID != student.SchoolID {
				student.CollegeID = nil
				student.College = ""
			} else {
				student.College = college.Name
			}
		} else {
			student.College = ""
		}
		state.students[student.ID] = student
	}
	return state
}

// Store provides an in-memory transactional store for the directory.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	commit CommitHook
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState captures the current store state.
func (s *Store) ExportState() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := newTransactionView(&s.state)
	return domain.SnapshotFromView(view, s.nowFn())
}

// ImportState replaces the store state with the provided snapshot without
// running rules or the commit hook. Loaders use it to hydrate from a backend.
func (s *Store) ImportState(snapshot domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = normalizeSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// Close releases nothing; it exists to satisfy domain.PersistentStore.
func (s *Store) Close() error { return nil }

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy is published only after rules pass and the commit hook succeeds.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if s.commit != nil && len(tx.changes) > 0 {
		if err := s.commit(ctx, tx.changes); err != nil {
			return result, err
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	return fn(newTransactionView(&snapshot))
}

// GetSchool returns a school by ID.
func (s *Store) GetSchool(id string) (School, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	school, ok := s.state.schools[id]
	return school, ok
}

// GetCollege returns a college by ID.
func (s *Store) GetCollege(id string) (College, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	college, ok := s.state.colleges[id]
	return college, ok
}

// GetStudent returns a student by ID.
func (s *Store) GetStudent(id string) (Student, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	student, ok := s.state.students[id]
	if !ok {
		return Student{}, false
	}
	return cloneStudent(student), true
}

// ListSchools returns all schools sorted by ID.
func (s *Store) ListSchools() []School {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListSchools()
}

// ListColleges returns all colleges sorted by ID.
func (s *Store) ListColleges() []College {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListColleges()
}

// ListStudents returns all students sorted by ID.
func (s *Store) ListStudents() []Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListStudents()
}

// transactionView exposes a read-only snapshot of the transactional state.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) ListSchools() []School {
	out := make([]School, 0, len(v.state.schools))
	for _, school := range v.state.schools {
		out = append(out, school)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListColleges() []College {
	return v.ScanColleges(nil)
}

func (v transactionView) ListStudents() []Student {
	return v.ScanStudents(nil)
}

func (v transactionView) FindSchool(id string) (School, bool) {
	school, ok := v.state.schools[id]
	return school, ok
}

func (v transactionView) FindCollege(id string) (College, bool) {
	college, ok := v.state.colleges[id]
	return college, ok
}

func (v transactionView) FindStudent(id string) (Student, bool) {
	student, ok := v.state.students[id]
	if !ok {
		return Student{}, false
	}
	return cloneStudent(student), true
}

// ScanColleges returns colleges accepted by match (all when match is nil), sorted by ID.
func (v transactionView) ScanColleges(match func(College) bool) []College {
	out := make([]College, 0, len(v.state.colleges))
	for _, college := range v.state.colleges {
		if match == nil || match(college) {
			out = append(out, college)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ScanStudents returns students accepted by match (all when match is nil), sorted by ID.
func (v transactionView) ScanStudents(match func(Student) bool) []Student {
	out := make([]Student, 0, len(v.state.students))
	for _, student := range v.state.students {
		if match == nil || match(student) {
			out = append(out, cloneStudent(student))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// transaction represents a mutation set applied to a private copy of the state.
type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// stamp fills zero timestamps with the transaction clock. Restored records
// keep the times they were exported with.
func (tx *transaction) stamp(base domain.Base) domain.Base {
	if base.CreatedAt.IsZero() {
		base.CreatedAt = tx.now
	}
	if base.UpdatedAt.IsZero() {
		base.UpdatedAt = base.CreatedAt
	}
	return base
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) FindSchool(id string) (School, bool) {
	return tx.Snapshot().FindSchool(id)
}

func (tx *transaction) FindCollege(id string) (College, bool) {
	return tx.Snapshot().FindCollege(id)
}

func (tx *transaction) FindStudent(id string) (Student, bool) {
	return tx.Snapshot().FindStudent(id)
}

// CreateSchool stores a new school, generating an ID when none is supplied.
func (tx *transaction) CreateSchool(school School) (School, error) {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	if _, exists := tx.state.schools[school.ID]; exists {
		return School{}, domain.DuplicateID(domain.EntitySchool, school.ID)
	}
	school.Base = tx.stamp(school.Base)
	tx.state.schools[school.ID] = school
	tx.recordChange(Change{Entity: domain.EntitySchool, Action: domain.ActionCreate, After: school})
	return school, nil
}

// UpdateSchool mutates a school using the provided mutator function.
func (tx *transaction) UpdateSchool(id string, mutator func(*School) error) (School, error) {
	current, ok := tx.state.schools[id]
	if !ok {
		return School{}, domain.NotFound(domain.EntitySchool, id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return School{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.schools[id] = current
	tx.recordChange(Change{Entity: domain.EntitySchool, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteSchool removes a school that no longer owns colleges or students.
func (tx *transaction) DeleteSchool(id string) error {
	current, ok := tx.state.schools[id]
	if !ok {
		return domain.NotFound(domain.EntitySchool, id)
	}
	dependents := 0
	for _, college := range tx.state.colleges {
		if college.SchoolID == id {
			dependents++
		}
	}
	for _, student := range tx.state.students {
		if student.SchoolID == id {
			dependents++
		}
	}
	if dependents > 0 {
		return domain.HasDependents(domain.EntitySchool, current.Name, dependents)
	}
	delete(tx.state.schools, id)
	tx.recordChange(Change{Entity: domain.EntitySchool, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateCollege stores a new college, generating an ID when none is supplied.
func (tx *transaction) CreateCollege(college College) (College, error) {
	if college.ID == "" {
		college.ID = uuid.NewString()
	}
	if _, exists := tx.state.colleges[college.ID]; exists {
		return College{}, domain.DuplicateID(domain.EntityCollege, college.ID)
	}
	if _, ok := tx.state.schools[college.SchoolID]; !ok {
		return College{}, domain.NotFound(domain.EntitySchool, college.SchoolID)
	}
	college.Base = tx.stamp(college.Base)
	tx.state.colleges[college.ID] = college
	tx.recordChange(Change{Entity: domain.EntityCollege, Action: domain.ActionCreate, After: college})
	return college, nil
}

// UpdateCollege mutates an existing college. The owning school is fixed.
func (tx *transaction) UpdateCollege(id string, mutator func(*College) error) (College, error) {
	current, ok := tx.state.colleges[id]
	if !ok {
		return College{}, domain.NotFound(domain.EntityCollege, id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return College{}, err
	}
	current.ID = id
	current.SchoolID = before.SchoolID
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.colleges[id] = current
	tx.recordChange(Change{Entity: domain.EntityCollege, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteCollege removes a college that no student references.
func (tx *transaction) DeleteCollege(id string) error {
	current, ok := tx.state.colleges[id]
	if !ok {
		return domain.NotFound(domain.EntityCollege, id)
	}
	dependents := 0
	for _, student := range tx.state.students {
		if student.InCollege(id) {
			dependents++
		}
	}
	if dependents > 0 {
		return domain.HasDependents(domain.EntityCollege, current.Name, dependents)
	}
	delete(tx.state.colleges, id)
	tx.recordChange(Change{Entity: domain.EntityCollege, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateStudent stores a new student under its caller-supplied ID.
func (tx *transaction) CreateStudent(student Student) (Student, error) {
	if student.ID == "" {
		return Student{}, domain.InvalidInput(domain.EntityStudent, "student id required")
	}
	if _, exists := tx.state.students[student.ID]; exists {
		return Student{}, domain.DuplicateID(domain.EntityStudent, student.ID)
	}
	student = cloneStudent(student)
	student.Base = tx.stamp(student.Base)
	tx.state.students[student.ID] = student
	tx.recordChange(Change{Entity: domain.EntityStudent, Action: domain.ActionCreate, After: cloneStudent(student)})
	return cloneStudent(student), nil
}

// UpdateStudent mutates a student using the provided mutator.
func (tx *transaction) UpdateStudent(id string, mutator func(*Student) error) (Student, error) {
	current, ok := tx.state.students[id]
	if !ok {
		return Student{}, domain.NotFound(domain.EntityStudent, id)
	}
	before := cloneStudent(current)
	current = cloneStudent(current)
	if err := mutator(&current); err != nil {
		return Student{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.students[id] = cloneStudent(current)
	tx.recordChange(Change{Entity: domain.EntityStudent, Action: domain.ActionUpdate, Before: before, After: cloneStudent(current)})
	return cloneStudent(current), nil
}

// DeleteStudent removes a student from the transaction state.
func (tx *transaction) DeleteStudent(id string) error {
	current, ok := tx.state.students[id]
	if !ok {
		return domain.NotFound(domain.EntityStudent, id)
	}
	delete(tx.state.students, id)
	tx.recordChange(Change{Entity: domain.EntityStudent, Action: domain.ActionDelete, Before: cloneStudent(current)})
	return nil
}
