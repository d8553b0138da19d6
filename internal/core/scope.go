package core

import (
	"context"
	"errors"

	"schoolcore/pkg/domain"
)

// Scope is a handle on a single school. Colleges are addressed by name and
// students outside the school are reported as not found.
type Scope struct {
	svc      *Service
	schoolID string
}

// Scope resolves schoolRef and returns a handle on it.
func (s *Service) Scope(ctx context.Context, schoolRef string) (*Scope, error) {
	school, err := s.GetSchool(ctx, schoolRef)
	if err != nil {
		return nil, err
	}
	return &Scope{svc: s, schoolID: school.ID}, nil
}

// EnsureScope returns the school named name, creating it when missing.
func (s *Service) EnsureScope(ctx context.Context, name string) (*Scope, error) {
	scope, err := s.Scope(ctx, name)
	if err == nil {
		return scope, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	school, err := s.CreateSchool(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Scope{svc: s, schoolID: school.ID}, nil
}

// SchoolID returns the ID of the scoped school.
func (sc *Scope) SchoolID() string { return sc.schoolID }

// School returns the current school record.
func (sc *Scope) School(ctx context.Context) (School, error) {
	return sc.svc.GetSchool(ctx, sc.schoolID)
}

// AddCollege creates a college in the school.
func (sc *Scope) AddCollege(ctx context.Context, name string) (College, error) {
	return sc.svc.CreateCollege(ctx, sc.schoolID, name)
}

// DeleteCollege removes a college by name.
func (sc *Scope) DeleteCollege(ctx context.Context, name string, cascade bool) error {
	return sc.svc.DeleteCollege(ctx, sc.schoolID, name, cascade)
}

// UpdateCollege renames a college, carrying its students along.
func (sc *Scope) UpdateCollege(ctx context.Context, oldName, newName string) (College, error) {
	return sc.svc.RenameCollege(ctx, sc.schoolID, oldName, newName)
}

// Colleges returns the college names ordered by name.
func (sc *Scope) Colleges(ctx context.Context) ([]string, error) {
	colleges, err := sc.svc.ListColleges(ctx, sc.schoolID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(colleges))
	for _, c := range colleges {
		names = append(names, c.Name)
	}
	return names, nil
}

// HasCollege reports whether the school has a college with the given name.
func (sc *Scope) HasCollege(ctx context.Context, name string) (bool, error) {
	return sc.svc.HasCollege(ctx, sc.schoolID, name)
}

// AddStudent registers a student in the school. An empty college leaves the
// student collegeless when the policy allows it.
func (sc *Scope) AddStudent(ctx context.Context, id, firstName, lastName, college string) (Student, error) {
	return sc.svc.CreateStudent(ctx, NewStudent{
		ID:        id,
		FirstName: firstName,
		LastName:  lastName,
		School:    sc.schoolID,
		College:   college,
	})
}

// Student returns a student of this school.
func (sc *Scope) Student(ctx context.Context, id string) (Student, error) {
	student, err := sc.svc.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if student.SchoolID != sc.schoolID {
		return Student{}, domain.NotFound(domain.EntityStudent, id)
	}
	return student, nil
}

// UpdateStudent changes the non-empty fields only.
func (sc *Scope) UpdateStudent(ctx context.Context, id, firstName, lastName, college string) (Student, error) {
	if _, err := sc.Student(ctx, id); err != nil {
		return Student{}, err
	}
	var patch StudentPatch
	if firstName != "" {
		patch.FirstName = &firstName
	}
	if lastName != "" {
		patch.LastName = &lastName
	}
	if college != "" {
		patch.College = &college
	}
	return sc.svc.UpdateStudent(ctx, id, patch)
}

// DeleteStudent removes a student of this school.
func (sc *Scope) DeleteStudent(ctx context.Context, id string) error {
	if _, err := sc.Student(ctx, id); err != nil {
		return err
	}
	return sc.svc.DeleteStudent(ctx, id)
}

// FullName renders a student of this school as "Last First".
func (sc *Scope) FullName(ctx context.Context, id string) (string, error) {
	student, err := sc.Student(ctx, id)
	if err != nil {
		return "", err
	}
	return student.FullName(), nil
}

// ListStudents returns the school's students keyed by ID, optionally only
// those of one college.
func (sc *Scope) ListStudents(ctx context.Context, college string) (map[string]Student, error) {
	return sc.svc.ListStudents(ctx, sc.schoolID, college)
}
