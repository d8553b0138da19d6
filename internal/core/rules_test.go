package core

import (
	"context"
	"reflect"
	"testing"

	"schoolcore/pkg/domain"
)

func TestDefaultRulesEngineRegistersIntegrityRules(t *testing.T) {
	got := NewDefaultRulesEngine().Rules()
	want := []string{"referential_integrity", "unique_names"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected rules %v, got %v", want, got)
	}
}

// snapshotView serves a raw snapshot to rules without the repairs the stores
// apply on import.
type snapshotView domain.Snapshot

func (v snapshotView) ListSchools() []School   { return v.Schools }
func (v snapshotView) ListColleges() []College { return v.Colleges }
func (v snapshotView) ListStudents() []Student { return v.Students }

func (v snapshotView) FindSchool(id string) (School, bool) {
	for _, s := range v.Schools {
		if s.ID == id {
			return s, true
		}
	}
	return School{}, false
}

func (v snapshotView) FindCollege(id string) (College, bool) {
	for _, c := range v.Colleges {
		if c.ID == id {
			return c, true
		}
	}
	return College{}, false
}

func (v snapshotView) FindStudent(id string) (Student, bool) {
	for _, s := range v.Students {
		if s.ID == id {
			return s, true
		}
	}
	return Student{}, false
}

func evaluateState(t *testing.T, rule domain.Rule, snapshot domain.Snapshot) domain.Result {
	t.Helper()
	res, err := rule.Evaluate(context.Background(), snapshotView(snapshot), nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	return res
}

func TestReferentialIntegrityRule(t *testing.T) {
	school := School{Base: domain.Base{ID: "s1"}, Name: "North"}
	other := School{Base: domain.Base{ID: "s2"}, Name: "South"}
	college := College{Base: domain.Base{ID: "c1"}, SchoolID: "s1", Name: "Science"}
	c1, c2, missing := "c1", "c2", "gone"
	southCollege := College{Base: domain.Base{ID: "c2"}, SchoolID: "s2", Name: "Arts"}

	cases := []struct {
		name     string
		snapshot domain.Snapshot
		blocked  int
	}{
		{"consistent", domain.Snapshot{
			Schools:  []School{school},
			Colleges: []College{college},
			Students: []Student{{Base: domain.Base{ID: "1"}, SchoolID: "s1", CollegeID: &c1, College: "Science"}},
		}, 0},
		{"orphan college", domain.Snapshot{
			Colleges: []College{college},
		}, 1},
		{"orphan student", domain.Snapshot{
			Students: []Student{{Base: domain.Base{ID: "1"}, SchoolID: "s1"}},
		}, 1},
		{"missing college", domain.Snapshot{
			Schools:  []School{school},
			Students: []Student{{Base: domain.Base{ID: "1"}, SchoolID: "s1", CollegeID: &missing, College: "Gone"}},
		}, 1},
		{"foreign college", domain.Snapshot{
			Schools:  []School{school, other},
			Colleges: []College{southCollege},
			Students: []Student{{Base: domain.Base{ID: "1"}, SchoolID: "s1", CollegeID: &c2, College: "Arts"}},
		}, 1},
		{"stale name", domain.Snapshot{
			Schools:  []School{school},
			Colleges: []College{college},
			Students: []Student{{Base: domain.Base{ID: "1"}, SchoolID: "s1", CollegeID: &c1, College: "Old Science"}},
		}, 1},
		{"name without reference", domain.Snapshot{
			Schools:  []School{school},
			Students: []Student{{Base: domain.Base{ID: "1"}, SchoolID: "s1", College: "Science"}},
		}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := evaluateState(t, ReferentialIntegrityRule(), tc.snapshot)
			if len(res.Violations) != tc.blocked {
				t.Fatalf("expected %d violations, got %+v", tc.blocked, res.Violations)
			}
			if tc.blocked > 0 && !res.HasBlocking() {
				t.Fatalf("expected blocking severity")
			}
		})
	}
}

func TestUniqueNamesRule(t *testing.T) {
	snapshot := domain.Snapshot{
		Schools: []School{
			{Base: domain.Base{ID: "s1"}, Name: "Same"},
			{Base: domain.Base{ID: "s2"}, Name: "Same"},
		},
		Colleges: []College{
			{Base: domain.Base{ID: "c1"}, SchoolID: "s1", Name: "Science"},
			{Base: domain.Base{ID: "c2"}, SchoolID: "s1", Name: "Science"},
			{Base: domain.Base{ID: "c3"}, SchoolID: "s2", Name: "Science"},
		},
	}
	res := evaluateState(t, UniqueNamesRule(), snapshot)
	if len(res.Violations) != 2 {
		t.Fatalf("expected a school and a college violation, got %+v", res.Violations)
	}
	entities := map[domain.EntityType]bool{}
	for _, v := range res.Violations {
		entities[v.Entity] = true
		if v.Severity != domain.SeverityBlock || v.Rule != "unique_names" {
			t.Fatalf("unexpected violation %+v", v)
		}
	}
	if !entities[domain.EntitySchool] || !entities[domain.EntityCollege] {
		t.Fatalf("expected school and college violations, got %+v", res.Violations)
	}
}
