package query

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"schoolcore/internal/infra/persistence/memory"
	"schoolcore/pkg/domain"
)

func strPtr(s string) *string { return &s }

func view(t *testing.T, snapshot domain.Snapshot) domain.TransactionView {
	t.Helper()
	store := memory.NewStore(nil)
	store.ImportState(snapshot)
	var out domain.TransactionView
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		out = v
		return nil
	})
	return out
}

func directory(t *testing.T) domain.TransactionView {
	return view(t, domain.Snapshot{
		Schools: []domain.School{
			{Base: domain.Base{ID: "z"}, Name: "Zeta"},
			{Base: domain.Base{ID: "a"}, Name: "Alpha"},
			{Base: domain.Base{ID: "m"}, Name: "Mid"},
		},
		Colleges: []domain.College{
			{Base: domain.Base{ID: "a2"}, SchoolID: "a", Name: "Science"},
			{Base: domain.Base{ID: "a1"}, SchoolID: "a", Name: "Arts"},
			{Base: domain.Base{ID: "a3"}, SchoolID: "a", Name: "Law"},
		},
		Students: []domain.Student{
			{Base: domain.Base{ID: "1"}, FirstName: "Ada", LastName: "Byron", SchoolID: "a", CollegeID: strPtr("a1")},
			{Base: domain.Base{ID: "2"}, FirstName: "Alan", LastName: "Turing", SchoolID: "a", CollegeID: strPtr("a2")},
			{Base: domain.Base{ID: "3"}, FirstName: "Emmy", LastName: "Noether", SchoolID: "a", CollegeID: strPtr("a2")},
			{Base: domain.Base{ID: "4"}, FirstName: "Kurt", LastName: "Godel", SchoolID: "a"},
			{Base: domain.Base{ID: "5"}, FirstName: "Grace", LastName: "Hopper", SchoolID: "m"},
		},
	})
}

func TestListings(t *testing.T) {
	v := directory(t)
	schools := ListSchools(v)
	if names := []string{schools[0].Name, schools[1].Name, schools[2].Name}; !reflect.DeepEqual(names, []string{"Alpha", "Mid", "Zeta"}) {
		t.Fatalf("schools not sorted by name: %v", names)
	}
	colleges := ListColleges(v, "a")
	if len(colleges) != 3 || colleges[0].Name != "Arts" || colleges[2].Name != "Science" {
		t.Fatalf("unexpected colleges %+v", colleges)
	}
	if len(ListColleges(v, "z")) != 0 {
		t.Fatalf("expected no colleges for Zeta")
	}
	if got := ListStudents(v, "", ""); len(got) != 5 {
		t.Fatalf("expected all students, got %d", len(got))
	}
	if got := ListStudents(v, "a", ""); len(got) != 4 {
		t.Fatalf("expected 4 Alpha students, got %d", len(got))
	}
	science := ListStudents(v, "a", "a2")
	if _, ok := science["2"]; !ok || len(science) != 2 {
		t.Fatalf("unexpected science students %v", science)
	}
	if !HasCollege(v, "a", "Law") || HasCollege(v, "m", "Law") {
		t.Fatalf("HasCollege mismatch")
	}
}

func TestFullName(t *testing.T) {
	v := directory(t)
	name, err := FullName(v, "1")
	if err != nil || name != "Byron Ada" {
		t.Fatalf("unexpected full name %q (%v)", name, err)
	}
	if _, err := FullName(v, "99"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type flatRow struct{ school, college, student string }

func flatten(rows []domain.JoinRow) []flatRow {
	out := make([]flatRow, 0, len(rows))
	for _, r := range rows {
		f := flatRow{school: r.School, college: "<nil>", student: "<nil>"}
		if r.College != nil {
			f.college = *r.College
		}
		if r.Student != nil {
			f.student = *r.Student
		}
		out = append(out, f)
	}
	return out
}

func TestJoinAll(t *testing.T) {
	got := flatten(JoinAll(directory(t)))
	want := []flatRow{
		{"Alpha", "Arts", "Byron Ada"},
		{"Alpha", "Law", "<nil>"},
		{"Alpha", "Science", "Noether Emmy"},
		{"Alpha", "Science", "Turing Alan"},
		{"Alpha", "<nil>", "Godel Kurt"},
		{"Mid", "<nil>", "Hopper Grace"},
		{"Zeta", "<nil>", "<nil>"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("join mismatch\nwant %v\ngot  %v", want, got)
	}
}

func TestJoinAllEmpty(t *testing.T) {
	if rows := JoinAll(view(t, domain.Snapshot{})); len(rows) != 0 {
		t.Fatalf("expected no rows, got %v", rows)
	}
}

func TestNormalizeJoinMatchesSQLShape(t *testing.T) {
	// Rows as a UNION of outer joins returns them: unordered, with a
	// placeholder for a school that also has collegeless students.
	raw := []domain.JoinRow{
		{School: "Mid"},
		{School: "Zeta"},
		{School: "Mid", Student: strPtr("Hopper Grace"), StudentID: strPtr("5")},
		{School: "Alpha", College: strPtr("Law")},
		{School: "Alpha", College: strPtr("Law")},
	}
	got := flatten(NormalizeJoin(raw))
	want := []flatRow{
		{"Alpha", "Law", "<nil>"},
		{"Mid", "<nil>", "Hopper Grace"},
		{"Zeta", "<nil>", "<nil>"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("normalize mismatch\nwant %v\ngot  %v", want, got)
	}
}

func TestCompareJoinRowsNilLast(t *testing.T) {
	named := domain.JoinRow{School: "A", College: strPtr("X")}
	bare := domain.JoinRow{School: "A"}
	if CompareJoinRows(named, bare) >= 0 || CompareJoinRows(bare, named) <= 0 {
		t.Fatalf("nil college must sort last")
	}
	if CompareJoinRows(bare, bare) != 0 {
		t.Fatalf("equal rows must compare equal")
	}
	if CompareJoinRows(domain.JoinRow{School: "A"}, domain.JoinRow{School: "B"}) >= 0 {
		t.Fatalf("school name must dominate")
	}
}
