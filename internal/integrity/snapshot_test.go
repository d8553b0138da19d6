package integrity

import (
	"testing"

	"schoolcore/pkg/domain"
)

func consistentSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Version: domain.SnapshotVersion,
		Schools: []domain.School{
			{Base: domain.Base{ID: "n"}, Name: "North"},
			{Base: domain.Base{ID: "s"}, Name: "South"},
		},
		Colleges: []domain.College{
			{Base: domain.Base{ID: "na"}, SchoolID: "n", Name: "Arts"},
			{Base: domain.Base{ID: "sa"}, SchoolID: "s", Name: "Arts"},
		},
		Students: []domain.Student{
			{Base: domain.Base{ID: "1"}, FirstName: "Ada", LastName: "Byron", SchoolID: "n", CollegeID: strPtr("na"), College: "Arts"},
			{Base: domain.Base{ID: "2"}, FirstName: "Alan", LastName: "Turing", SchoolID: "s"},
		},
	}
}

func TestValidateSnapshot(t *testing.T) {
	if err := ValidateSnapshot(consistentSnapshot()); err != nil {
		t.Fatalf("consistent snapshot rejected: %v", err)
	}
	if err := ValidateSnapshot(domain.Snapshot{Version: domain.SnapshotVersion}); err != nil {
		t.Fatalf("empty snapshot rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*domain.Snapshot)
		kind   domain.ErrorKind
	}{
		{"blank school id", func(s *domain.Snapshot) { s.Schools[0].ID = "" }, domain.KindInvalidInput},
		{"blank school name", func(s *domain.Snapshot) { s.Schools[1].Name = " " }, domain.KindInvalidInput},
		{"duplicate school id", func(s *domain.Snapshot) { s.Schools[1].ID = "n" }, domain.KindDuplicateID},
		{"duplicate school name", func(s *domain.Snapshot) { s.Schools[1].Name = "North" }, domain.KindDuplicateName},
		{"blank college id", func(s *domain.Snapshot) { s.Colleges[0].ID = "" }, domain.KindInvalidInput},
		{"duplicate college id", func(s *domain.Snapshot) { s.Colleges[1].ID = "na" }, domain.KindDuplicateID},
		{"orphan college", func(s *domain.Snapshot) { s.Colleges[1].SchoolID = "west" }, domain.KindNotFound},
		{"duplicate college name in school", func(s *domain.Snapshot) { s.Colleges[1].SchoolID = "n" }, domain.KindDuplicateName},
		{"blank student name", func(s *domain.Snapshot) { s.Students[0].LastName = "" }, domain.KindInvalidInput},
		{"duplicate student id", func(s *domain.Snapshot) { s.Students[1].ID = "1" }, domain.KindDuplicateID},
		{"orphan student", func(s *domain.Snapshot) { s.Students[1].SchoolID = "west" }, domain.KindNotFound},
		{"missing college", func(s *domain.Snapshot) { s.Students[0].CollegeID = strPtr("gone") }, domain.KindNotFound},
		{"college of another school", func(s *domain.Snapshot) { s.Students[0].CollegeID = strPtr("sa") }, domain.KindScopeMismatch},
		{"stale college name", func(s *domain.Snapshot) { s.Students[0].College = "Old Arts" }, domain.KindInvalidInput},
		{"name without reference", func(s *domain.Snapshot) { s.Students[1].College = "Arts" }, domain.KindInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snapshot := consistentSnapshot()
			tc.mutate(&snapshot)
			if got := domain.KindOf(ValidateSnapshot(snapshot)); got != tc.kind {
				t.Fatalf("expected %s, got %q", tc.kind, got)
			}
		})
	}
}
