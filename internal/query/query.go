// Package query holds the read-side projections of the directory. Every
// function is pure over a domain.TransactionView.
package query

import (
	"sort"
	"strings"

	"schoolcore/pkg/domain"
)

// ListSchools returns every school ordered by name.
func ListSchools(view domain.TransactionView) []domain.School {
	schools := view.ListSchools()
	sort.SliceStable(schools, func(i, j int) bool { return schools[i].Name < schools[j].Name })
	return schools
}

// ListColleges returns the colleges of a school ordered by name.
func ListColleges(view domain.TransactionView, schoolID string) []domain.College {
	colleges := view.ScanColleges(func(c domain.College) bool { return c.SchoolID == schoolID })
	sort.SliceStable(colleges, func(i, j int) bool { return colleges[i].Name < colleges[j].Name })
	return colleges
}

// ListStudents returns students keyed by ID. An empty schoolID spans all
// schools; a non-empty collegeID narrows to that college.
func ListStudents(view domain.TransactionView, schoolID, collegeID string) map[string]domain.Student {
	students := view.ScanStudents(func(s domain.Student) bool {
		if schoolID != "" && s.SchoolID != schoolID {
			return false
		}
		return collegeID == "" || s.InCollege(collegeID)
	})
	out := make(map[string]domain.Student, len(students))
	for _, s := range students {
		out[s.ID] = s
	}
	return out
}

// HasCollege reports whether the school has a college with the given name.
func HasCollege(view domain.TransactionView, schoolID, name string) bool {
	return len(view.ScanColleges(func(c domain.College) bool { return c.SchoolID == schoolID && c.Name == name })) > 0
}

// FullName renders a student's name as "Last First".
func FullName(view domain.TransactionView, studentID string) (string, error) {
	student, ok := view.FindStudent(studentID)
	if !ok {
		return "", domain.NotFound(domain.EntityStudent, studentID)
	}
	return student.FullName(), nil
}

// JoinAll produces the school/college/student outer-join report.
func JoinAll(view domain.TransactionView) []domain.JoinRow {
	colleges := view.ListColleges()
	students := view.ListStudents()

	collegesBySchool := make(map[string][]domain.College)
	for _, c := range colleges {
		collegesBySchool[c.SchoolID] = append(collegesBySchool[c.SchoolID], c)
	}
	byCollege := make(map[string][]domain.Student)
	collegeless := make(map[string][]domain.Student)
	for _, s := range students {
		if s.HasCollege() {
			byCollege[*s.CollegeID] = append(byCollege[*s.CollegeID], s)
			continue
		}
		collegeless[s.SchoolID] = append(collegeless[s.SchoolID], s)
	}

	var rows []domain.JoinRow
	for _, school := range view.ListSchools() {
		start := len(rows)
		for _, c := range collegesBySchool[school.ID] {
			name := c.Name
			members := byCollege[c.ID]
			if len(members) == 0 {
				rows = append(rows, domain.JoinRow{School: school.Name, College: &name})
				continue
			}
			for _, s := range members {
				rows = append(rows, studentRow(school.Name, &name, s))
			}
		}
		for _, s := range collegeless[school.ID] {
			rows = append(rows, studentRow(school.Name, nil, s))
		}
		if len(rows) == start {
			rows = append(rows, domain.JoinRow{School: school.Name})
		}
	}
	return NormalizeJoin(rows)
}

func studentRow(school string, college *string, s domain.Student) domain.JoinRow {
	full := s.FullName()
	id := s.ID
	return domain.JoinRow{School: school, College: college, Student: &full, StudentID: &id}
}

// NormalizeJoin reconciles raw outer-join rows into the canonical report: a
// school's bare placeholder row is dropped when the school has other rows,
// duplicates are removed, and rows are sorted with SortJoinRows.
func NormalizeJoin(rows []domain.JoinRow) []domain.JoinRow {
	populated := make(map[string]bool)
	for _, r := range rows {
		if r.College != nil || r.Student != nil {
			populated[r.School] = true
		}
	}
	seen := make(map[string]bool, len(rows))
	out := make([]domain.JoinRow, 0, len(rows))
	for _, r := range rows {
		if r.College == nil && r.Student == nil && populated[r.School] {
			continue
		}
		key := rowKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	SortJoinRows(out)
	return out
}

func rowKey(r domain.JoinRow) string {
	parts := []string{r.School, deref(r.College), deref(r.StudentID), deref(r.Student)}
	return strings.Join(parts, "\x00")
}

func deref(s *string) string {
	if s == nil {
		return "\x01"
	}
	return *s
}

// SortJoinRows orders rows by school name, then college name, then student
// full name. A nil college or student sorts after every named value.
func SortJoinRows(rows []domain.JoinRow) {
	sort.SliceStable(rows, func(i, j int) bool { return CompareJoinRows(rows[i], rows[j]) < 0 })
}

// CompareJoinRows is the comparator behind SortJoinRows.
func CompareJoinRows(a, b domain.JoinRow) int {
	if c := strings.Compare(a.School, b.School); c != 0 {
		return c
	}
	if c := compareNilLast(a.College, b.College); c != 0 {
		return c
	}
	if c := compareNilLast(a.Student, b.Student); c != 0 {
		return c
	}
	return compareNilLast(a.StudentID, b.StudentID)
}

func compareNilLast(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return strings.Compare(*a, *b)
	}
}
