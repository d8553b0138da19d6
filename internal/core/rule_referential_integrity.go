package core

import (
	"context"
	"fmt"

	"schoolcore/pkg/domain"
)

// ReferentialIntegrityRule blocks any state where a college or student points
// at a missing school, or a student's college is missing, belongs to another
// school or carries a stale name.
func ReferentialIntegrityRule() domain.Rule {
	return referentialIntegrityRule{}
}

type referentialIntegrityRule struct{}

func (referentialIntegrityRule) Name() string { return "referential_integrity" }

func (referentialIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	for _, college := range view.ListColleges() {
		if _, ok := view.FindSchool(college.SchoolID); !ok {
			res.Violations = append(res.Violations, referentialViolation(domain.EntityCollege, college.ID,
				fmt.Sprintf("college %s references missing school %s", college.Name, college.SchoolID)))
		}
	}

	for _, student := range view.ListStudents() {
		if _, ok := view.FindSchool(student.SchoolID); !ok {
			res.Violations = append(res.Violations, referentialViolation(domain.EntityStudent, student.ID,
				fmt.Sprintf("student %s references missing school %s", student.ID, student.SchoolID)))
			continue
		}
		if !student.HasCollege() {
			if student.College != "" {
				res.Violations = append(res.Violations, referentialViolation(domain.EntityStudent, student.ID,
					fmt.Sprintf("student %s names college %s without a reference", student.ID, student.College)))
			}
			continue
		}
		college, ok := view.FindCollege(*student.CollegeID)
		switch {
		case !ok:
			res.Violations = append(res.Violations, referentialViolation(domain.EntityStudent, student.ID,
				fmt.Sprintf("student %s references missing college %s", student.ID, *student.CollegeID)))
		case college.SchoolID != student.SchoolID:
			res.Violations = append(res.Violations, referentialViolation(domain.EntityStudent, student.ID,
				fmt.Sprintf("student %s college %s belongs to another school", student.ID, college.Name)))
		case college.Name != student.College:
			res.Violations = append(res.Violations, referentialViolation(domain.EntityStudent, student.ID,
				fmt.Sprintf("student %s college name %q is stale, want %q", student.ID, student.College, college.Name)))
		}
	}

	return res, nil
}

func referentialViolation(entity domain.EntityType, id, message string) domain.Violation {
	return domain.Violation{
		Rule:     "referential_integrity",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   entity,
		EntityID: id,
	}
}
