package core

import (
	"context"
	"fmt"

	"schoolcore/pkg/domain"
)

// UniqueNamesRule blocks duplicate school names and duplicate college names
// within one school.
func UniqueNamesRule() domain.Rule {
	return uniqueNamesRule{}
}

type uniqueNamesRule struct{}

func (uniqueNamesRule) Name() string { return "unique_names" }

func (uniqueNamesRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	schools := make(map[string]string)
	for _, school := range view.ListSchools() {
		if first, dup := schools[school.Name]; dup {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "unique_names",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("school name %q used by %s and %s", school.Name, first, school.ID),
				Entity:   domain.EntitySchool,
				EntityID: school.ID,
			})
			continue
		}
		schools[school.Name] = school.ID
	}

	type scopedName struct{ school, name string }
	colleges := make(map[scopedName]string)
	for _, college := range view.ListColleges() {
		key := scopedName{college.SchoolID, college.Name}
		if first, dup := colleges[key]; dup {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "unique_names",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("college name %q used twice in school %s by %s and %s", college.Name, college.SchoolID, first, college.ID),
				Entity:   domain.EntityCollege,
				EntityID: college.ID,
			})
			continue
		}
		colleges[key] = college.ID
	}

	return res, nil
}
