package integrity

import (
	"fmt"
	"strings"

	"schoolcore/pkg/domain"
)

// Validate checks op against view. The first failing check wins; on success
// the Approval describes every record the operation touches.
func Validate(view domain.TransactionView, op Operation) (Approval, error) {
	switch op := op.(type) {
	case CreateSchool:
		return validateCreateSchool(view, op)
	case RenameSchool:
		return validateRenameSchool(view, op)
	case DeleteSchool:
		return validateDeleteSchool(view, op)
	case CreateCollege:
		return validateCreateCollege(view, op)
	case RenameCollege:
		return validateRenameCollege(view, op)
	case DeleteCollege:
		return validateDeleteCollege(view, op)
	case CreateStudent:
		return validateCreateStudent(view, op)
	case UpdateStudent:
		return validateUpdateStudent(view, op)
	case DeleteStudent:
		return validateDeleteStudent(view, op)
	default:
		return Approval{}, domain.InvalidInput("", fmt.Sprintf("unsupported operation %T", op))
	}
}

// ResolveSchool finds a school by ID, then by name.
func ResolveSchool(view domain.TransactionView, ref string) (domain.School, error) {
	if strings.TrimSpace(ref) == "" {
		return domain.School{}, domain.InvalidInput(domain.EntitySchool, "school reference required")
	}
	if school, ok := view.FindSchool(ref); ok {
		return school, nil
	}
	for _, school := range view.ListSchools() {
		if school.Name == ref {
			return school, nil
		}
	}
	return domain.School{}, domain.NotFound(domain.EntitySchool, ref)
}

// ResolveCollege finds a college of the given school by ID, then by name. An
// ID naming another school's college is a scope mismatch.
func ResolveCollege(view domain.TransactionView, school domain.School, ref string) (domain.College, error) {
	if strings.TrimSpace(ref) == "" {
		return domain.College{}, domain.InvalidInput(domain.EntityCollege, "college reference required")
	}
	byID, foundByID := view.FindCollege(ref)
	if foundByID && byID.SchoolID == school.ID {
		return byID, nil
	}
	if named := collegeNamed(view, school.ID, ref); named != nil {
		return *named, nil
	}
	if foundByID {
		return domain.College{}, domain.ScopeMismatch(domain.EntityCollege, ref,
			fmt.Sprintf("college %q does not belong to school %q", ref, school.Name))
	}
	return domain.College{}, domain.NotFound(domain.EntityCollege, ref)
}

func collegeNamed(view domain.TransactionView, schoolID, name string) *domain.College {
	matches := view.ScanColleges(func(c domain.College) bool { return c.SchoolID == schoolID && c.Name == name })
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

func checkName(entity domain.EntityType, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.InvalidInput(entity, field+" required")
	}
	if len(value) > MaxNameLength {
		return domain.InvalidInput(entity, fmt.Sprintf("%s longer than %d characters", field, MaxNameLength))
	}
	return nil
}

func schoolNameTaken(view domain.TransactionView, name string) bool {
	for _, school := range view.ListSchools() {
		if school.Name == name {
			return true
		}
	}
	return false
}

func studentsOfSchool(view domain.TransactionView, schoolID string) []domain.Student {
	return view.ScanStudents(func(s domain.Student) bool { return s.SchoolID == schoolID })
}

func studentsOfCollege(view domain.TransactionView, collegeID string) []domain.Student {
	return view.ScanStudents(func(s domain.Student) bool { return s.InCollege(collegeID) })
}

func validateCreateSchool(view domain.TransactionView, op CreateSchool) (Approval, error) {
	if err := checkName(domain.EntitySchool, "name", op.Name); err != nil {
		return Approval{}, err
	}
	if schoolNameTaken(view, op.Name) {
		return Approval{}, domain.DuplicateName(domain.EntitySchool, op.Name)
	}
	return Approval{School: domain.School{Name: op.Name}}, nil
}

func validateRenameSchool(view domain.TransactionView, op RenameSchool) (Approval, error) {
	if err := checkName(domain.EntitySchool, "name", op.NewName); err != nil {
		return Approval{}, err
	}
	school, err := ResolveSchool(view, op.School)
	if err != nil {
		return Approval{}, err
	}
	if schoolNameTaken(view, op.NewName) {
		return Approval{}, domain.DuplicateName(domain.EntitySchool, op.NewName)
	}
	return Approval{School: school}, nil
}

func validateDeleteSchool(view domain.TransactionView, op DeleteSchool) (Approval, error) {
	school, err := ResolveSchool(view, op.School)
	if err != nil {
		return Approval{}, err
	}
	return Approval{
		School:     school,
		Colleges:   view.ScanColleges(func(c domain.College) bool { return c.SchoolID == school.ID }),
		Dependents: studentsOfSchool(view, school.ID),
	}, nil
}

func validateCreateCollege(view domain.TransactionView, op CreateCollege) (Approval, error) {
	if err := checkName(domain.EntityCollege, "name", op.Name); err != nil {
		return Approval{}, err
	}
	school, err := ResolveSchool(view, op.School)
	if err != nil {
		return Approval{}, err
	}
	if collegeNamed(view, school.ID, op.Name) != nil {
		return Approval{}, domain.DuplicateName(domain.EntityCollege, op.Name)
	}
	return Approval{School: school, College: &domain.College{SchoolID: school.ID, Name: op.Name}}, nil
}

func validateRenameCollege(view domain.TransactionView, op RenameCollege) (Approval, error) {
	if err := checkName(domain.EntityCollege, "name", op.NewName); err != nil {
		return Approval{}, err
	}
	school, err := ResolveSchool(view, op.School)
	if err != nil {
		return Approval{}, err
	}
	college, err := ResolveCollege(view, school, op.College)
	if err != nil {
		return Approval{}, err
	}
	if collegeNamed(view, school.ID, op.NewName) != nil {
		return Approval{}, domain.DuplicateName(domain.EntityCollege, op.NewName)
	}
	return Approval{School: school, College: &college, Dependents: studentsOfCollege(view, college.ID)}, nil
}

func validateDeleteCollege(view domain.TransactionView, op DeleteCollege) (Approval, error) {
	school, err := ResolveSchool(view, op.School)
	if err != nil {
		return Approval{}, err
	}
	college, err := ResolveCollege(view, school, op.College)
	if err != nil {
		return Approval{}, err
	}
	dependents := studentsOfCollege(view, college.ID)
	if len(dependents) > 0 && !op.Cascade {
		return Approval{}, domain.HasDependents(domain.EntityCollege, college.Name, len(dependents))
	}
	return Approval{School: school, College: &college, Dependents: dependents}, nil
}

func validateCreateStudent(view domain.TransactionView, op CreateStudent) (Approval, error) {
	in := op.Student
	if err := checkName(domain.EntityStudent, "id", in.ID); err != nil {
		return Approval{}, err
	}
	if err := checkName(domain.EntityStudent, "first name", in.FirstName); err != nil {
		return Approval{}, err
	}
	if err := checkName(domain.EntityStudent, "last name", in.LastName); err != nil {
		return Approval{}, err
	}
	if strings.TrimSpace(in.School) == "" {
		return Approval{}, domain.InvalidInput(domain.EntityStudent, "school required")
	}
	if _, exists := view.FindStudent(in.ID); exists {
		return Approval{}, domain.DuplicateID(domain.EntityStudent, in.ID)
	}
	school, err := ResolveSchool(view, in.School)
	if err != nil {
		return Approval{}, err
	}
	if op.RequireCollege && strings.TrimSpace(in.College) == "" {
		return Approval{}, domain.InvalidInput(domain.EntityStudent, "college required")
	}
	student := domain.Student{
		Base:      domain.Base{ID: in.ID},
		FirstName: in.FirstName,
		LastName:  in.LastName,
		SchoolID:  school.ID,
	}
	approval := Approval{School: school, Student: &student}
	if strings.TrimSpace(in.College) != "" {
		college, err := ResolveCollege(view, school, in.College)
		if err != nil {
			return Approval{}, err
		}
		assignCollege(&student, college)
		approval.College = &college
	}
	return approval, nil
}

func assignCollege(s *domain.Student, c domain.College) {
	id := c.ID
	s.CollegeID = &id
	s.College = c.Name
}

func validateUpdateStudent(view domain.TransactionView, op UpdateStudent) (Approval, error) {
	current, ok := view.FindStudent(op.ID)
	if !ok {
		return Approval{}, domain.NotFound(domain.EntityStudent, op.ID)
	}
	patch := op.Patch
	if patch.FirstName != nil {
		if err := checkName(domain.EntityStudent, "first name", *patch.FirstName); err != nil {
			return Approval{}, err
		}
	}
	if patch.LastName != nil {
		if err := checkName(domain.EntityStudent, "last name", *patch.LastName); err != nil {
			return Approval{}, err
		}
	}
	if patch.ClearCollege && patch.College != nil {
		return Approval{}, domain.InvalidInput(domain.EntityStudent, "cannot set and clear college together")
	}
	if patch.ClearCollege && op.RequireCollege {
		return Approval{}, domain.InvalidInput(domain.EntityStudent, "college required")
	}

	updated := current
	if patch.FirstName != nil {
		updated.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		updated.LastName = *patch.LastName
	}

	// School.
	var school domain.School
	switch {
	case patch.School != nil:
		resolved, err := ResolveSchool(view, *patch.School)
		if err != nil {
			return Approval{}, err
		}
		school = resolved
	case current.SchoolID != "":
		existing, ok := view.FindSchool(current.SchoolID)
		if !ok {
			return Approval{}, domain.NotFound(domain.EntitySchool, current.SchoolID)
		}
		school = existing
	}
	schoolChanged := school.ID != current.SchoolID
	updated.SchoolID = school.ID

	// College.
	approval := Approval{School: school}
	switch {
	case patch.College != nil:
		if school.ID == "" {
			return Approval{}, domain.ScopeMismatch(domain.EntityStudent, op.ID,
				fmt.Sprintf("student %q has no school to resolve college %q in", op.ID, *patch.College))
		}
		college, err := ResolveCollege(view, school, *patch.College)
		if err != nil {
			return Approval{}, err
		}
		assignCollege(&updated, college)
		approval.College = &college
	case patch.ClearCollege:
		updated.CollegeID = nil
		updated.College = ""
	case current.HasCollege():
		college, ok := view.FindCollege(*current.CollegeID)
		if !ok {
			return Approval{}, domain.NotFound(domain.EntityCollege, *current.CollegeID)
		}
		// Scope: a school move must bring a college from the new school.
		if schoolChanged && college.SchoolID != school.ID {
			return Approval{}, domain.ScopeMismatch(domain.EntityStudent, op.ID,
				fmt.Sprintf("college %q is not part of school %q", college.Name, school.Name))
		}
		approval.College = &college
	}
	approval.Student = &updated
	return approval, nil
}

func validateDeleteStudent(view domain.TransactionView, op DeleteStudent) (Approval, error) {
	current, ok := view.FindStudent(op.ID)
	if !ok {
		return Approval{}, domain.NotFound(domain.EntityStudent, op.ID)
	}
	approval := Approval{Student: &current}
	if school, ok := view.FindSchool(current.SchoolID); ok {
		approval.School = school
	}
	return approval, nil
}
