package integrity

import (
	"fmt"

	"schoolcore/pkg/domain"
)

// ValidateSnapshot checks a whole directory image before it replaces the
// current one. It enforces the same invariants as the per-operation checks:
// every record has an ID and a name, IDs and names are unique in scope,
// colleges and students belong to existing schools, and a student's college
// is in its own school under its current name.
func ValidateSnapshot(snapshot domain.Snapshot) error {
	schools := make(map[string]domain.School, len(snapshot.Schools))
	schoolNames := make(map[string]bool, len(snapshot.Schools))
	for _, school := range snapshot.Schools {
		if err := checkName(domain.EntitySchool, "id", school.ID); err != nil {
			return err
		}
		if err := checkName(domain.EntitySchool, "name", school.Name); err != nil {
			return err
		}
		if _, dup := schools[school.ID]; dup {
			return domain.DuplicateID(domain.EntitySchool, school.ID)
		}
		if schoolNames[school.Name] {
			return domain.DuplicateName(domain.EntitySchool, school.Name)
		}
		schools[school.ID] = school
		schoolNames[school.Name] = true
	}

	colleges := make(map[string]domain.College, len(snapshot.Colleges))
	collegeNames := make(map[[2]string]bool, len(snapshot.Colleges))
	for _, college := range snapshot.Colleges {
		if err := checkName(domain.EntityCollege, "id", college.ID); err != nil {
			return err
		}
		if err := checkName(domain.EntityCollege, "name", college.Name); err != nil {
			return err
		}
		if _, dup := colleges[college.ID]; dup {
			return domain.DuplicateID(domain.EntityCollege, college.ID)
		}
		if _, ok := schools[college.SchoolID]; !ok {
			return domain.NotFound(domain.EntitySchool, college.SchoolID)
		}
		scoped := [2]string{college.SchoolID, college.Name}
		if collegeNames[scoped] {
			return domain.DuplicateName(domain.EntityCollege, college.Name)
		}
		colleges[college.ID] = college
		collegeNames[scoped] = true
	}

	students := make(map[string]bool, len(snapshot.Students))
	for _, student := range snapshot.Students {
		if err := checkName(domain.EntityStudent, "id", student.ID); err != nil {
			return err
		}
		if err := checkName(domain.EntityStudent, "first name", student.FirstName); err != nil {
			return err
		}
		if err := checkName(domain.EntityStudent, "last name", student.LastName); err != nil {
			return err
		}
		if students[student.ID] {
			return domain.DuplicateID(domain.EntityStudent, student.ID)
		}
		students[student.ID] = true
		school, ok := schools[student.SchoolID]
		if !ok {
			return domain.NotFound(domain.EntitySchool, student.SchoolID)
		}
		if !student.HasCollege() {
			if student.College != "" {
				return domain.InvalidInput(domain.EntityStudent,
					fmt.Sprintf("student %q names college %q without referencing it", student.ID, student.College))
			}
			continue
		}
		college, ok := colleges[*student.CollegeID]
		if !ok {
			return domain.NotFound(domain.EntityCollege, *student.CollegeID)
		}
		if college.SchoolID != school.ID {
			return domain.ScopeMismatch(domain.EntityStudent, student.ID,
				fmt.Sprintf("college %q does not belong to school %q", college.Name, school.Name))
		}
		if student.College != college.Name {
			return domain.InvalidInput(domain.EntityStudent,
				fmt.Sprintf("student %q records college name %q, want %q", student.ID, student.College, college.Name))
		}
	}
	return nil
}
