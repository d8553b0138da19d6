package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"schoolcore/internal/core"
)

func newDemoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Walk through the single-school and multi-school examples",
		Long: `demo runs two walkthroughs against the configured store: one school
edited through its scoped handle, then two schools exercising cascades and
cross-school moves. Both leave the directory as they found it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, s *session) error {
				if err := a.scopeDemo(ctx, s.svc); err != nil {
					return err
				}
				return a.directoryDemo(ctx, s.svc)
			})
		},
	}
}

func (a *app) scopeDemo(ctx context.Context, svc *core.Service) error {
	school, err := svc.EnsureScope(ctx, "A University")
	if err != nil {
		return err
	}

	a.printf("College example\n")
	for _, name := range []string{"College of Literature", "College of Science"} {
		if _, err := school.AddCollege(ctx, name); err != nil {
			return err
		}
	}
	if err := a.printColleges(ctx, school, "All colleges"); err != nil {
		return err
	}
	if _, err := school.UpdateCollege(ctx, "College of Literature", "College of Literature and Media"); err != nil {
		return err
	}
	if err := a.printColleges(ctx, school, "Updated colleges"); err != nil {
		return err
	}

	a.printf("\nStudent operations example\n")
	for _, st := range [][4]string{
		{"101", "Ame", "Johnson", "College of Literature and Media"},
		{"102", "Michael", "Williams", "College of Science"},
		{"103", "Sara", "Brown", "College of Science"},
	} {
		if _, err := school.AddStudent(ctx, st[0], st[1], st[2], st[3]); err != nil {
			return err
		}
	}
	a.printf("All students:\n")
	if err := a.printScopeStudents(ctx, school, ""); err != nil {
		return err
	}

	updated, err := school.UpdateStudent(ctx, "101", "", "Davis", "")
	if err != nil {
		return err
	}
	a.printf("\nUpdated student 101: ")
	a.printStudent(updated)
	full, err := school.FullName(ctx, "101")
	if err != nil {
		return err
	}
	a.printf("Full name of student 101: %s\n", full)

	a.printf("\nStudents in College of Science:\n")
	if err := a.printScopeStudents(ctx, school, "College of Science"); err != nil {
		return err
	}

	if err := school.DeleteStudent(ctx, "102"); err != nil {
		return err
	}
	a.printf("\nStudents after deleting 102:\n")
	if err := a.printScopeStudents(ctx, school, ""); err != nil {
		return err
	}

	if err := school.DeleteCollege(ctx, "College of Science", false); err != nil {
		a.printf("\nDelete College of Science without cascade: %v\n", err)
	}
	return svc.DeleteSchool(ctx, school.SchoolID())
}

func (a *app) printColleges(ctx context.Context, school *core.Scope, label string) error {
	names, err := school.Colleges(ctx)
	if err != nil {
		return err
	}
	a.printf("%s: %s\n", label, strings.Join(names, ", "))
	return nil
}

func (a *app) printScopeStudents(ctx context.Context, school *core.Scope, college string) error {
	students, err := school.ListStudents(ctx, college)
	if err != nil {
		return err
	}
	for _, st := range sortedStudents(students) {
		a.printStudent(st)
	}
	return nil
}

func (a *app) directoryDemo(ctx context.Context, svc *core.Service) error {
	a.printf("\nCRUD example\n\n1. Add data:\n")
	for _, name := range []string{"North University", "South University"} {
		school, err := svc.CreateSchool(ctx, name)
		if err != nil {
			return err
		}
		a.printf("added school %s\n", school.Name)
	}
	for _, c := range [][2]string{
		{"North University", "Computer Science"},
		{"North University", "Economics"},
		{"South University", "Law"},
	} {
		college, err := svc.CreateCollege(ctx, c[0], c[1])
		if err != nil {
			return err
		}
		a.printf("added college %s to %s\n", college.Name, c[0])
	}
	for _, st := range []core.NewStudent{
		{ID: "zhang", FirstName: "San", LastName: "Zhang", School: "North University", College: "Computer Science"},
		{ID: "li", FirstName: "Si", LastName: "Li", School: "North University", College: "Economics"},
		{ID: "wang", FirstName: "Wu", LastName: "Wang", School: "South University", College: "Law"},
		{ID: "zhao", FirstName: "Liu", LastName: "Zhao", School: "South University"},
	} {
		student, err := svc.CreateStudent(ctx, st)
		if err != nil {
			return err
		}
		a.printf("added student ")
		a.printStudent(student)
	}

	a.printf("\n2. Query all data:\n")
	if err := a.printReport(ctx, svc); err != nil {
		return err
	}

	a.printf("\n3. Update data:\n")
	renamed := "Sisi"
	if _, err := svc.UpdateStudent(ctx, "zhang", core.StudentPatch{FirstName: &renamed}); err != nil {
		return err
	}
	south, law := "South University", "Law"
	if _, err := svc.UpdateStudent(ctx, "li", core.StudentPatch{School: &south, College: &law}); err != nil {
		return err
	}
	if err := a.printReport(ctx, svc); err != nil {
		return err
	}

	a.printf("\n4. Delete data:\n")
	if err := svc.DeleteStudent(ctx, "zhao"); err != nil {
		return err
	}
	a.printf("deleted student zhao\n")
	if err := svc.DeleteCollege(ctx, "North University", "Computer Science", true); err != nil {
		return err
	}
	a.printf("deleted college Computer Science and its students\n")
	for _, name := range []string{"North University", "South University"} {
		if err := svc.DeleteSchool(ctx, name); err != nil {
			return err
		}
		a.printf("deleted school %s and everything under it\n", name)
	}

	a.printf("\n5. Final state:\n")
	return a.printReport(ctx, svc)
}

func (a *app) printReport(ctx context.Context, svc *core.Service) error {
	rows, err := svc.JoinAll(ctx)
	if err != nil {
		return err
	}
	return writeReport(a.out, rows)
}
