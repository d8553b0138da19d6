package main

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"schoolcore/internal/core"
)

func newStudentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "student",
		Short: "Manage students",
	}
	cmd.AddCommand(
		newStudentCreateCmd(a),
		newStudentUpdateCmd(a),
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete a student",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, s *session) error {
					if err := s.svc.DeleteStudent(ctx, args[0]); err != nil {
						return err
					}
					a.printf("deleted student %s\n", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show ID",
			Short: "Show a student",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, s *session) error {
					student, err := s.svc.GetStudent(ctx, args[0])
					if err != nil {
						return err
					}
					a.printStudent(student)
					return nil
				})
			},
		},
		newStudentListCmd(a),
		&cobra.Command{
			Use:   "fullname ID",
			Short: `Print a student's name as "Last First"`,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, s *session) error {
					name, err := s.svc.FullName(ctx, args[0])
					if err != nil {
						return err
					}
					a.printf("%s\n", name)
					return nil
				})
			},
		},
	)
	return cmd
}

func newStudentCreateCmd(a *app) *cobra.Command {
	var school, college string
	cmd := &cobra.Command{
		Use:   "create ID FIRST_NAME LAST_NAME",
		Short: "Register a student",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, s *session) error {
				student, err := s.svc.CreateStudent(ctx, core.NewStudent{
					ID:        args[0],
					FirstName: args[1],
					LastName:  args[2],
					School:    school,
					College:   college,
				})
				if err != nil {
					return err
				}
				a.printStudent(student)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&school, "school", "", "school name or ID (required)")
	cmd.Flags().StringVar(&college, "college", "", "college name or ID")
	_ = cmd.MarkFlagRequired("school")
	return cmd
}

func newStudentUpdateCmd(a *app) *cobra.Command {
	var first, last, school, college string
	var clearCollege bool
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change the given fields of a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch core.StudentPatch
			flags := cmd.Flags()
			if flags.Changed("first") {
				patch.FirstName = &first
			}
			if flags.Changed("last") {
				patch.LastName = &last
			}
			if flags.Changed("school") {
				patch.School = &school
			}
			if flags.Changed("college") {
				patch.College = &college
			}
			patch.ClearCollege = clearCollege
			return a.run(cmd, func(ctx context.Context, s *session) error {
				student, err := s.svc.UpdateStudent(ctx, args[0], patch)
				if err != nil {
					return err
				}
				a.printStudent(student)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&first, "first", "", "new first name")
	cmd.Flags().StringVar(&last, "last", "", "new last name")
	cmd.Flags().StringVar(&school, "school", "", "move to this school")
	cmd.Flags().StringVar(&college, "college", "", "move to this college")
	cmd.Flags().BoolVar(&clearCollege, "clear-college", false, "detach the student from its college")
	return cmd
}

func newStudentListCmd(a *app) *cobra.Command {
	var school, college string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List students, optionally of one school or college",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, s *session) error {
				students, err := s.svc.ListStudents(ctx, school, college)
				if err != nil {
					return err
				}
				for _, student := range sortedStudents(students) {
					a.printStudent(student)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&school, "school", "", "school name or ID")
	cmd.Flags().StringVar(&college, "college", "", "college name or ID (needs --school)")
	return cmd
}

func sortedStudents(students map[string]core.Student) []core.Student {
	out := make([]core.Student, 0, len(students))
	for _, s := range students {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (a *app) printStudent(s core.Student) {
	if s.HasCollege() {
		a.printf("%s: %s (%s)\n", s.ID, s.FullName(), s.College)
		return
	}
	a.printf("%s: %s\n", s.ID, s.FullName())
}
