package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newSchoolCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "school",
		Short: "Create, rename, delete and list schools",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create NAME",
			Short: "Create a school",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, s *session) error {
					school, err := s.svc.CreateSchool(ctx, args[0])
					if err != nil {
						return err
					}
					a.printf("created school %s (%s)\n", school.Name, school.ID)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "rename SCHOOL NEW_NAME",
			Short: "Rename a school",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, s *session) error {
					school, err := s.svc.RenameSchool(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					a.printf("renamed school to %s\n", school.Name)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete SCHOOL",
			Short: "Delete a school with all of its colleges and students",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, s *session) error {
					if err := s.svc.DeleteSchool(ctx, args[0]); err != nil {
						return err
					}
					a.printf("deleted school %s\n", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List schools",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.run(cmd, func(ctx context.Context, s *session) error {
					schools, err := s.svc.ListSchools(ctx)
					if err != nil {
						return err
					}
					for _, school := range schools {
						a.printf("%s\t%s\n", school.ID, school.Name)
					}
					return nil
				})
			},
		},
	)
	return cmd
}
