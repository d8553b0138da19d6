package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newCollegeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "college",
		Short: "Create, rename, delete and list the colleges of a school",
	}

	var cascade bool
	deleteCmd := &cobra.Command{
		Use:   "delete SCHOOL COLLEGE",
		Short: "Delete a college; fails while students remain unless --cascade",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, s *session) error {
				if err := s.svc.DeleteCollege(ctx, args[0], args[1], cascade); err != nil {
					return err
				}
				a.printf("deleted college %s\n", args[1])
				return nil
			})
		},
	}
	deleteCmd.Flags().BoolVar(&cascade, "cascade", false, "also delete the college's students")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create SCHOOL NAME",
			Short: "Add a college to a school",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, s *session) error {
					college, err := s.svc.CreateCollege(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					a.printf("created college %s (%s)\n", college.Name, college.ID)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "rename SCHOOL COLLEGE NEW_NAME",
			Short: "Rename a college and update its students",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, s *session) error {
					college, err := s.svc.RenameCollege(ctx, args[0], args[1], args[2])
					if err != nil {
						return err
					}
					a.printf("renamed college to %s\n", college.Name)
					return nil
				})
			},
		},
		deleteCmd,
		&cobra.Command{
			Use:   "list SCHOOL",
			Short: "List the colleges of a school",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, s *session) error {
					colleges, err := s.svc.ListColleges(ctx, args[0])
					if err != nil {
						return err
					}
					for _, college := range colleges {
						a.printf("%s\t%s\n", college.ID, college.Name)
					}
					return nil
				})
			},
		},
	)
	return cmd
}
