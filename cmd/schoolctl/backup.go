package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newBackupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the directory to, or restore it from, the blob store",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Write a snapshot of the whole directory",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.run(cmd, func(ctx context.Context, s *session) error {
					store, err := a.openBlob(ctx, s)
					if err != nil {
						return err
					}
					info, err := s.svc.Backup(ctx, store)
					if err != nil {
						return err
					}
					a.printf("wrote %s (%d bytes)\n", info.Key, info.Size)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "restore [KEY]",
			Short: "Replace the directory with a snapshot, the latest when KEY is omitted",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				key := ""
				if len(args) == 1 {
					key = args[0]
				}
				return a.run(cmd, func(ctx context.Context, s *session) error {
					store, err := a.openBlob(ctx, s)
					if err != nil {
						return err
					}
					snapshot, err := s.svc.Restore(ctx, store, key)
					if err != nil {
						return err
					}
					a.printf("restored %d schools, %d colleges, %d students\n",
						len(snapshot.Schools), len(snapshot.Colleges), len(snapshot.Students))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored snapshots, oldest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.run(cmd, func(ctx context.Context, s *session) error {
					store, err := a.openBlob(ctx, s)
					if err != nil {
						return err
					}
					infos, err := s.svc.Backups(ctx, store)
					if err != nil {
						return err
					}
					for _, info := range infos {
						a.printf("%s\t%d\n", info.Key, info.Size)
					}
					return nil
				})
			},
		},
	)
	return cmd
}
