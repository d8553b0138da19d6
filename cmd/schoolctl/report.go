package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"schoolcore/internal/core"
)

func newReportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print every school with its colleges and students",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, s *session) error {
				rows, err := s.svc.JoinAll(ctx)
				if err != nil {
					return err
				}
				return writeReport(a.out, rows)
			})
		},
	}
}

func writeReport(w io.Writer, rows []core.JoinRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCHOOL\tCOLLEGE\tSTUDENT")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", row.School, orNull(row.College), orNull(row.Student))
	}
	return tw.Flush()
}

func orNull(s *string) string {
	if s == nil {
		return "NULL"
	}
	return *s
}
