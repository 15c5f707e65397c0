package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/mentor-relay/backend/internal/analysis/failure"
)

func newClassifyCmd() *cobra.Command {
	var backends []string

	cmd := &cobra.Command{
		Use:   "classify <error text>",
		Short: "Show the user-facing message for a raw upstream error",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report := failure.New(backends...).Analyze(errors.New(strings.Join(args, " ")))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "category: %s\n\n%s\n\nlogged as:\n%s\n", report.Category, report.Text, report.LogText())
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&backends, "backend", nil, "extra backend names treated as network failures")
	return cmd
}
