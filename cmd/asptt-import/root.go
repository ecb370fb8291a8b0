package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	operator string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var g globalOptions
	cmd := &cobra.Command{
		Use:           "asptt-import",
		Short:         "Stage, preview, commit and review ASPTT licence exports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&g.operator, "operator", defaultOperator(), "Operator name recorded in import logs")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Override LOG_LEVEL (silent|error|warn|info|debug)")

	cmd.AddCommand(newStageCmd(&g))
	cmd.AddCommand(newPreviewCmd(&g))
	cmd.AddCommand(newImportCmd(&g))
	cmd.AddCommand(newRollbackCmd(&g))
	cmd.AddCommand(newReviewCmd(&g))
	cmd.AddCommand(newRelinkCmd(&g))
	cmd.AddCommand(newAliasCmd(&g))
	cmd.AddCommand(newLogsCmd(&g))
	cmd.AddCommand(newExportErrorsCmd(&g))
	cmd.AddCommand(newDiscardCmd(&g))
	cmd.AddCommand(newMigrateCmd(&g))
	cmd.AddCommand(newServeCmd(&g))
	return cmd
}

func defaultOperator() string {
	for _, key := range []string{"ASPTT_OPERATOR", "USER"} {
		if v := stringsTrim(os.Getenv(key)); v != "" {
			return v
		}
	}
	return "cli"
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
