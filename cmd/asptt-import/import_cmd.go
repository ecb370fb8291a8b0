package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
	"github.com/iota-uz/asptt-sync/modules/asptt/services"
)

func newStageCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stage FILE",
		Short: "Stage a licence export and print its handle and suggested mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Clean(args[0])
			f, err := os.Open(path)
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("open %s: %w", path, err))
			}
			defer func() { _ = f.Close() }()

			return withRuntime(cmd.Context(), g, func(ctx context.Context, rt *runtime) error {
				res, err := rt.imports.Stage(ctx, filepath.Base(path), f)
				if err != nil {
					return fromService(err, true)
				}
				return writeJSONLine(cmd.OutOrStdout(), struct {
					Status string `json:"status"`
					services.StageResult
				}{Status: "staged", StageResult: res})
			})
		},
	}
}

func newPreviewCmd(g *globalOptions) *cobra.Command {
	var pf paramsFlags
	cmd := &cobra.Command{
		Use:   "preview HANDLE",
		Short: "Resolve the first rows of a staged file without writing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), g, func(ctx context.Context, rt *runtime) error {
				params, err := pf.resolve(ctx, rt, cmd, args[0])
				if err != nil {
					return err
				}
				res, err := rt.imports.Preview(ctx, args[0], params, rt.settings)
				if err != nil {
					return fromService(err, false)
				}
				return writeJSONLine(cmd.OutOrStdout(), res)
			})
		},
	}
	pf.register(cmd, true)
	return cmd
}

func newImportCmd(g *globalOptions) *cobra.Command {
	var pf paramsFlags
	var apply bool
	cmd := &cobra.Command{
		Use:   "import HANDLE",
		Short: "Commit a staged file (dry-run unless --apply)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), g, func(ctx context.Context, rt *runtime) error {
				params, err := pf.resolve(ctx, rt, cmd, args[0])
				if err != nil {
					return err
				}
				sum, err := rt.imports.Commit(ctx, args[0], params, rt.settings, services.CommitOptions{DryRun: !apply})
				if err != nil {
					return fromService(err, apply)
				}
				return writeJSONLine(cmd.OutOrStdout(), sum)
			})
		},
	}
	pf.register(cmd, false)
	cmd.Flags().BoolVar(&apply, "apply", false, "Write to the database (default is dry-run)")
	return cmd
}

func newRollbackCmd(g *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Delete the documents and meta written by the latest commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return withCode(exitSafetyNet, fmt.Errorf("refusing to rollback without --yes"))
			}
			return withRuntime(cmd.Context(), g, func(ctx context.Context, rt *runtime) error {
				res, err := rt.imports.Rollback(ctx, rt.settings)
				if err != nil {
					return fromService(err, true)
				}
				return writeJSONLine(cmd.OutOrStdout(), struct {
					Status string `json:"status"`
					services.RollbackResult
				}{Status: "rolled_back", RollbackResult: res})
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm destructive rollback")
	return cmd
}

func newDiscardCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discard HANDLE",
		Short: "Remove a staged file and its preview state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), g, func(ctx context.Context, rt *runtime) error {
				if err := rt.imports.Discard(ctx, args[0]); err != nil {
					return fromService(err, true)
				}
				return writeJSONLine(cmd.OutOrStdout(), map[string]string{"status": "discarded", "handle": args[0]})
			})
		},
	}
}

func newLogsCmd(g *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List the most recent import runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), g, func(ctx context.Context, rt *runtime) error {
				logs, err := rt.imports.ListImportLogs(ctx, limit)
				if err != nil {
					return fromService(err, false)
				}
				return writeJSONLine(cmd.OutOrStdout(), map[string]any{"logs": logs})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", services.DefaultLogLimit, "Number of runs to list")
	return cmd
}

func newExportErrorsCmd(g *globalOptions) *cobra.Command {
	var pf paramsFlags
	var format, output string
	cmd := &cobra.Command{
		Use:   "export-errors HANDLE",
		Short: "Write the rows that would not be committed, with their status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := services.ParseExportFormat(stringsTrim(format))
			if err != nil {
				return withCode(exitUsage, err)
			}
			if stringsTrim(output) == "" {
				return withCode(exitUsage, fmt.Errorf("--output is required (use - for stdout)"))
			}
			return withRuntime(cmd.Context(), g, func(ctx context.Context, rt *runtime) error {
				params, err := pf.resolve(ctx, rt, cmd, args[0])
				if err != nil {
					return err
				}
				if output == "-" {
					_, err := rt.imports.ExportErrors(ctx, cmd.OutOrStdout(), args[0], params, rt.settings, f)
					return fromService(err, false)
				}
				return exportToFile(ctx, cmd, rt, args[0], params, f, filepath.Clean(output))
			})
		},
	}
	pf.register(cmd, false)
	cmd.Flags().StringVar(&format, "format", string(services.FormatCSV), "Output format (csv|xlsx)")
	cmd.Flags().StringVar(&output, "output", "", "Output file path, or - for stdout")
	return cmd
}

func exportToFile(ctx context.Context, cmd *cobra.Command, rt *runtime, handle string, params reconcile.Params, f services.ExportFormat, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("create %s: %w", path, err))
	}
	n, err := rt.imports.ExportErrors(ctx, out, handle, params, rt.settings, f)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fromService(err, false)
	}
	return writeJSONLine(cmd.OutOrStdout(), map[string]any{
		"status": "exported",
		"file":   path,
		"format": f,
		"rows":   n,
	})
}
