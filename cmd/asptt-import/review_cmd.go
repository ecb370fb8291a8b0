package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/review"
	"github.com/iota-uz/asptt-sync/modules/asptt/services"
)

func newReviewCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Move linked documents through the review workflow",
	}
	for _, a := range []review.Action{review.ActionApprove, review.ActionReject, review.ActionTrash, review.ActionRestore} {
		cmd.AddCommand(newReviewActionCmd(g, a))
	}
	cmd.AddCommand(newReviewDeleteCmd(g))
	return cmd
}

func newReviewActionCmd(g *globalOptions, action review.Action) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " ID...",
		Short: fmt.Sprintf("Apply %s to one or more documents", action),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "document id")
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), g, func(ctx context.Context, rt *runtime) error {
				if len(ids) == 1 {
					res, err := rt.reviews.Transition(ctx, ids[0], action)
					if err != nil {
						return fromService(err, true)
					}
					return writeJSONLine(cmd.OutOrStdout(), res)
				}
				res, err := rt.reviews.Bulk(ctx, ids, action)
				if err != nil {
					return fromService(err, true)
				}
				if err := writeJSONLine(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if res.Failed > 0 {
					return withCode(exitValidation, fmt.Errorf("%s failed for %d of %d documents", action, res.Failed, len(ids)))
				}
				return nil
			})
		},
	}
}

func newReviewDeleteCmd(g *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Permanently delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "document id")
			if err != nil {
				return err
			}
			if !yes {
				return withCode(exitSafetyNet, fmt.Errorf("refusing to delete document %d without --yes", id))
			}
			return withRuntime(cmd.Context(), g, func(ctx context.Context, rt *runtime) error {
				res, err := rt.reviews.Delete(ctx, id, true)
				if err != nil {
					return fromService(err, true)
				}
				return writeJSONLine(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm permanent deletion")
	return cmd
}

func newRelinkCmd(g *globalOptions) *cobra.Command {
	var req services.RelinkRequest
	cmd := &cobra.Command{
		Use:   "relink ID",
		Short: "Re-run person matching for a document against another club",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "document id")
			if err != nil {
				return err
			}
			if req.ClubID <= 0 {
				return withCode(exitUsage, fmt.Errorf("--club is required"))
			}
			return withRuntime(cmd.Context(), g, func(ctx context.Context, rt *runtime) error {
				res, err := rt.reviews.SetClub(ctx, id, req)
				if err != nil {
					return fromService(err, true)
				}
				return writeJSONLine(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().Int64Var(&req.ClubID, "club", 0, "Target club id")
	cmd.Flags().Int64Var(&req.LicenseeHint, "licensee", 0, "Pick this licensee when several match")
	cmd.Flags().BoolVar(&req.SaveAlias, "save-alias", false, "Learn the document's club note as an alias of the club")
	return cmd
}

func newAliasCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Manage club aliases",
	}
	var clubID int64
	save := &cobra.Command{
		Use:   "save TEXT",
		Short: "Save TEXT as an alias of a club (first writer wins)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if clubID <= 0 {
				return withCode(exitUsage, fmt.Errorf("--club is required"))
			}
			return withRuntime(cmd.Context(), g, func(ctx context.Context, rt *runtime) error {
				res, err := rt.imports.SaveAlias(ctx, clubID, args[0])
				if err != nil {
					return fromService(err, true)
				}
				return writeJSONLine(cmd.OutOrStdout(), res)
			})
		},
	}
	save.Flags().Int64Var(&clubID, "club", 0, "Club id")
	cmd.AddCommand(save)
	return cmd
}
