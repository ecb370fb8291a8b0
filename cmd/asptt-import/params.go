package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
)

// paramsFlags overrides the stored preview state for one invocation. Only
// flags given on the command line are applied.
type paramsFlags struct {
	forceClub  int64
	pinnedClub int64
	pinApply   bool
	season     int
	autoAlias  bool
	rows       int
	save       bool
}

func (p *paramsFlags) register(cmd *cobra.Command, withRows bool) {
	cmd.Flags().Int64Var(&p.forceClub, "force-club", 0, "Resolve every row to this club id (0 clears)")
	cmd.Flags().Int64Var(&p.pinnedClub, "pin-club", 0, "Pinned club id used while --pin-apply is set")
	cmd.Flags().BoolVar(&p.pinApply, "pin-apply", false, "Apply the pinned club")
	cmd.Flags().IntVar(&p.season, "season", 0, "Season end year used when the file has no season column (0 clears)")
	cmd.Flags().BoolVar(&p.autoAlias, "auto-save-alias", false, "Learn the club hint as an alias when a club is forced")
	cmd.Flags().BoolVar(&p.save, "save", false, "Persist the overrides as the file's preview state")
	if withRows {
		cmd.Flags().IntVar(&p.rows, "rows", 0, "Preview window size (0 uses the configured default)")
	}
}

func (p *paramsFlags) apply(cmd *cobra.Command, params reconcile.Params) reconcile.Params {
	changed := cmd.Flags().Changed
	if changed("force-club") {
		params.ForceClubID = p.forceClub
	}
	if changed("pin-club") {
		params.PinnedClubID = p.pinnedClub
	}
	if changed("pin-apply") {
		params.PinnedApply = p.pinApply
	}
	if changed("season") {
		params.SeasonOverride = p.season
	}
	if changed("auto-save-alias") {
		params.AutoSaveAlias = p.autoAlias
	}
	if changed("rows") {
		params.PreviewRows = p.rows
	}
	return params
}

func (p *paramsFlags) resolve(ctx context.Context, rt *runtime, cmd *cobra.Command, handle string) (reconcile.Params, error) {
	params, err := rt.imports.Params(ctx, handle)
	if err != nil {
		return reconcile.Params{}, fromService(err, false)
	}
	params = p.apply(cmd, params)
	if p.save {
		if err := rt.imports.SaveParams(ctx, handle, params); err != nil {
			return reconcile.Params{}, fromService(err, true)
		}
	}
	return params, nil
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(stringsTrim(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, withCode(exitUsage, fmt.Errorf("invalid %s %q", what, s))
	}
	return id, nil
}

func parseIDs(args []string, what string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseID(a, what)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
