package reconcile

import "github.com/iota-uz/asptt-sync/modules/asptt/domain/row"

// Params are the operator choices for one staged file. Preview and commit
// replay the same Params.
type Params struct {
	Mapping row.Mapping `json:"mapping"`
	// ForceClubID overrides club resolution for the whole file.
	ForceClubID int64 `json:"force_club_id,omitempty" validate:"gte=0"`
	// PinnedClubID applies only while PinnedApply is set.
	PinnedClubID   int64 `json:"pinned_club_id,omitempty" validate:"gte=0"`
	PinnedApply    bool  `json:"pinned_apply,omitempty"`
	SeasonOverride int   `json:"season_override,omitempty" validate:"omitempty,gte=1900,lte=2100"`
	AutoSaveAlias  bool  `json:"auto_save_alias,omitempty"`
	PreviewRows    int   `json:"preview_rows,omitempty" validate:"gte=0"`
}
