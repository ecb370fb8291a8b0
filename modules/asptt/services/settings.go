package services

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iota-uz/asptt-sync/pkg/configuration"
	"github.com/iota-uz/asptt-sync/pkg/constants"
)

// Settings are passed explicitly into every preview and commit; the engine
// never reads configuration on its own.
type Settings struct {
	DefaultSeasonEndYear int `validate:"gte=1900,lte=2100"`
	AutoApproveThreshold int `validate:"gte=0,lte=100"`
	RollbackEnabled      bool
	AutoSaveAlias        bool
	PreviewMinRows       int `validate:"gte=1"`
	PreviewMaxRows       int `validate:"gtefield=PreviewMinRows"`
	PreviewDefaultRows   int `validate:"gtefield=PreviewMinRows,ltefield=PreviewMaxRows"`
}

func SettingsFrom(opts configuration.ImportOptions, now time.Time) Settings {
	return Settings{
		DefaultSeasonEndYear: opts.SeasonEndYear(now),
		AutoApproveThreshold: opts.AutoApproveThreshold,
		RollbackEnabled:      opts.RollbackEnabled,
		AutoSaveAlias:        opts.AutoSaveAlias,
		PreviewMinRows:       opts.PreviewMinRows,
		PreviewMaxRows:       opts.PreviewMaxRows,
		PreviewDefaultRows:   opts.PreviewDefaultRows,
	}
}

func (s Settings) Validate() error {
	if err := constants.Validate.Struct(s); err != nil {
		return newServiceError(http.StatusBadRequest, CodeInvalidParams, describeValidation(err), err)
	}
	return nil
}

// PreviewWindow clamps a requested window into the configured bounds; 0 means default.
func (s Settings) PreviewWindow(requested int) int {
	if requested <= 0 {
		requested = s.PreviewDefaultRows
	}
	if requested < s.PreviewMinRows {
		return s.PreviewMinRows
	}
	if requested > s.PreviewMaxRows {
		return s.PreviewMaxRows
	}
	return requested
}

// validateParams checks request structs against their validate tags.
func validateParams(p any) error {
	if err := constants.Validate.Struct(p); err != nil {
		return newServiceError(http.StatusBadRequest, CodeInvalidParams, describeValidation(err), err)
	}
	return nil
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("invalid %s: must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("invalid %s: must satisfy %s", fe.Field(), fe.Tag())
}
