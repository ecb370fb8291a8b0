package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/normalize"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/row"
)

const (
	minSeasonYear = 1900
	maxSeasonYear = 2100
)

var licencePattern = regexp.MustCompile(`^[0-9A-Z]{3,32}$`)

// Validation is the outcome of checking one row before any matching.
type Validation struct {
	Status        reconcile.Status // "" when the row is valid
	Detail        string
	SeasonEndYear int
	Birthdate     time.Time
	LicenceNumber string
}

func (v Validation) OK() bool { return v.Status == "" }

// ValidateRow checks season, then birthdate, then licence number; the first
// failure wins.
func ValidateRow(r row.Row, seasonOverride, defaultSeason int) Validation {
	season, ok := resolveSeason(r.Season, seasonOverride, defaultSeason)
	if !ok {
		return Validation{Status: reconcile.StatusInvalidSeason, Detail: "season out of range or unreadable"}
	}

	raw := r.Birthdate.String()
	if strings.TrimSpace(raw) == "" {
		return Validation{Status: reconcile.StatusInvalidBirth, Detail: "missing", SeasonEndYear: season}
	}
	birth, ok := normalize.ParseDate(raw)
	if !ok {
		return Validation{Status: reconcile.StatusInvalidBirth, Detail: "unparseable", SeasonEndYear: season}
	}

	licence := normalize.Licence(r.LicenceNumber.String())
	if licence == "" {
		return Validation{Status: reconcile.StatusInvalidNumber, Detail: "missing", SeasonEndYear: season, Birthdate: birth}
	}
	if !licencePattern.MatchString(licence) {
		return Validation{Status: reconcile.StatusInvalidNumber, Detail: "malformed", SeasonEndYear: season, Birthdate: birth}
	}

	return Validation{SeasonEndYear: season, Birthdate: birth, LicenceNumber: licence}
}

// resolveSeason takes the column when mapped and non-empty, else the file
// override, else the default.
func resolveSeason(col row.Field, override, fallback int) (int, bool) {
	if v, mapped := col.Value(); mapped && v != "" {
		y, ok := ParseSeason(v)
		if !ok {
			return 0, false
		}
		return y, inSeasonRange(y)
	}
	if override != 0 {
		return override, inSeasonRange(override)
	}
	return fallback, inSeasonRange(fallback)
}

// ParseSeason reads "2025", "2024-2025", "2024/2025" or "24/25" as an end year.
func ParseSeason(text string) (int, bool) {
	text = strings.TrimSpace(text)
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == '-' || r == '/' })
	switch len(parts) {
	case 1:
		if len(parts[0]) != 4 {
			return 0, false
		}
		y, err := strconv.Atoi(parts[0])
		return y, err == nil
	case 2:
		start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil {
			return 0, false
		}
		if len(strings.TrimSpace(parts[0])) == 2 && len(strings.TrimSpace(parts[1])) == 2 {
			start, end = 2000+start, 2000+end
		}
		if end != start+1 {
			return 0, false
		}
		return end, true
	default:
		return 0, false
	}
}

func inSeasonRange(y int) bool { return y >= minSeasonYear && y <= maxSeasonYear }
