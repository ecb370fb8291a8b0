package row

import "github.com/iota-uz/asptt-sync/modules/asptt/domain/normalize"

type Sex string

const (
	SexUnknown Sex = ""
	SexMale    Sex = "M"
	SexFemale  Sex = "F"
)

// ParseSex validates a free-text sex cell. Unrecognized values are SexUnknown
// and never take part in a tie-break.
func ParseSex(text string) Sex {
	switch normalize.Name(text) {
	case "M", "H", "MASCULIN", "HOMME", "MALE", "MAN":
		return SexMale
	case "F", "FEMININ", "FEMME", "FEMALE", "WOMAN":
		return SexFemale
	default:
		return SexUnknown
	}
}

func (s Sex) Known() bool { return s == SexMale || s == SexFemale }
