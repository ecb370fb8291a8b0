package row

import (
	"fmt"
	"strings"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/normalize"
)

// Mapping binds raw CSV header text to semantic columns. Headers absent from
// the mapping are ignored.
type Mapping map[string]Column

var headerAliases = map[string]Column{
	"NOM":               ColumnLastName,
	"NOM DE FAMILLE":    ColumnLastName,
	"LAST NAME":         ColumnLastName,
	"LASTNAME":          ColumnLastName,
	"PRENOM":            ColumnFirstName,
	"FIRST NAME":        ColumnFirstName,
	"FIRSTNAME":         ColumnFirstName,
	"DATE DE NAISSANCE": ColumnBirthdate,
	"NE LE":             ColumnBirthdate,
	"NAISSANCE":         ColumnBirthdate,
	"BIRTHDATE":         ColumnBirthdate,
	"DATE OF BIRTH":     ColumnBirthdate,
	"SAISON":            ColumnSeason,
	"SEASON":            ColumnSeason,
	"N LICENCE":         ColumnLicenceNumber,
	"NO LICENCE":        ColumnLicenceNumber,
	"NUMERO LICENCE":    ColumnLicenceNumber,
	"NUMERO DE LICENCE": ColumnLicenceNumber,
	"LICENCE":           ColumnLicenceNumber,
	"LICENCE NUMBER":    ColumnLicenceNumber,
	"DATE DE CREATION":  ColumnCreatedAt,
	"CREE LE":           ColumnCreatedAt,
	"CREATED AT":        ColumnCreatedAt,
	"NOTE":              ColumnClubNote,
	"CLUB":              ColumnClubNote,
	"ASSOCIATION":       ColumnClubNote,
	"SEXE":              ColumnSex,
	"GENRE":             ColumnSex,
	"SEX":               ColumnSex,
	"GENDER":            ColumnSex,
}

// SuggestMapping guesses a mapping from header labels. The first header that
// claims a column wins, so the suggestion is stable for a given header row.
func SuggestMapping(header []string) Mapping {
	out := Mapping{}
	taken := map[Column]struct{}{}
	for _, h := range header {
		col, ok := headerAliases[normalize.Name(h)]
		if !ok {
			continue
		}
		if _, dup := taken[col]; dup {
			continue
		}
		taken[col] = struct{}{}
		out[h] = col
	}
	return out
}

// Validate rejects unknown column ids and two headers bound to the same column.
func (m Mapping) Validate(header []string) error {
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[h] = struct{}{}
	}
	seen := map[Column]string{}
	for h, col := range m {
		if !col.Valid() {
			return fmt.Errorf("unknown column %q for header %q", col, h)
		}
		if _, ok := present[h]; !ok {
			return fmt.Errorf("mapped header %q not present in file", h)
		}
		if other, dup := seen[col]; dup {
			return fmt.Errorf("column %q mapped twice (%q, %q)", col, other, h)
		}
		seen[col] = h
	}
	return nil
}

// Has reports whether any header is bound to c.
func (m Mapping) Has(c Column) bool {
	for _, col := range m {
		if col == c {
			return true
		}
	}
	return false
}

// Decoder turns records into Rows for one header/mapping pair.
type Decoder struct {
	positions map[Column]int
}

func NewDecoder(header []string, mapping Mapping) *Decoder {
	positions := map[Column]int{}
	for i, h := range header {
		col, ok := mapping[strings.TrimSpace(h)]
		if !ok {
			continue
		}
		if _, dup := positions[col]; dup {
			continue
		}
		positions[col] = i
	}
	return &Decoder{positions: positions}
}

func (d *Decoder) Decode(line int, record []string) Row {
	r := Row{Line: line, Raw: append([]string(nil), record...)}
	for _, c := range Columns {
		i, ok := d.positions[c]
		if !ok {
			continue
		}
		cell := ""
		if i < len(record) {
			cell = record[i]
		}
		r.set(c, Mapped(cell))
	}
	return r
}
