// Package row defines the typed record every CSV line is decoded into.
package row

import (
	"strings"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/normalize"
)

type Column string

const (
	ColumnLastName      Column = "last_name"
	ColumnFirstName     Column = "first_name"
	ColumnBirthdate     Column = "birthdate"
	ColumnSeason        Column = "season"
	ColumnLicenceNumber Column = "licence_number"
	ColumnCreatedAt     Column = "created_at"
	ColumnClubNote      Column = "club_note"
	ColumnSex           Column = "sex"
)

var Columns = []Column{
	ColumnLastName,
	ColumnFirstName,
	ColumnBirthdate,
	ColumnSeason,
	ColumnLicenceNumber,
	ColumnCreatedAt,
	ColumnClubNote,
	ColumnSex,
}

func (c Column) Valid() bool {
	for _, known := range Columns {
		if c == known {
			return true
		}
	}
	return false
}

// Field is a semantic column value. The zero value is unmapped, which is not
// the same thing as a mapped column holding an empty cell.
type Field struct {
	value  string
	mapped bool
}

func Unmapped() Field { return Field{} }

func Mapped(value string) Field { return Field{value: strings.TrimSpace(value), mapped: true} }

func (f Field) IsMapped() bool { return f.mapped }

// Value returns the trimmed cell and whether the column was mapped at all.
func (f Field) Value() (string, bool) { return f.value, f.mapped }

// String is the cell content, "" when unmapped.
func (f Field) String() string { return f.value }

// Blank reports unmapped columns and empty cells alike.
func (f Field) Blank() bool { return !f.mapped || f.value == "" }

type Row struct {
	Line int

	LastName      Field
	FirstName     Field
	Birthdate     Field
	Season        Field
	LicenceNumber Field
	CreatedAt     Field
	ClubNote      Field
	Sex           Field

	// Raw is the untouched record, kept for the error export.
	Raw []string
}

func (r Row) Get(c Column) Field {
	switch c {
	case ColumnLastName:
		return r.LastName
	case ColumnFirstName:
		return r.FirstName
	case ColumnBirthdate:
		return r.Birthdate
	case ColumnSeason:
		return r.Season
	case ColumnLicenceNumber:
		return r.LicenceNumber
	case ColumnCreatedAt:
		return r.CreatedAt
	case ColumnClubNote:
		return r.ClubNote
	case ColumnSex:
		return r.Sex
	default:
		return Unmapped()
	}
}

func (r *Row) set(c Column, f Field) {
	switch c {
	case ColumnLastName:
		r.LastName = f
	case ColumnFirstName:
		r.FirstName = f
	case ColumnBirthdate:
		r.Birthdate = f
	case ColumnSeason:
		r.Season = f
	case ColumnLicenceNumber:
		r.LicenceNumber = f
	case ColumnCreatedAt:
		r.CreatedAt = f
	case ColumnClubNote:
		r.ClubNote = f
	case ColumnSex:
		r.Sex = f
	}
}

// NormalizedLastName and NormalizedFirstName are the matching tokens.
func (r Row) NormalizedLastName() string  { return normalize.Name(r.LastName.String()) }
func (r Row) NormalizedFirstName() string { return normalize.Name(r.FirstName.String()) }

func (r Row) ParsedSex() Sex { return ParseSex(r.Sex.String()) }
