package row

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestField_UnmappedIsNotEmpty(t *testing.T) {
	var zero Field
	v, ok := zero.Value()
	require.False(t, ok)
	require.Equal(t, "", v)
	require.True(t, zero.Blank())

	empty := Mapped("   ")
	v, ok = empty.Value()
	require.True(t, ok)
	require.Equal(t, "", v)
	require.True(t, empty.Blank())
	require.True(t, empty.IsMapped())
}

func TestSuggestMapping(t *testing.T) {
	header := []string{"N° Licence", "Nom", "Prénom", "Date de naissance", "Sexe", "Note", "Colonne inconnue", "NOM"}
	m := SuggestMapping(header)

	require.Equal(t, ColumnLicenceNumber, m["N° Licence"])
	require.Equal(t, ColumnLastName, m["Nom"])
	require.Equal(t, ColumnFirstName, m["Prénom"])
	require.Equal(t, ColumnBirthdate, m["Date de naissance"])
	require.Equal(t, ColumnSex, m["Sexe"])
	require.Equal(t, ColumnClubNote, m["Note"])
	_, ok := m["Colonne inconnue"]
	require.False(t, ok)
	_, ok = m["NOM"]
	require.False(t, ok, "second header for the same column must not be mapped")
	require.NoError(t, m.Validate(header))
}

func TestMapping_Validate(t *testing.T) {
	header := []string{"a", "b"}
	require.Error(t, Mapping{"a": Column("nope")}.Validate(header))
	require.Error(t, Mapping{"c": ColumnLastName}.Validate(header))
	require.Error(t, Mapping{"a": ColumnLastName, "b": ColumnLastName}.Validate(header))
	require.NoError(t, Mapping{"a": ColumnLastName, "b": ColumnFirstName}.Validate(header))
}

func TestDecoder_Decode(t *testing.T) {
	header := []string{"Nom", "Prénom", "Ignored", "Naissance"}
	d := NewDecoder(header, Mapping{"Nom": ColumnLastName, "Prénom": ColumnFirstName, "Naissance": ColumnBirthdate})

	r := d.Decode(7, []string{" Martin ", "Jean", "x"})
	require.Equal(t, 7, r.Line)
	require.Equal(t, "Martin", r.LastName.String())
	require.Equal(t, "MARTIN", r.NormalizedLastName())
	require.True(t, r.Birthdate.IsMapped(), "short record still maps the column")
	require.Equal(t, "", r.Birthdate.String())
	require.False(t, r.Sex.IsMapped())
	require.Equal(t, []string{" Martin ", "Jean", "x"}, r.Raw)
	require.Equal(t, r.FirstName, r.Get(ColumnFirstName))
}

func TestParseSex(t *testing.T) {
	require.Equal(t, SexMale, ParseSex("m"))
	require.Equal(t, SexMale, ParseSex(" Homme "))
	require.Equal(t, SexFemale, ParseSex("féminin"))
	require.Equal(t, SexFemale, ParseSex("F"))
	require.Equal(t, SexUnknown, ParseSex(""))
	require.Equal(t, SexUnknown, ParseSex("X"))
	require.False(t, SexUnknown.Known())
}
