package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	cases := map[string]string{
		"  Martin ":              "MARTIN",
		"Jean-Pierre":            "JEAN PIERRE",
		"Héloïse   d'Arçy":       "HELOISE D ARCY",
		"AS Ville":               "AS VILLE",
		"a.s.  ville -- ":        "A S VILLE",
		"ÉTOILE SPORTIVE 93":     "ETOILE SPORTIVE 93",
		"":                       "",
		" --- ":                  "",
		"Asptt\tMarseille\n":     "ASPTT MARSEILLE",
		"Zoë Noël":               "ZOE NOEL",
		"ASVILLE X":              "ASVILLE X",
		"l'Hôpital-Saint-Blaise": "L HOPITAL SAINT BLAISE",
	}
	for in, want := range cases {
		require.Equal(t, want, Name(in), "input %q", in)
	}
}

func TestName_EqualityIsTokenEquality(t *testing.T) {
	require.Equal(t, Name("AS VILLE"), Name("as ville"))
	require.Equal(t, Name("Société Générale"), Name("SOCIETE-GENERALE"))
	require.NotEqual(t, Name("MARTIN"), Name("MARTINS"))
}

func TestDate(t *testing.T) {
	cases := map[string]string{
		"01/02/2005": "2005-02-01",
		"1/2/2005":   "2005-02-01",
		"01-02-2005": "2005-02-01",
		"01.02.2005": "2005-02-01",
		"2005-02-01": "2005-02-01",
		"29/02/2024": "2024-02-29",
		"29/02/2023": "",
		"31/02/2005": "",
		"2005-13-01": "",
		"32/01/2005": "",
		"01/02/05":   "",
		"tomorrow":   "",
		"":           "",
		"  ":         "",
	}
	for in, want := range cases {
		require.Equal(t, want, Date(in), "input %q", in)
	}
}

func TestLicence(t *testing.T) {
	require.Equal(t, "AB12345", Licence(" ab 123 45 "))
	require.Equal(t, "", Licence("   "))
}

func TestMustDate_PanicsOnInvalid(t *testing.T) {
	require.Panics(t, func() { MustDate("31/02/2005") })
	require.Equal(t, "2005-02-01", MustDate("01/02/2005").Format("2006-01-02"))
}
