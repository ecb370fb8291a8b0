// Package normalize turns free text coming from ASPTT exports into comparable tokens.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const isoLayout = "2006-01-02"

// Name canonicalizes a person or club label: uppercase, no diacritics,
// every run of non-alphanumeric runes collapsed to a single space.
// Two names are equal iff their tokens are equal.
func Name(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	text = stripMarks(text)
	text = strings.ToUpper(text)

	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// Date returns the ISO form (YYYY-MM-DD) of a DD/MM/YYYY or YYYY-MM-DD input.
// Invalid calendar dates and unknown shapes return "".
func Date(text string) string {
	t, ok := ParseDate(text)
	if !ok {
		return ""
	}
	return t.Format(isoLayout)
}

// ParseDate is Date with the parsed value.
func ParseDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	if len(text) == len(isoLayout) && text[4] == '-' && text[7] == '-' {
		return civil(text[0:4], text[5:7], text[8:10])
	}
	sep := -1
	for _, c := range []byte{'/', '-', '.'} {
		if strings.IndexByte(text, c) > 0 {
			sep = int(c)
			break
		}
	}
	if sep < 0 {
		return time.Time{}, false
	}
	parts := strings.Split(text, string(rune(sep)))
	if len(parts) != 3 || len(parts[2]) != 4 {
		return time.Time{}, false
	}
	return civil(parts[2], parts[1], parts[0])
}

// Licence canonicalizes an external licence number.
func Licence(text string) string {
	return strings.ToUpper(strings.Join(strings.Fields(text), ""))
}

func civil(year, month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil || len(year) != 4 {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil || len(month) == 0 || len(month) > 2 {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || len(day) == 0 || len(day) > 2 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31/02 into March; reject anything that rolled over.
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func stripMarks(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// MustDate is a test and fixture helper.
func MustDate(text string) time.Time {
	t, ok := ParseDate(text)
	if !ok {
		panic(fmt.Sprintf("normalize: invalid date %q", text))
	}
	return t
}
