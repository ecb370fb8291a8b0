// Package linkage holds the registry entities the engine reads and the linkage
// records it writes, together with their repository contracts.
package linkage

import (
	"errors"
	"strings"
	"time"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/normalize"
)

// Source is the import stream constant stored on every document and meta row.
const Source = "ASPTT"

var ErrNotFound = errors.New("not found")

type Club struct {
	id   int64
	name string
}

func NewClub(id int64, name string) Club {
	return Club{id: id, name: strings.TrimSpace(name)}
}

func (c Club) ID() int64              { return c.id }
func (c Club) Name() string           { return c.name }
func (c Club) NormalizedName() string { return normalize.Name(c.name) }

type Licensee struct {
	id        int64
	clubID    int64
	lastName  string
	firstName string
	birthdate time.Time
	sex       string
}

func HydrateLicensee(id, clubID int64, lastName, firstName string, birthdate time.Time, sex string) Licensee {
	return Licensee{
		id:        id,
		clubID:    clubID,
		lastName:  strings.TrimSpace(lastName),
		firstName: strings.TrimSpace(firstName),
		birthdate: birthdate,
		sex:       strings.TrimSpace(sex),
	}
}

func (l Licensee) ID() int64            { return l.id }
func (l Licensee) ClubID() int64        { return l.clubID }
func (l Licensee) LastName() string     { return l.lastName }
func (l Licensee) FirstName() string    { return l.firstName }
func (l Licensee) Birthdate() time.Time { return l.birthdate }

// Sex is stored loosely by the host; callers compare it case-insensitively.
func (l Licensee) Sex() string { return l.sex }

type ClubAlias struct {
	ID              int64     `json:"id"`
	ClubID          int64     `json:"club_id"`
	AliasText       string    `json:"alias_text"`
	AliasNormalized string    `json:"alias_normalized"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewClubAlias normalizes the hint. An empty normalized alias is not storable.
func NewClubAlias(clubID int64, text string) (ClubAlias, bool) {
	n := normalize.Name(text)
	if n == "" || clubID <= 0 {
		return ClubAlias{}, false
	}
	return ClubAlias{ClubID: clubID, AliasText: strings.TrimSpace(text), AliasNormalized: n}, true
}
