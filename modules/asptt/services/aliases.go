package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/linkage"
	"github.com/iota-uz/asptt-sync/pkg/composables"
	"github.com/iota-uz/asptt-sync/pkg/eventbus"
)

type AliasResult struct {
	Alias   linkage.ClubAlias `json:"alias"`
	Created bool              `json:"created"`
}

// aliasWriter is shared by the import and review services.
type aliasWriter struct {
	clubs     linkage.ClubRepository
	aliases   linkage.AliasRepository
	publisher eventbus.EventBus
}

// save is first-writer-wins: a second save of the same normalized text, for
// any club, returns the stored alias with Created false.
func (a aliasWriter) save(ctx context.Context, clubID int64, text, origin string) (AliasResult, error) {
	if _, err := a.clubs.GetByID(ctx, clubID); err != nil {
		return AliasResult{}, mapStorageError(err)
	}
	alias, ok := linkage.NewClubAlias(clubID, text)
	if !ok {
		return AliasResult{}, invalidParams("alias text is empty after normalization")
	}
	stored, created, err := a.aliases.Insert(ctx, alias)
	if err != nil {
		return AliasResult{}, mapStorageError(err)
	}
	recordAliasSave(created)
	operator := composables.UseOperator(ctx)
	logWithFields(ctx, logrus.InfoLevel, "asptt.alias.saved", logrus.Fields{
		"club_id":  stored.ClubID,
		"alias":    stored.AliasNormalized,
		"created":  created,
		"origin":   origin,
		"operator": operator,
	})
	if a.publisher != nil {
		a.publisher.Publish(&AliasLearned{Alias: stored, Created: created, Origin: origin, Operator: operator})
	}
	return AliasResult{Alias: stored, Created: created}, nil
}

// SaveAlias records text as an alias of clubID.
func (s *ImportService) SaveAlias(ctx context.Context, clubID int64, text string) (AliasResult, error) {
	return s.aliasWriter().save(ctx, clubID, text, "operator")
}

func (s *ImportService) aliasWriter() aliasWriter {
	return aliasWriter{clubs: s.repos.Clubs, aliases: s.repos.Aliases, publisher: s.publisher}
}
