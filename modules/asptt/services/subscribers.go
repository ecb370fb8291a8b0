package services

import (
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/asptt-sync/pkg/eventbus"
)

// SubscribeAuditLog writes every engine event to logger as an audit line.
// The returned func removes the subscriptions.
func SubscribeAuditLog(bus eventbus.EventBus, logger logrus.FieldLogger) func() {
	unsubs := []func(){
		bus.Subscribe(func(e *ImportCommitted) {
			logger.WithFields(logrus.Fields{
				"run_id":   e.RunID.String(),
				"file":     e.FileName,
				"mode":     string(e.Mode),
				"operator": e.Operator,
				"status":   string(e.Summary.Status),
				"success":  e.Summary.SuccessRows,
				"errors":   e.Summary.ErrorRows,
			}).Info("asptt.audit.import_committed")
		}),
		bus.Subscribe(func(e *ImportRolledBack) {
			logger.WithFields(logrus.Fields{
				"run_id":            e.RunID.String(),
				"operator":          e.Operator,
				"documents_deleted": e.DocumentsDeleted,
				"meta_deleted":      e.MetaDeleted,
			}).Info("asptt.audit.import_rolled_back")
		}),
		bus.Subscribe(func(e *ReviewTransitioned) {
			logger.WithFields(logrus.Fields{
				"document_id": e.DocumentID,
				"licensee_id": e.LicenseeID,
				"action":      e.Action,
				"from":        string(e.From),
				"to":          string(e.To),
				"operator":    e.Operator,
			}).Info("asptt.audit.review_transitioned")
		}),
		bus.Subscribe(func(e *AliasLearned) {
			logger.WithFields(logrus.Fields{
				"club_id":  e.Alias.ClubID,
				"alias":    e.Alias.AliasNormalized,
				"created":  e.Created,
				"origin":   e.Origin,
				"operator": e.Operator,
			}).Info("asptt.audit.alias_learned")
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
