package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/linkage"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/normalize"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/review"
	"github.com/iota-uz/asptt-sync/pkg/composables"
)

type CommitOptions struct {
	DryRun bool
}

type CommitSummary struct {
	RunID             uuid.UUID          `json:"run_id"`
	FileName          string             `json:"file_name"`
	Mode              linkage.RunMode    `json:"mode"`
	Status            linkage.RunStatus  `json:"status"`
	Counters          reconcile.Counters `json:"counters"`
	LinkRatio         int                `json:"link_ratio"`
	SuccessRows       int                `json:"success_rows"`
	ErrorRows         int                `json:"error_rows"`
	StorageErrors     int                `json:"storage_errors"`
	DocumentsInserted int                `json:"documents_inserted"`
	DocumentsUpdated  int                `json:"documents_updated"`
	Approved          int                `json:"approved"`
	Pending           int                `json:"pending"`
	AliasesLearned    int                `json:"aliases_learned"`
	BatchDocuments    int                `json:"batch_documents"`
	BatchMeta         int                `json:"batch_meta"`
}

// Commit replays the resolution over the whole file and upserts every linked
// row. Rows are written one statement at a time: a failed row is counted and
// the rest still run, and re-running converges on the same end state.
//
// With a non-zero AutoApproveThreshold a row is approved only when the file's
// link ratio and the row's own confidence score both reach the threshold;
// every other linked row commits as pending. A threshold of 0 approves all.
func (s *ImportService) Commit(ctx context.Context, handle string, params reconcile.Params, settings Settings, opts CommitOptions) (sum CommitSummary, err error) {
	ctx, span := startSpan(ctx, "asptt.commit", attribute.String("asptt.handle", handle), attribute.Bool("asptt.dry_run", opts.DryRun))
	defer func() { endSpan(span, err) }()

	started := s.now()
	opened, dec, p, err := s.prepare(ctx, handle, params, settings)
	if err != nil {
		return CommitSummary{}, err
	}
	defer func() { _ = opened.Close() }()

	sum = CommitSummary{
		RunID:    uuid.New(),
		FileName: opened.upload.FileName,
		Mode:     linkage.ModeImport,
		Counters: reconcile.NewCounters(),
	}
	if opts.DryRun {
		sum.Mode = linkage.ModeDryRun
	}
	operator := composables.UseOperator(ctx)
	fields := logrus.Fields{"run_id": sum.RunID.String(), "file": sum.FileName, "operator": operator, "mode": string(sum.Mode)}

	// The link ratio gates auto-approval, so every row is resolved before any write.
	var results []reconcile.RowResult
	var failed []int
	err = each(ctx, opened, dec, p, func(r reconcile.RowResult, rowErr error) (bool, error) {
		if rowErr != nil {
			failed = append(failed, len(results))
			logWithFields(ctx, logrus.WarnLevel, "asptt.commit.row_failed", withFields(fields, logrus.Fields{"line": r.Line, "error": rowErr.Error()}))
		}
		results = append(results, r)
		return true, nil
	})
	if err != nil {
		sum.Status = linkage.RunFailed
		s.appendLog(ctx, sum, operator)
		logWithFields(ctx, logrus.ErrorLevel, "asptt.commit.failed", withFields(fields, logrus.Fields{"error": err.Error()}))
		return sum, err
	}
	storageFailed := make(map[int]bool, len(failed))
	for _, i := range failed {
		storageFailed[i] = true
	}
	for i, r := range results {
		if storageFailed[i] {
			sum.Counters.Total++
			continue
		}
		sum.Counters.Add(r)
	}
	sum.StorageErrors = len(failed)
	sum.LinkRatio = sum.Counters.LinkRatio()
	threshold := settings.AutoApproveThreshold
	batchApproves := threshold == 0 || sum.LinkRatio >= threshold

	// A pinned club outranks the forced one, so only a forced resolution teaches.
	learnAliases := !opts.DryRun && params.ForceClubID > 0 && pinnedClub(params) == 0 &&
		(params.AutoSaveAlias || settings.AutoSaveAlias)
	learned := map[string]struct{}{}
	batch := linkage.ImportBatch{RunID: sum.RunID, FileName: sum.FileName, CreatedAt: started.UTC()}

	for i, r := range results {
		if learnAliases && forcedResolution(r, params.ForceClubID) {
			if hint := normalize.Name(r.Row.ClubNote.String()); hint != "" {
				if _, done := learned[hint]; !done {
					learned[hint] = struct{}{}
					if s.learnAlias(ctx, params.ForceClubID, r.Row.ClubNote.String()) {
						sum.AliasesLearned++
					}
				}
			}
		}
		if storageFailed[i] || !r.Linked() {
			continue
		}
		approve := threshold == 0 || (batchApproves && r.ConfidenceScore >= threshold)
		if opts.DryRun {
			sum.SuccessRows++
			if approve {
				sum.Approved++
			} else {
				sum.Pending++
			}
			continue
		}
		if err := s.writeRow(ctx, r, approve, &batch, &sum); err != nil {
			sum.StorageErrors++
			logWithFields(ctx, logrus.WarnLevel, "asptt.commit.row_failed", withFields(fields, logrus.Fields{"line": r.Line, "licence": r.LicenceNumber, "error": err.Error()}))
			continue
		}
		sum.SuccessRows++
	}
	sum.ErrorRows = sum.Counters.Total - sum.SuccessRows

	if !opts.DryRun {
		if err := s.repos.Batches.Save(ctx, batch); err != nil {
			sum.Status = linkage.RunFailed
			s.appendLog(ctx, sum, operator)
			return sum, mapStorageError(err)
		}
		sum.BatchDocuments = len(batch.DocumentIDs)
		sum.BatchMeta = len(batch.MetaIDs)
		recordRows(sum.Counters)
		aspttCommitDuration.Observe(s.now().Sub(started).Seconds())
	}

	sum.Status = linkage.RunCompleted
	if sum.ErrorRows > 0 {
		sum.Status = linkage.RunCompletedWithErrors
	}
	s.appendLog(ctx, sum, operator)

	logWithFields(ctx, logrus.InfoLevel, "asptt.commit.finished", withFields(fields, logrus.Fields{
		"status":          string(sum.Status),
		"total":           sum.Counters.Total,
		"success":         sum.SuccessRows,
		"errors":          sum.ErrorRows,
		"storage_errors":  sum.StorageErrors,
		"link_ratio":      sum.LinkRatio,
		"aliases_learned": sum.AliasesLearned,
		"duration_ms":     s.now().Sub(started).Milliseconds(),
	}))
	if s.publisher != nil {
		s.publisher.Publish(&ImportCommitted{RunID: sum.RunID, FileName: sum.FileName, Operator: operator, Mode: sum.Mode, Summary: sum})
	}
	span.SetAttributes(attribute.Int("asptt.rows", sum.Counters.Total), attribute.Int("asptt.errors", sum.ErrorRows))
	return sum, nil
}

// writeRow upserts the document, then the licensee's meta. An operator
// decision already stored on the licensee is never downgraded.
func (s *ImportService) writeRow(ctx context.Context, r reconcile.RowResult, approve bool, batch *linkage.ImportBatch, sum *CommitSummary) error {
	doc := documentFromResult(r)
	up, err := s.repos.Documents.Upsert(ctx, doc)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.SourceLicenceNumber, err)
	}
	batch.TrackDocument(up.ID)
	if up.Inserted {
		sum.DocumentsInserted++
	} else {
		sum.DocumentsUpdated++
	}

	entries, err := s.repos.Meta.List(ctx, r.LicenseeID, linkage.Source)
	if err != nil {
		return fmt.Errorf("load meta: %w", err)
	}
	existing := linkage.ParseMeta(entries)

	next := linkage.Meta{
		Confidence:       r.ConfidenceScore,
		ClubResolution:   r.ClubResolution,
		PersonResolution: r.PersonResolution,
	}
	switch {
	case len(entries) > 0 && existing.Review.Decided():
		next.Review = existing.Review
		next.LinkMode = existing.LinkMode
	case approve:
		next.Review = review.Approved()
		next.LinkMode = reconcile.LinkManual
	default:
		next.Review = review.Pending()
		next.LinkMode = reconcile.LinkAuto
	}
	if next.Review.Status() == review.StatusApproved {
		sum.Approved++
	} else {
		sum.Pending++
	}

	for _, kv := range next.Values() {
		id, err := s.repos.Meta.Put(ctx, r.LicenseeID, linkage.Source, kv[0], kv[1])
		if err != nil {
			return fmt.Errorf("put meta %s: %w", kv[0], err)
		}
		batch.TrackMeta(id)
	}
	return nil
}

func documentFromResult(r reconcile.RowResult) linkage.Document {
	doc := linkage.Document{
		LicenseeID:          r.LicenseeID,
		Source:              linkage.Source,
		SourceLicenceNumber: r.LicenceNumber,
		ClubNote:            r.Row.ClubNote.String(),
		SeasonEndYear:       r.SeasonEndYear,
		LastName:            r.Row.LastName.String(),
		FirstName:           r.Row.FirstName.String(),
		Sex:                 string(r.Row.ParsedSex()),
	}
	if t, ok := normalize.ParseDate(r.Birthdate); ok {
		doc.Birthdate = &t
	}
	if t, ok := normalize.ParseDate(r.Row.CreatedAt.String()); ok {
		doc.SourceCreatedAt = &t
	}
	return doc
}

// forcedResolution reports whether the row's club came from the whole-file
// override, whatever the person outcome.
func forcedResolution(r reconcile.RowResult, forcedClubID int64) bool {
	return r.ClubResolution == reconcile.ClubManual && r.ClubID == forcedClubID
}

// learnAlias stores the file's club hint against the forced club. Failures
// are logged and never fail the row.
func (s *ImportService) learnAlias(ctx context.Context, clubID int64, hint string) bool {
	res, err := s.aliasWriter().save(ctx, clubID, hint, "commit")
	if err != nil {
		logWithFields(ctx, logrus.WarnLevel, "asptt.alias.save_failed", logrus.Fields{"club_id": clubID, "alias": hint, "error": err.Error()})
		return false
	}
	return res.Created
}

func (s *ImportService) appendLog(ctx context.Context, sum CommitSummary, operator string) {
	entry := linkage.ImportLog{
		RunID:       sum.RunID,
		CreatedAt:   s.now().UTC(),
		Operator:    operator,
		FileName:    sum.FileName,
		Mode:        sum.Mode,
		TotalRows:   sum.Counters.Total,
		SuccessRows: sum.SuccessRows,
		ErrorRows:   sum.ErrorRows,
		Status:      sum.Status,
	}
	if _, err := s.repos.ImportLogs.Insert(ctx, entry); err != nil {
		logWithFields(ctx, logrus.ErrorLevel, "asptt.import_log.insert_failed", logrus.Fields{"run_id": sum.RunID.String(), "error": err.Error()})
	}
}

func withFields(base, extra logrus.Fields) logrus.Fields {
	out := make(logrus.Fields, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
