package services

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/row"
)

type PreviewResult struct {
	Handle   string                `json:"handle"`
	FileName string                `json:"file_name"`
	Header   []string              `json:"header"`
	Mapping  row.Mapping           `json:"mapping"`
	Window   int                   `json:"window"`
	Rows     []reconcile.RowResult `json:"rows"`
	Counters reconcile.Counters    `json:"counters"`
	// More is true when the file holds rows past the window.
	More bool `json:"more"`
}

// Preview resolves the first rows of the staged file. It never writes.
func (s *ImportService) Preview(ctx context.Context, handle string, params reconcile.Params, settings Settings) (res PreviewResult, err error) {
	ctx, span := startSpan(ctx, "asptt.preview", attribute.String("asptt.handle", handle))
	defer func() { endSpan(span, err) }()

	opened, dec, p, err := s.prepare(ctx, handle, params, settings)
	if err != nil {
		return PreviewResult{}, err
	}
	defer func() { _ = opened.Close() }()

	window := settings.PreviewWindow(params.PreviewRows)
	res = PreviewResult{
		Handle:   handle,
		FileName: opened.upload.FileName,
		Header:   opened.reader.Header(),
		Mapping:  params.Mapping,
		Window:   window,
		Rows:     make([]reconcile.RowResult, 0, window),
		Counters: reconcile.NewCounters(),
	}
	err = each(ctx, opened, dec, p, func(r reconcile.RowResult, rowErr error) (bool, error) {
		if rowErr != nil {
			return false, mapStorageError(rowErr)
		}
		if len(res.Rows) == window {
			res.More = true
			return false, nil
		}
		res.Rows = append(res.Rows, r)
		res.Counters.Add(r)
		return true, nil
	})
	if err != nil {
		return PreviewResult{}, err
	}
	span.SetAttributes(attribute.Int("asptt.rows", len(res.Rows)))
	return res, nil
}
