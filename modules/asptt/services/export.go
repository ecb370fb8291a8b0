package services

import (
	"context"
	"fmt"
	"io"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
	"github.com/iota-uz/asptt-sync/modules/asptt/infrastructure/csvfile"
)

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
)

func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", invalidParams("unknown export format %q (expected csv|xlsx)", s)
	}
}

func (f ExportFormat) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

type ErrorReport struct {
	FileName string
	Header   []string
	Comma    rune
	Rows     []csvfile.ErrorRow
}

// ErrorRows resolves the whole file and keeps every row that would not be
// committed. A row whose lookup failed in storage is reported with status
// storage_error.
func (s *ImportService) ErrorRows(ctx context.Context, handle string, params reconcile.Params, settings Settings) (ErrorReport, error) {
	opened, dec, p, err := s.prepare(ctx, handle, params, settings)
	if err != nil {
		return ErrorReport{}, err
	}
	defer func() { _ = opened.Close() }()

	rep := ErrorReport{
		FileName: opened.upload.FileName,
		Header:   opened.reader.Header(),
		Comma:    opened.reader.Comma(),
	}
	err = each(ctx, opened, dec, p, func(r reconcile.RowResult, rowErr error) (bool, error) {
		switch {
		case rowErr != nil:
			rep.Rows = append(rep.Rows, csvfile.ErrorRow{Line: r.Line, Raw: r.Row.Raw, Status: "storage_error", Detail: rowErr.Error()})
		case !r.Linked():
			rep.Rows = append(rep.Rows, csvfile.ErrorRow{Line: r.Line, Raw: r.Row.Raw, Status: string(r.Status), Detail: r.Detail})
		}
		return true, nil
	})
	if err != nil {
		return ErrorReport{}, err
	}
	return rep, nil
}

// ExportErrors writes the error rows to w in the requested format.
func (s *ImportService) ExportErrors(ctx context.Context, w io.Writer, handle string, params reconcile.Params, settings Settings, format ExportFormat) (int, error) {
	rep, err := s.ErrorRows(ctx, handle, params, settings)
	if err != nil {
		return 0, err
	}
	if err := WriteErrorReport(w, rep, format); err != nil {
		return 0, err
	}
	return len(rep.Rows), nil
}

func WriteErrorReport(w io.Writer, rep ErrorReport, format ExportFormat) error {
	var err error
	switch format {
	case FormatXLSX:
		err = csvfile.WriteErrorsXLSX(w, rep.Header, rep.Rows)
	default:
		err = csvfile.WriteErrorsCSV(w, rep.Header, rep.Rows, rep.Comma)
	}
	if err != nil {
		return fmt.Errorf("write error export: %w", err)
	}
	return nil
}
