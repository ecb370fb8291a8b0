package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ErrorRow is one rejected input record.
type ErrorRow struct {
	Line   int
	Raw    []string
	Status string
	Detail string
}

const sheetName = "Errors"

// WriteErrorsCSV writes the original header plus a status column, using comma.
func WriteErrorsCSV(w io.Writer, header []string, rows []ErrorRow, comma rune) error {
	cw := csv.NewWriter(w)
	if comma != 0 {
		cw.Comma = comma
	}
	if err := cw.Write(append(append([]string(nil), header...), "status")); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(append(pad(r.Raw, len(header)), r.Status)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteErrorsXLSX is the spreadsheet form; it adds line and detail columns.
func WriteErrorsXLSX(w io.Writer, header []string, rows []ErrorRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FDE2E1"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	cols := append([]string{"line"}, header...)
	cols = append(cols, "status", "detail")
	if err := writeRow(f, 1, toAny(cols)); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	for i, r := range rows {
		values := []any{r.Line}
		values = append(values, toAny(pad(r.Raw, len(header)))...)
		values = append(values, r.Status, r.Detail)
		if err := writeRow(f, i+2, values); err != nil {
			return err
		}
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}

// pad extends or truncates raw to n cells so exported rows line up with the header.
func pad(raw []string, n int) []string {
	out := make([]string, n)
	copy(out, raw)
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
