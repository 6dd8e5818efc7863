package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"expensetracker/internal/core"
)

const xlsxSheet = "Expenses"

func renderXLSX(expenses []core.Expense, includeMetadata bool) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, 0, len(csvHeader)+len(csvMetadataHeader))
	for _, h := range csvHeader {
		header = append(header, h)
	}
	if includeMetadata {
		for _, h := range csvMetadataHeader {
			header = append(header, h)
		}
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, e := range expenses {
		row := []interface{}{e.Date.String(), e.Amount.Float64(), string(e.Category), e.Description}
		if includeMetadata {
			row = append(row,
				e.ID,
				e.CreatedAt.UTC().Format(time.RFC3339),
				e.UpdatedAt.UTC().Format(time.RFC3339),
			)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
