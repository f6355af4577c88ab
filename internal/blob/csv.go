package blob

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"reports/internal/table"
)

// WriteCSV writes a header row of display names followed by one record per
// row, cells in column order. Missing or empty values are empty fields.
func (d *Dir) WriteCSV(ctx context.Context, name string, cols *table.Columns, rows []table.Row) (*File, error) {
	if cols.Len() == 0 || len(rows) == 0 {
		return nil, ErrEmptyTable
	}
	list := cols.List()

	return d.atomicWrite(name, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		header := make([]string, len(list))
		for i, c := range list {
			header[i] = c.Name
		}
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}

		record := make([]string, len(list))
		for n, row := range rows {
			if n%500 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			for i, c := range list {
				record[i] = row.Cell(c.Key)
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("write csv row %d: %w", n, err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("flush csv: %w", err)
		}
		return nil
	})
}

// ReadCSV reads back an artifact written by WriteCSV. limit <= 0 returns
// every row. Blank lines are skipped by the reader.
func (d *Dir) ReadCSV(name string, limit int) ([]string, [][]string, error) {
	f, err := os.Open(d.Path(name))
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("empty csv file")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}

	var rows [][]string
	for limit <= 0 || len(rows) < limit {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("parse csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return headers, rows, nil
}
