package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"delayrisk/domain/core"
	"delayrisk/domain/dataset"
	"delayrisk/internal"
	"delayrisk/ports"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	config ExcelConfig
	logger *internal.Logger
}

var _ ports.TableReader = (*DataReader)(nil)

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(config ExcelConfig, logger *internal.Logger) *DataReader {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if config.Comma == 0 {
		config.Comma = ','
	}
	return &DataReader{config: config, logger: logger.Named("reader")}
}

// FileType returns "csv" or "xlsx" from the file extension
func FileType(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv", nil
	case ".xlsx", ".xlsm":
		return "xlsx", nil
	}
	return "", fmt.Errorf("%w: unsupported dataset file type %q", core.ErrDataContract, filepath.Ext(path))
}

// ReadTable reads the header row and all data rows of path. Cells are
// trimmed; short rows are padded with empty cells.
func (r *DataReader) ReadTable(ctx context.Context, path string) (*dataset.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fileType, err := FileType(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s file %s: %v", core.ErrArtifactIO, strings.ToUpper(fileType), path, err)
	}

	start := time.Now()
	var rows [][]string
	switch fileType {
	case "csv":
		rows, err = r.readCSVRows(path)
	default:
		rows, err = r.readExcelRows(path)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, core.NewInsufficientDataError("%s must have a header row and at least one data row", path)
	}

	table := processRows(path, rows)
	r.logger.Debug("%s file %s read in %s (%d columns, %d rows)",
		strings.ToUpper(fileType), path, time.Since(start).Round(time.Microsecond), len(table.Headers), len(table.Rows))
	return table, nil
}

// readExcelRows reads the configured sheet, or the first one
func (r *DataReader) readExcelRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open Excel file: %v", core.ErrArtifactIO, err)
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook %s has no sheets", core.ErrDataContract, path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %s: %v", core.ErrDataContract, sheet, err)
	}
	return rows, nil
}

// readCSVRows reads all CSV records
func (r *DataReader) readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open CSV file: %v", core.ErrArtifactIO, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = r.config.Comma
	reader.TrimLeadingSpace = true
	if r.config.AllowShort {
		reader.FieldsPerRecord = -1
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV file: %v", core.ErrDataContract, err)
	}
	return rows, nil
}

// processRows trims cells, drops blank trailing rows and pads short rows
func processRows(source string, rows [][]string) *dataset.Table {
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
	}

	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		cells := make([]string, len(headers))
		for j := range cells {
			if j < len(row) {
				cells[j] = strings.TrimSpace(row[j])
			}
		}
		data = append(data, cells)
	}
	return &dataset.Table{Source: source, Headers: headers, Rows: data}
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
