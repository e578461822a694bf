package excel

// ExcelConfig holds options for reading tabular sources
type ExcelConfig struct {
	Sheet      string `json:"sheet"`       // empty = first sheet of the workbook
	Comma      rune   `json:"comma"`       // CSV delimiter
	AllowShort bool   `json:"allow_short"` // CSV rows may have fewer fields than the header
}

// DefaultExcelConfig returns sensible defaults
func DefaultExcelConfig() ExcelConfig {
	return ExcelConfig{
		Comma:      ',',
		AllowShort: true,
	}
}
