package excel

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delayrisk/domain/core"
	"delayrisk/domain/dataset"
	"delayrisk/internal"
	"delayrisk/internal/testkit"
)

func newTestReader() *DataReader {
	return NewDataReader(DefaultExcelConfig(), internal.NewNopLogger())
}

func writeWorkbook(t *testing.T, path string, table *dataset.Table) {
	t.Helper()
	require.NoError(t, testkit.WriteXLSX(path, table))
}

func TestReadTable_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	body := "\ufeffn_edges, density ,label_delay\n45,0.1,1\n\n50,0.2\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	table, err := newTestReader().ReadTable(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"n_edges", "density", "label_delay"}, table.Headers)
	assert.Equal(t, [][]string{{"45", "0.1", "1"}, {"50", "0.2", ""}}, table.Rows, "blank rows are skipped and short rows padded")
	assert.Equal(t, path, table.Source)
}

func TestReadTable_XLSXMatchesCSV(t *testing.T) {
	cfg := testkit.DefaultScheduleConfig()
	cfg.Projects = 25
	source := testkit.NewScheduleDataGenerator(cfg).GenerateTable()

	path := filepath.Join(t.TempDir(), "data.xlsx")
	writeWorkbook(t, path, source)

	table, err := newTestReader().ReadTable(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, source.Headers, table.Headers)
	require.Len(t, table.Rows, 25)
	for i := range source.Rows {
		for j := range source.Rows[i] {
			want, errW := strconv.ParseFloat(source.Rows[i][j], 64)
			got, errG := strconv.ParseFloat(table.Rows[i][j], 64)
			if errW != nil {
				assert.Equal(t, source.Rows[i][j], table.Rows[i][j])
				continue
			}
			require.NoError(t, errG)
			assert.InDelta(t, want, got, 1e-9)
		}
	}
}

func TestReadTable_Errors(t *testing.T) {
	dir := t.TempDir()
	reader := newTestReader()
	ctx := context.Background()

	_, err := reader.ReadTable(ctx, filepath.Join(dir, "data.parquet"))
	assert.ErrorIs(t, err, core.ErrDataContract)

	_, err = reader.ReadTable(ctx, filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, core.ErrArtifactIO)

	headerOnly := filepath.Join(dir, "header.csv")
	require.NoError(t, os.WriteFile(headerOnly, []byte("a,b\n"), 0o644))
	_, err = reader.ReadTable(ctx, headerOnly)
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = reader.ReadTable(cancelled, headerOnly)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileType(t *testing.T) {
	kind, err := FileType("runs/Data.XLSX")
	require.NoError(t, err)
	assert.Equal(t, "xlsx", kind)
	kind, err = FileType("data.csv")
	require.NoError(t, err)
	assert.Equal(t, "csv", kind)
}
