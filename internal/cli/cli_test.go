package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pitpipe/internal/infrastructure"
	"pitpipe/internal/shared/testutil"
	"pitpipe/internal/sources"
	api "pitpipe/pkg/contracts/api/v1"
	"pitpipe/pkg/contracts/domain"
)

// writeConfig writes the fixture sources and a config.yaml serving them
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := testutil.WriteEventFiles(t, dir)

	body := fmt.Sprintf(`telemetry:
  environment: test
  metric_exporter: none
data:
  calendar_start: "2014-01-01"
  calendar_end: "2014-01-31"
  store_path: %q
  sources:
    - dataset: EarningsCalendar
      kind: csv
      path: %q
    - dataset: BuybackAuthorizations
      kind: xlsx
      path: %q
      sheet: %s
    - dataset: CashDividends
      kind: sqlite
`, files.Store, files.EarningsCSV, files.BuybacksXLSX, testutil.BuybacksSheet)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// execute runs the root command with args and returns stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	if errOut.Len() > 0 {
		t.Logf("stderr: %s", errOut.String())
	}
	return out.String(), err
}

// decodeData decodes the data of a successful JSON response into v
func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pitload", cmd.Use)

	for _, name := range []string{"datasets", "calendar", "ingest", "load", "factor"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	config := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, config)
	assert.Equal(t, "c", config.Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "datasets", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestParseAssets(t *testing.T) {
	assets, err := parseAssets([]string{"1, 2", "7"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 7}, assets)

	_, err = parseAssets([]string{"1,x"})
	assert.Error(t, err)
	_, err = parseAssets([]string{"-3"})
	assert.Error(t, err)
	_, err = parseAssets(nil)
	assert.Error(t, err)
}

func TestGroupColumns(t *testing.T) {
	groups, err := groupColumns([]string{
		"CashDividends.next_ex_date",
		"EarningsCalendar.next_announcement",
		"CashDividends.next_amount",
	})
	require.NoError(t, err)
	assert.Equal(t, []columnGroup{
		{dataset: "CashDividends", columns: []string{"next_ex_date", "next_amount"}},
		{dataset: "EarningsCalendar", columns: []string{"next_announcement"}},
	}, groups)

	_, err = groupColumns([]string{"next_ex_date"})
	assert.Error(t, err)
	_, err = groupColumns(nil)
	assert.Error(t, err)
}

func TestParseIngestArgs(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		kind    string
		wantErr bool
	}{
		{"csv", "CashDividends=div.csv", "csv", false},
		{"xlsx upper case", "EarningsCalendar=EARNINGS.XLSX", "xlsx", false},
		{"unknown dataset", "Splits=splits.csv", "", true},
		{"no file", "CashDividends=", "", true},
		{"no separator", "div.csv", "", true},
		{"unsupported type", "CashDividends=div.json", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := parseIngestArgs([]string{tt.arg}, "")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, jobs, 1)
			assert.Equal(t, tt.kind, jobs[0].config.Kind)
		})
	}
}

func TestDatasets(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "datasets", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "DATASET")
	assert.Contains(t, out, "CashDividends")
	assert.Contains(t, out, "previous_buyback_value")

	out, err = execute(t, "datasets", "--config", cfg, "--format", "json")
	require.NoError(t, err)
	var resp api.DatasetsResponse
	decodeData(t, out, &resp)
	require.Len(t, resp.Datasets, 3)
	assert.Equal(t, "BuybackAuthorizations", resp.Datasets[0].Name)
	assert.Equal(t, "xlsx", resp.Datasets[0].Source)
}

func TestCalendar(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "calendar", "--config", cfg, "--from", "2014-01-04", "--to", "2014-01-07")
	require.NoError(t, err)
	assert.Equal(t, "2014-01-06\n2014-01-07\n", out)

	out, err = execute(t, "calendar", "--config", cfg, "--from", "2014-01-07", "--to", "2014-01-06")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeInvalidArgs)
}

func TestLoadGolden(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "load", "--config", cfg,
		"--from", "2014-01-06", "--to", "2014-01-07", "--assets", "1,2",
		"--columns", "EarningsCalendar.next_announcement,BuybackAuthorizations.previous_buyback_value")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "load", []byte(out))
}

func TestLoadJSON(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "load", "--config", cfg, "--format", "json",
		"--from", "2014-01-06", "--to", "2014-01-07", "--assets", "1,2",
		"--columns", "CashDividends.next_ex_date")
	require.NoError(t, err)

	var result LoadResult
	decodeData(t, out, &result)
	assert.Equal(t, 4, result.Rows)
	require.Len(t, result.Loads, 1)
	assert.Equal(t, "CashDividends", result.Loads[0].Dataset)
	assert.Equal(t, [][]any{
		{"2014-01-07", "2014-01-10"},
		{"2014-01-07", "2014-01-10"},
	}, result.Loads[0].Columns[0].Values)
}

func TestLoadToExcel(t *testing.T) {
	cfg := writeConfig(t)
	output := filepath.Join(t.TempDir(), "loads.xlsx")

	out, err := execute(t, "load", "--config", cfg,
		"--from", "2014-01-06", "--to", "2014-01-08", "--assets", "2",
		"--columns", "CashDividends.next_amount", "--output", output)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Wrote 3 row(s) to %s\n", output), out)

	f, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Loads")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"date", "sid", "CashDividends.next_amount"},
		{"2014-01-06", "2", "1.25"},
		{"2014-01-07", "2", "1.25"},
		{"2014-01-08", "2", "1.25"},
	}, rows)
}

func TestLoadErrors(t *testing.T) {
	cfg := writeConfig(t)

	tests := []struct {
		name string
		args []string
		code string
		exit int
	}{
		{
			name: "unknown column",
			args: []string{"--assets", "1", "--columns", "CashDividends.bogus"},
			code: ErrCodeNotFound,
			exit: ExitCommandError,
		},
		{
			name: "unknown dataset",
			args: []string{"--assets", "1", "--columns", "Splits.ratio"},
			code: ErrCodeNotFound,
			exit: ExitCommandError,
		},
		{
			name: "bad assets",
			args: []string{"--assets", "one", "--columns", "CashDividends.next_amount"},
			code: ErrCodeInvalidArgs,
			exit: ExitCommandError,
		},
		{
			name: "bad output",
			args: []string{"--assets", "1", "--columns", "CashDividends.next_amount", "--output", "out.json"},
			code: ErrCodeWriteFailed,
			exit: ExitCommandError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"load", "--config", cfg, "--from", "2014-01-06", "--to", "2014-01-07"}, tt.args...)
			out, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.code)
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

func TestFactor(t *testing.T) {
	cfg := writeConfig(t)
	output := filepath.Join(t.TempDir(), "factor.csv")

	_, err := execute(t, "factor", "BusinessDaysUntilNextEarnings", "--config", cfg,
		"--from", "2014-01-06", "--to", "2014-01-08", "--assets", "1,2", "--output", output)
	require.NoError(t, err)

	body, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "date,sid,BusinessDaysUntilNextEarnings\n"+
		"2014-01-06,1,0\n"+
		"2014-01-06,2,2\n"+
		"2014-01-07,1,2\n"+
		"2014-01-07,2,1\n"+
		"2014-01-08,1,1\n"+
		"2014-01-08,2,0\n", string(body))
}

func TestFactorList(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "factor", "--config", cfg, "--format", "json")
	require.NoError(t, err)
	var infos []api.FactorInfo
	decodeData(t, out, &infos)
	assert.Len(t, infos, 5)

	out, err = execute(t, "factor", "BusinessDaysSinceNothing", "--config", cfg,
		"--from", "2014-01-06", "--to", "2014-01-08", "--assets", "1")
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeNotFound)

	_, err = execute(t, "factor", "BusinessDaysUntilNextEarnings", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeInvalidArgs)
}

func TestIngest(t *testing.T) {
	dir := t.TempDir()

	schema, err := sources.SchemaFor(domain.CashDividends)
	require.NoError(t, err)
	dividends := filepath.Join(dir, "dividends.csv")
	require.NoError(t, sources.WriteCSV(dividends, schema, testutil.DividendRows()))

	schema, err = sources.SchemaFor(domain.EarningsCalendar)
	require.NoError(t, err)
	earnings := filepath.Join(dir, "earnings.xlsx")
	require.NoError(t, sources.WriteExcel(earnings, "Earnings", schema, testutil.EarningsRows()))

	db := filepath.Join(dir, "events.db")
	out, err := execute(t, "ingest", "--db", db, "--format", "json",
		"CashDividends="+dividends, "EarningsCalendar="+earnings)
	require.NoError(t, err)

	var result IngestResult
	decodeData(t, out, &result)
	assert.Equal(t, db, result.Store)
	assert.Equal(t, []IngestedFile{
		{Dataset: "CashDividends", Path: dividends, Rows: 2},
		{Dataset: "EarningsCalendar", Path: earnings, Rows: 3},
	}, result.Files)

	store, err := sources.OpenStore(db)
	require.NoError(t, err)
	defer store.Close()
	rows, err := store.Source("CashDividends").Rows(context.Background(), endOfTime)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	rows, err = store.Source("EarningsCalendar").Rows(context.Background(), endOfTime)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestCommandContext(t *testing.T) {
	cmd := NewRootCommand()
	id := infrastructure.GetTraceID(commandContext(cmd))
	assert.Len(t, id, 36)

	cmd.SetContext(infrastructure.WithTraceID(context.Background(), "run-7"))
	assert.Equal(t, "run-7", infrastructure.GetTraceID(commandContext(cmd)))
}

func TestIngestLogsTraceID(t *testing.T) {
	dir := t.TempDir()
	schema, err := sources.SchemaFor(domain.CashDividends)
	require.NoError(t, err)
	dividends := filepath.Join(dir, "dividends.csv")
	require.NoError(t, sources.WriteCSV(dividends, schema, testutil.DividendRows()))

	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"ingest", "-v", "--db", filepath.Join(dir, "events.db"), "CashDividends=" + dividends})
	require.NoError(t, cmd.ExecuteContext(infrastructure.WithTraceID(context.Background(), "ingest-run")))

	assert.Contains(t, errOut.String(), `"msg":"File ingested"`)
	assert.Contains(t, errOut.String(), `"trace_id":"ingest-run"`)
}

func TestIngestErrors(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "events.db")

	out, err := execute(t, "ingest", "--db", db, "Splits=splits.csv")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeInvalidArgs)

	out, err = execute(t, "ingest", "--db", db, "CashDividends="+filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)

	out, err = execute(t, "ingest", "--db", db)
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeInvalidArgs)

	// rows that do not parse fail the ingest
	bad := filepath.Join(dir, "CashDividends.csv")
	require.NoError(t, os.WriteFile(bad, []byte("sid,timestamp\n1,2014-01-02\n"), 0o644))
	out, err = execute(t, "ingest", "--db", db, "CashDividends="+bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodeIngest)
}

func TestIngestDir(t *testing.T) {
	drop := t.TempDir()
	schema, err := sources.SchemaFor(domain.BuybackAuthorizations)
	require.NoError(t, err)
	require.NoError(t, sources.WriteCSV(filepath.Join(drop, "buyback_authorizations.csv"), schema, testutil.BuybackRows()))
	require.NoError(t, os.WriteFile(filepath.Join(drop, "notes.txt"), []byte("skip me"), 0o644))

	db := filepath.Join(t.TempDir(), "events.db")
	out, err := execute(t, "ingest", "--db", db, "--dir", drop)
	require.NoError(t, err)
	assert.Contains(t, out, "BuybackAuthorizations: 2 row(s)")
}
