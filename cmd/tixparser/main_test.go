package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirmeier/tixparser/internal/domain"
	"github.com/dirmeier/tixparser/internal/infra/catalog"
	"github.com/dirmeier/tixparser/internal/infra/tsvout"
)

const layoutTSV = "plate\ttreatment\treplicate\tvendor\twell\tsirna\tgene\n" +
	"cb01-1a10a\tadeno\t1\tselleck\ta1\ts1001\tPIK3CA\n" +
	"cb01-1a10a\tadeno\t1\tselleck\ta2\ts1002\tAKT1\n"

type fixture struct {
	root   string
	plate  string
	layout string
}

func newFixture(t *testing.T, files ...string) fixture {
	t.Helper()
	root := t.TempDir()
	fx := fixture{
		root:   root,
		plate:  filepath.Join(root, "plate"),
		layout: filepath.Join(root, "layout.tsv"),
	}
	if err := os.MkdirAll(fx.plate, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	for _, n := range files {
		if err := os.WriteFile(filepath.Join(fx.plate, n), []byte("x"), 0o644); err != nil {
			t.Fatalf("写入文件失败：%v", err)
		}
	}
	if err := os.WriteFile(fx.layout, []byte(layoutTSV), 0o644); err != nil {
		t.Fatalf("写入布局失败：%v", err)
	}
	return fx
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errb bytes.Buffer
	code = execute(context.Background(), args, &out, &errb)
	return code, out.String(), errb.String()
}

func TestCLI_Scan_NoTTY_StdoutOnlyReportJSON(t *testing.T) {
	fx := newFixture(t,
		"adeno-selleck-1_cb01-1a10a_a1_nuclei.mat",
		"adeno-selleck-1_cb01-1a10a_b3.mat",
	)

	code, stdout, stderr := runCLI(t, "scan", "--plate", fx.plate, "--layout", fx.layout)
	if code != 0 {
		t.Fatalf("期望退出码 0，实际 %d\nstderr=%s", code, stderr)
	}

	var rr domain.ScanReport
	if err := json.Unmarshal([]byte(stdout), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 ScanReport JSON：%v\nstdout=%q", err, stdout)
	}
	assert.Equal(t, domain.ReportSummary{Files: 2, Annotated: 1, Unannotated: 1}, rr.Summary)
	assert.Equal(t, "PIK3CA", rr.Items[0].Gene)
	assert.NotContains(t, stdout, "配置（生效）")
	assert.Contains(t, stderr, "完成：files=2 annotated=1 unannotated=1 failed=0")
}

func TestCLI_Scan_FailedItemsExitOne(t *testing.T) {
	fx := newFixture(t, "adeno-selleck-1_cb01-1a10a_a1.mat", "notes.mat")

	code, stdout, stderr := runCLI(t, "scan", "--plate", fx.plate, "--layout", fx.layout, "--workers", "4")
	assert.Equal(t, 1, code)

	var rr domain.ScanReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &rr))
	assert.Equal(t, 1, rr.Summary.Failed)
	assert.Contains(t, stderr, "notes.mat no_match")
}

func TestCLI_Scan_ConfigErrorBecomesReport(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	code, stdout, _ := runCLI(t, "scan", "--config", missing)
	assert.Equal(t, 1, code)

	var rr domain.ScanReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &rr))
	require.Len(t, rr.Items, 1)
	assert.Equal(t, "config_not_found", rr.Items[0].ErrorCode)
	assert.Equal(t, 0, rr.Summary.Files)
	assert.Equal(t, 1, rr.Summary.Failed)
}

func TestCLI_Scan_ConfigFileNextToPlate(t *testing.T) {
	fx := newFixture(t, "adeno-selleck-1_cb01-1a10a_a2.mat")
	cfg := "layout: layout.tsv\noutput: tsv\n"
	require.NoError(t, os.WriteFile(filepath.Join(fx.root, "tixparser.yaml"), []byte(cfg), 0o644))

	code, stdout, stderr := runCLI(t, "scan", "--plate", fx.plate)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t,
		strings.Join(tsvout.Header, "\t")+"\n"+
			"adeno\tselleck\t\t1\tcb01-1a10a\ts1002\takt1\ta2\t\t\tadeno-selleck-1_cb01-1a10a_a2.mat\n",
		stdout,
	)
}

func TestCLI_Scan_TextOutput(t *testing.T) {
	fx := newFixture(t, "adeno-selleck-1_cb01-1a10a_a1_nuclei.mat", "adeno-selleck-1_cb01-1a10a_a1_cells.mat")

	code, stdout, _ := runCLI(t, "scan", "--plate", fx.plate, "--layout", fx.layout, "--output", "text")
	require.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(stdout, "完成：files=2 annotated=2"), stdout)
	assert.Contains(t, stdout, "wells=1")
}

func TestCLI_ScanThenQuery(t *testing.T) {
	fx := newFixture(t,
		"adeno-selleck-1_cb01-1a10a_a1_nuclei.mat",
		"adeno-selleck-1_cb01-1a10a_a2_nuclei.mat",
		"adeno-selleck-1_cb01-1a10a_b3.mat",
	)
	db := filepath.Join(t.TempDir(), "screens.db")

	code, _, stderr := runCLI(t, "scan", "--plate", fx.plate, "--layout", fx.layout, "--catalog", db)
	require.Equal(t, 0, code, stderr)

	code, stdout, stderr := runCLI(t, "query", "--catalog", db, "--gene", "akt1")
	require.Equal(t, 0, code, stderr)
	var rows []catalog.Row
	require.NoError(t, json.Unmarshal([]byte(stdout), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "a2", rows[0].Well)
	assert.Equal(t, "s1002", rows[0].SiRNA)

	code, stdout, _ = runCLI(t, "query", "--catalog", db, "--status", "unannotated", "--output", "text")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "adeno-selleck-1_cb01-1a10a_b3.mat")
	assert.Contains(t, stdout, "rows=1")

	code, stdout, _ = runCLI(t, "query", "--catalog", db, "--runs")
	require.Equal(t, 0, code)
	var runs []catalog.RunInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].Summary.Files)
}

func TestCLI_Query_Errors(t *testing.T) {
	code, _, _ := runCLI(t, "query")
	assert.Equal(t, 2, code, "缺少 --catalog 属于用法错误")

	code, _, stderr := runCLI(t, "query", "--catalog", filepath.Join(t.TempDir(), "missing.db"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "打开 catalog 失败")
}

func TestCLI_LayoutCheck(t *testing.T) {
	fx := newFixture(t)

	code, stdout, _ := runCLI(t, "layout", "check", fx.layout, "--keys")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "entries=2")
	assert.Equal(t, 3, strings.Count(stdout, "\n"), stdout)

	code, _, stderr := runCLI(t, "layout", "check", filepath.Join(fx.root, "missing.tsv"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "layout_not_found")
}

func TestCLI_LayoutFind(t *testing.T) {
	fx := newFixture(t)

	code, stdout, _ := runCLI(t, "layout", "find", fx.layout, "CB01-1A10A", "adeno", "1", "selleck", "A01")
	require.Equal(t, 0, code)
	var res findResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.True(t, res.Found)
	assert.Equal(t, "PIK3CA", res.Gene)
	assert.Equal(t, "s1001", res.SiRNA)

	code, stdout, _ = runCLI(t, "layout", "find", fx.layout, "cb01-1a10a", "adeno", "2", "selleck", "a1")
	assert.Equal(t, 1, code)
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.False(t, res.Found)

	code, _, _ = runCLI(t, "layout", "find", fx.layout, "cb01-1a10a", "adeno", "x", "selleck", "a1")
	assert.Equal(t, 2, code)
}

func TestCLI_UsageErrors(t *testing.T) {
	code, _, stderr := runCLI(t, "scan", "--bogus")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "错误：")

	code, _, _ = runCLI(t, "nope")
	assert.Equal(t, 2, code)
}

// syncBuffer 记录日志 Sync 的调用次数。
type syncBuffer struct {
	bytes.Buffer
	syncs int
}

func (b *syncBuffer) Sync() error {
	b.syncs++
	return nil
}

func TestCLI_LoggerSyncedOnFailureExit(t *testing.T) {
	fx := newFixture(t)

	var out bytes.Buffer
	errb := &syncBuffer{}
	code := execute(context.Background(),
		[]string{"layout", "find", fx.layout, "cb01-1a10a", "adeno", "9", "selleck", "a1"}, &out, errb)
	require.Equal(t, 1, code)
	assert.Equal(t, 1, errb.syncs, "失败退出时也要刷日志")

	errb = &syncBuffer{}
	code = execute(context.Background(), []string{"layout", "check", fx.layout}, &out, errb)
	require.Equal(t, 0, code)
	assert.Equal(t, 1, errb.syncs)
}
