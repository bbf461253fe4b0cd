package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dirmeier/tixparser/internal/domain"
	"github.com/dirmeier/tixparser/internal/layout"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const layoutTSV = "plate\ttreatment\treplicate\tvendor\twell\tsirna\tgene\n" +
	"cb01-1a10a\tadeno\t1\tselleck\ta1\ts1001\tPIK3CA\n" +
	"cb01-1a10a\tadeno\t1\tselleck\ta2\ts1002\tAKT1\n"

// 3 个合法文件 + 1 个坏文件名（排序后位于中间）。
var plateFiles = []string{
	"adeno-selleck-1_cb01-1a10a_a1_nuclei.mat",
	"adeno-selleck-1_cb01-1a10a_a1x.mat",
	"adeno-selleck-1_cb01-1a10a_a2_cells.mat",
	"adeno-selleck-1_cb01-1a10a_b3.mat",
}

func writeLayout(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "layout.tsv")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func makePlate(t *testing.T, dir string, names ...string) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	for _, n := range names {
		touch(t, filepath.Join(dir, n))
	}
	return dir
}

func collect(t *testing.T, s *Scanner) []Result {
	t.Helper()
	seq, err := s.Scan()
	require.NoError(t, err)
	var out []Result
	for r := range seq {
		out = append(out, r)
	}
	return out
}

func relPaths(rs []Result) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.RelPath())
	}
	return out
}

func TestScan_ThreeValidOneCorrupt(t *testing.T) {
	for _, workers := range []int{1, 3} {
		plate := makePlate(t, "", plateFiles...)
		touch(t, filepath.Join(plate, "nested", "adeno-selleck-1_cb01-1a10a_c1.mat"))

		s, err := New(plate, writeLayout(t, layoutTSV), WithWorkers(workers))
		require.NoError(t, err)

		got := collect(t, s)
		if diff := cmp.Diff(plateFiles, relPaths(got)); diff != "" {
			t.Fatalf("workers=%d 顺序不符合预期 (-want +got):\n%s", workers, diff)
		}

		var features, failures int
		for _, r := range got {
			if r.OK() {
				features++
				assert.Nil(t, r.Err)
			} else {
				failures++
				assert.Nil(t, r.Feature)
			}
		}
		assert.Equal(t, 3, features)
		assert.Equal(t, 1, failures)

		require.NotNil(t, got[1].Err)
		assert.Equal(t, domain.ErrCodeNoMatch, got[1].Err.Kind)

		a1 := got[0].Feature
		require.True(t, a1.Annotated())
		assert.Equal(t, "PIK3CA", a1.Entry.Gene)
		assert.Equal(t, "nuclei", a1.Feature)
		assert.Equal(t, domain.Well("a1"), a1.Key.Well)
		assert.True(t, filepath.IsAbs(a1.File.AbsPath))

		assert.True(t, got[2].Feature.Annotated())
		assert.False(t, got[3].Feature.Annotated(), "b3 不在布局中，应为未注释但不是错误")
	}
}

func TestScan_RestartableAndDeterministic(t *testing.T) {
	plate := makePlate(t, "", plateFiles...)
	s, err := New(plate, writeLayout(t, layoutTSV), WithWorkers(2))
	require.NoError(t, err)

	seq, err := s.Scan()
	require.NoError(t, err)

	var first, second []string
	for r := range seq {
		first = append(first, r.RelPath())
	}
	for r := range seq {
		second = append(second, r.RelPath())
	}
	assert.Equal(t, first, second)
	assert.Equal(t, first, relPaths(collect(t, s)))
}

func TestScan_OneElementPerRegularFile(t *testing.T) {
	plate := makePlate(t, "", "x.mat", "y.txt", "adeno-selleck-1_p1_a1.mat")
	require.NoError(t, os.Mkdir(filepath.Join(plate, "dir.mat"), 0o755))
	if err := os.Symlink(filepath.Join(plate, "x.mat"), filepath.Join(plate, "z.mat")); err != nil {
		t.Skipf("当前平台不支持 symlink：%v", err)
	}

	s, err := New(plate, writeLayout(t, layoutTSV))
	require.NoError(t, err)
	assert.Equal(t, []string{"adeno-selleck-1_p1_a1.mat", "x.mat", "y.txt"}, relPaths(collect(t, s)))

	s, err = New(plate, writeLayout(t, layoutTSV), WithExtensions("MAT"))
	require.NoError(t, err)
	assert.Equal(t, []string{"adeno-selleck-1_p1_a1.mat", "x.mat"}, relPaths(collect(t, s)))
}

func TestScan_EmptyFolder(t *testing.T) {
	s, err := New(t.TempDir(), writeLayout(t, layoutTSV))
	require.NoError(t, err)
	assert.Empty(t, collect(t, s))
}

func TestScan_FolderClassifier(t *testing.T) {
	root := t.TempDir()
	plate := makePlate(t, filepath.Join(root, "Adeno-Selleck-1"),
		"cb01-1a10a_a1.mat",
		"vaccinia-selleck-1_cb01-1a10a_a2.mat",
		"cb01-1a10a_q1.mat",
	)
	orphan := makePlate(t, filepath.Join(root, "plain"), "cb01-1a10a_a1.mat")
	meta := writeLayout(t, layoutTSV)

	s, err := New(plate, meta)
	require.NoError(t, err)
	got := collect(t, s)
	require.Len(t, got, 3)

	require.True(t, got[0].OK())
	assert.True(t, got[0].Feature.Annotated())
	assert.Equal(t, "s1001", got[0].Feature.Entry.SiRNA)

	require.NotNil(t, got[1].Err)
	assert.Equal(t, domain.ErrCodeBadWell, got[1].Err.Kind)

	require.NotNil(t, got[2].Err)
	assert.Equal(t, domain.ErrCodeAmbiguous, got[2].Err.Kind)
	assert.Equal(t, []string{"adeno-selleck-1", "vaccinia-selleck-1"}, got[2].Err.Candidates)

	s, err = New(orphan, meta)
	require.NoError(t, err)
	got = collect(t, s)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Err)
	assert.Equal(t, domain.ErrCodeNoClassifier, got[0].Err.Kind)
}

func TestScan_FileVanishedAfterListing(t *testing.T) {
	plate := makePlate(t, "", plateFiles...)
	s, err := New(plate, writeLayout(t, layoutTSV))
	require.NoError(t, err)

	seq, err := s.Scan()
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(plate, plateFiles[0])))

	var got []Result
	for r := range seq {
		got = append(got, r)
	}
	require.Len(t, got, len(plateFiles))
	require.NotNil(t, got[0].Err)
	assert.Equal(t, domain.ErrCodeStatFailed, got[0].Err.Kind)
	assert.True(t, got[2].OK())
}

// parseAttempts 统计已处理（并失败）的文件数：每个坏文件名恰好产生一条 "feature unparsed"。
func parseAttempts(logs *observer.ObservedLogs) int {
	return logs.FilterMessage("feature unparsed").Len()
}

func TestScan_EarlyBreakStopsFurtherWork(t *testing.T) {
	var junk []string
	for i := range 10 {
		junk = append(junk, fmt.Sprintf("junk%02d.mat", i))
	}

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			plate := makePlate(t, "", junk...)
			s, err := New(plate, writeLayout(t, layoutTSV), WithWorkers(workers), WithLogger(zap.New(core)))
			require.NoError(t, err)

			seq, err := s.Scan()
			require.NoError(t, err)
			assert.Equal(t, 0, parseAttempts(logs), "Scan 本身只列目录")

			for r := range seq {
				require.NotNil(t, r.Err)
				break
			}
			// 串行时只处理消费到的那个文件；并发时最多多处理一批。
			assert.Equal(t, workers, parseAttempts(logs))

			for range seq {
				break
			}
			assert.Equal(t, 2*workers, parseAttempts(logs), "重新遍历同样只处理一批")
			assert.Zero(t, logs.FilterMessage("scan finished").Len(), "提前结束不应记为完成")
		})
	}
}

func TestScan_MissingFolder(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "missing"), writeLayout(t, layoutTSV))
	require.NoError(t, err, "板目录在构造时不检查")

	seq, err := s.Scan()
	require.Error(t, err)
	assert.Nil(t, seq)
	assert.True(t, IsScanIOError(err))
	assert.False(t, IsInitError(err))

	f := filepath.Join(t.TempDir(), "file")
	touch(t, f)
	s, err = New(f, writeLayout(t, layoutTSV))
	require.NoError(t, err)
	_, err = s.Scan()
	assert.True(t, IsScanIOError(err))
}

func TestScan_UnreadableFolder(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root 不受目录权限限制")
	}
	plate := makePlate(t, "", plateFiles...)
	require.NoError(t, os.Chmod(plate, 0o000))
	t.Cleanup(func() { _ = os.Chmod(plate, 0o755) })

	s, err := New(plate, writeLayout(t, layoutTSV))
	require.NoError(t, err)

	seq, err := s.Scan()
	require.Error(t, err)
	assert.Nil(t, seq, "列目录失败时不产出任何元素")
	assert.True(t, IsScanIOError(err))
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestNew_LayoutFailures(t *testing.T) {
	plate := makePlate(t, "", plateFiles...)

	cases := map[string]struct {
		meta string
		code string
	}{
		"missing":   {filepath.Join(t.TempDir(), "nope.tsv"), layout.ErrCodeNotFound},
		"malformed": {writeLayout(t, "plate\twell\ncb01\ta1\n"), layout.ErrCodeMalformed},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := New(plate, tc.meta)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, IsInitError(err))

			var le *layout.LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tc.code, le.Code)
			assert.Equal(t, tc.code, layout.Code(err))
		})
	}

	_, err := New("  ", writeLayout(t, layoutTSV))
	assert.True(t, IsInitError(err))
}

func TestWithWorkersClamped(t *testing.T) {
	meta := writeLayout(t, layoutTSV)
	for in, want := range map[int]int{-1: 1, 0: 1, 4: 4, 1000: MaxWorkers} {
		s, err := New(t.TempDir(), meta, WithWorkers(in))
		require.NoError(t, err)
		assert.Equal(t, want, s.Workers())
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
