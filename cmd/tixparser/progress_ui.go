package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/dirmeier/tixparser/internal/app/run"
	"github.com/dirmeier/tixparser/internal/config"
	"github.com/dirmeier/tixparser/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

var (
	styleOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	styleFail  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	styleTitle = lipgloss.NewStyle().Bold(true)
	styleDim   = lipgloss.NewStyle().Faint(true)
)

// progressUI 是交互终端下的进度输出，全部写到 stderr，不污染 stdout 的报告。
type progressUI struct {
	w io.Writer

	mu sync.Mutex
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	fmt.Fprintf(p.w, "%s %s\n", styleDim.Render("["+now.Format("15:04:05")+"]"), styleTitle.Render("tixparser scan"))
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  plate: %s\n", eff.Plate)
	fmt.Fprintf(p.w, "  layout: %s\n", eff.Layout)
	fmt.Fprintf(p.w, "  workers: %d\n", eff.Workers)
	if len(eff.Extensions) > 0 {
		fmt.Fprintf(p.w, "  extensions: %s\n", strings.Join(eff.Extensions, ","))
	}
	fmt.Fprintf(p.w, "  tsv_out: %s\n", orOff(eff.TSVOut))
	fmt.Fprintf(p.w, "  catalog: %s\n", orOff(eff.Catalog))
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "layout":
		fmt.Fprintf(p.w, "布局: entries=%d (%s)\n", intField(fields, "entries"), formatShortDuration(dur))
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d annotated=%d unannotated=%d failed=%d (%s)\n",
			intField(fields, "files"), intField(fields, "annotated"),
			intField(fields, "unannotated"), intField(fields, "failed"),
			formatShortDuration(dur),
		)
	case "summary":
		fmt.Fprintf(p.w, "汇总: wells=%d missing_wells=%d size=%s (%s)\n",
			intField(fields, "wells"), intField(fields, "missing_wells"),
			humanize.IBytes(uint64(max(intField(fields, "total_bytes"), 0))),
			formatShortDuration(dur),
		)
	case "sinks":
		fmt.Fprintf(p.w, "输出: tsv=%s catalog=%s (%s)\n",
			orOff(stringField(fields, "tsv")), orOff(stringField(fields, "catalog")), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnItemDone(idx int, res domain.ItemResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch res.Status {
	case domain.StatusAnnotated:
		fmt.Fprintf(p.w, "[%d] %s %s well=%s gene=%s\n", idx, styleOK.Render("OK"), res.File, res.Well, res.Gene)
	case domain.StatusUnannotated:
		fmt.Fprintf(p.w, "[%d] %s %s well=%s (布局中无此孔位)\n", idx, styleWarn.Render("MISS"), res.File, res.Well)
	default:
		file := res.File
		if file == "" {
			file = "<" + res.ErrorCode + ">"
		}
		fmt.Fprintf(p.w, "[%d] %s %s %s: %s\n", idx, styleFail.Render("FAIL"), file, res.ErrorCode, truncate(res.ErrorMsg, 160))
	}
}

func orOff(s string) string {
	if strings.TrimSpace(s) == "" {
		return "off"
	}
	return s
}

// truncate 按字符（rune）截断，避免把多字节字符切成非法 UTF-8。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
