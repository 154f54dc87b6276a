package summarizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/ideamans/go-l10n"
)

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		"Encoding Summary":  "エンコードサマリー",
		"Generated":         "生成日時",
		"Command":           "コマンド",
		"Settings":          "設定",
		"Results":           "実行結果",
		"Container":         "コンテナ",
		"Item":              "項目",
		"Value":             "値",
		"Codec":             "コーデック",
		"Frame Size":        "フレームサイズ",
		"Bitrate":           "ビットレート",
		"Keyframe Interval": "キーフレーム間隔",
		"Frame Rate":        "フレームレート",
		"Frames":            "フレーム数",
		"Chunks":            "チャンク数",
		"Output Size":       "出力サイズ",
		"Elapsed":           "所要時間",
		"Encoding Speed":    "エンコード速度",
		"Throughput":        "スループット",
		"Memory Delta":      "メモリ増加量",
		"Format":            "形式",
		"Samples":           "サンプル数",
		"Sync Samples":      "同期サンプル数",
		"Fragmented":        "フラグメント化",
		"Backend Errors":    "バックエンドエラー",
		"Yes":               "はい",
		"No":                "いいえ",
		"Generated by":      "生成:",
	})
}

// MarkdownFormatter renders a Summary as a Markdown report.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", l10n.T("Encoding Summary"))
	fmt.Fprintf(&sb, "- %s: %s\n", l10n.T("Generated"), s.GeneratedAt.Format(time.RFC3339))
	if s.Command != "" {
		fmt.Fprintf(&sb, "- %s: `%s`\n", l10n.T("Command"), s.Command)
	}

	writeSection(&sb, l10n.T("Settings"), [][2]string{
		{l10n.T("Codec"), s.Settings.Codec},
		{l10n.T("Frame Size"), fmt.Sprintf("%dx%d", s.Settings.Width, s.Settings.Height)},
		{l10n.T("Bitrate"), formatBitrate(s.Settings.Bitrate)},
		{l10n.T("Keyframe Interval"), fmt.Sprintf("%d", s.Settings.KeyframeInterval)},
		{l10n.T("Frame Rate"), fmt.Sprintf("%.2f fps", s.Settings.Framerate)},
	})

	r := s.Results
	writeSection(&sb, l10n.T("Results"), [][2]string{
		{l10n.T("Frames"), fmt.Sprintf("%d", r.Frames)},
		{l10n.T("Chunks"), fmt.Sprintf("%d", r.Chunks)},
		{l10n.T("Output Size"), formatBytes(r.OutputBytes)},
		{l10n.T("Elapsed"), r.Elapsed.Round(time.Millisecond).String()},
		{l10n.T("Encoding Speed"), fmt.Sprintf("%.1f fps", r.FPS())},
		{l10n.T("Throughput"), fmt.Sprintf("%.2f MB/s", r.ThroughputMBps())},
		{l10n.T("Memory Delta"), fmt.Sprintf("%.2f MB", float64(r.MemoryDelta)/(1<<20))},
	})

	if c := s.Container; c.Format != "" {
		rows := [][2]string{
			{l10n.T("Format"), c.Format},
			{l10n.T("Codec"), c.Codec},
		}
		if c.Width > 0 && c.Height > 0 {
			rows = append(rows, [2]string{l10n.T("Frame Size"), fmt.Sprintf("%dx%d", c.Width, c.Height)})
		}
		if c.Format == "mp4" {
			rows = append(rows,
				[2]string{l10n.T("Samples"), fmt.Sprintf("%d", c.Samples)},
				[2]string{l10n.T("Sync Samples"), fmt.Sprintf("%d", c.SyncSamples)},
				[2]string{l10n.T("Fragmented"), yesNo(c.Fragmented)},
			)
		}
		writeSection(&sb, l10n.T("Container"), rows)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(&sb, "\n## %s\n\n", l10n.T("Backend Errors"))
		for _, e := range r.Errors {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
	}

	fmt.Fprintf(&sb, "\n---\n%s codecbridge\n", l10n.T("Generated by"))
	return sb.String()
}

func writeSection(sb *strings.Builder, title string, rows [][2]string) {
	fmt.Fprintf(sb, "\n## %s\n\n", title)
	fmt.Fprintf(sb, "| %s | %s |\n", l10n.T("Item"), l10n.T("Value"))
	sb.WriteString("|---|---|\n")
	for _, row := range rows {
		fmt.Fprintf(sb, "| %s | %s |\n", row[0], row[1])
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func formatBitrate(bps int) string {
	if bps >= 1_000_000 {
		return fmt.Sprintf("%.2f Mbps", float64(bps)/1_000_000)
	}
	return fmt.Sprintf("%d kbps", bps/1000)
}

func yesNo(v bool) string {
	if v {
		return l10n.T("Yes")
	}
	return l10n.T("No")
}
