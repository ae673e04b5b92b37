package render

import (
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/HarrySunV9x/hana-perf/pkg/models"
)

// maxLogLines caps how many raw lines one log block shows.
const maxLogLines = 200

var headerTmpl = template.Must(template.New("header").Parse(`<header class="report-header">
  <h1>Scene Analysis Report</h1>
  <p class="subtitle">Log path: {{.LogPath}}</p>
  <p class="meta">Analyzed at {{.Timestamp}} &middot; window &plusmn;{{.HalfWindow}}s</p>
</header>
`))

type headerData struct {
	LogPath    string
	Timestamp  string
	HalfWindow string
}

func renderHeader(data map[string]models.Value) (string, error) {
	window := data["time_window"].AsFloat()

	var b strings.Builder

	err := headerTmpl.Execute(&b, headerData{
		LogPath:    data["log_path"].AsString(),
		Timestamp:  data["timestamp"].AsString(),
		HalfWindow: trimFloat(window / 2),
	})
	if err != nil {
		return "", fmt.Errorf("render header: %w", err)
	}

	return b.String(), nil
}

var statsTmpl = template.Must(template.New("stats").Parse(`<section class="stats" id="stats">
  <h2>Statistics</h2>
  <div class="stat-cards">
{{- range .}}
    <div class="stat-card"><span class="stat-value">{{.Value}}</span><span class="stat-label">{{.Label}}</span></div>
{{- end}}
  </div>
</section>
`))

type statCard struct {
	Value string
	Label string
}

func renderStats(data map[string]models.Value) (string, error) {
	cards := []statCard{
		{Value: data["files_count"].Display(), Label: "Events files"},
		{Value: humanSize(data["total_size"].AsInt()), Label: "Total size"},
	}

	var b strings.Builder

	if err := statsTmpl.Execute(&b, cards); err != nil {
		return "", fmt.Errorf("render stats: %w", err)
	}

	return b.String(), nil
}

var logBlockTmpl = template.Must(template.New("logs").Parse(`<section class="logs" id="logs">
  <h2>Raw Logs</h2>
{{- range .}}
  <details class="log-block">
    <summary>{{.File}} ({{.Total}} lines{{if .Truncated}}, first {{.Shown}} shown{{end}})</summary>
    <pre>{{.Content}}</pre>
  </details>
{{- end}}
</section>
`))

var noLogsTmpl = template.Must(template.New("nologs").Parse(`<section class="logs" id="logs">
  <div class="conclusion conclusion--warning">
    <h3>No logs found</h3>
    <p>No input_focus logs were found inside the requested time window.</p>
  </div>
</section>
`))

type logBlock struct {
	File      string
	Total     int
	Shown     int
	Truncated bool
	Content   string
}

func renderLogBlock(data map[string]models.Value) (string, error) {
	fileLogs := data["file_logs_map"].AsMap()

	var b strings.Builder

	if len(fileLogs) == 0 {
		if err := noLogsTmpl.Execute(&b, nil); err != nil {
			return "", fmt.Errorf("render log block: %w", err)
		}

		return b.String(), nil
	}

	paths := make([]string, 0, len(fileLogs))
	for path := range fileLogs {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	blocks := make([]logBlock, 0, len(paths))

	for _, path := range paths {
		lines := fileLogs[path].AsStringList()
		shown := lines

		if len(shown) > maxLogLines {
			shown = shown[:maxLogLines]
		}

		blocks = append(blocks, logBlock{
			File:      baseName(path),
			Total:     len(lines),
			Shown:     len(shown),
			Truncated: len(lines) > len(shown),
			Content:   strings.Join(shown, "\n"),
		})
	}

	if err := logBlockTmpl.Execute(&b, blocks); err != nil {
		return "", fmt.Errorf("render log block: %w", err)
	}

	return b.String(), nil
}

var timelineTmpl = template.Must(template.New("timeline").Parse(`<section class="timeline" id="timeline">
  <h2>Focus Timeline</h2>
  <ul class="timeline-list">
{{- range .Events}}
    <li class="timeline-item">{{.}}</li>
{{- end}}
  </ul>
{{- if .Flow}}
  <h3>Activity Flow</h3>
  <ol class="activity-flow">
{{- range .Flow}}
    <li>{{.}}</li>
{{- end}}
  </ol>
{{- end}}
</section>
`))

type timelineData struct {
	Events []string
	Flow   []string
}

func renderTimeline(data map[string]models.Value) (string, error) {
	var b strings.Builder

	err := timelineTmpl.Execute(&b, timelineData{
		Events: data["timeline_events"].AsStringList(),
		Flow:   data["activity_flow"].AsStringList(),
	})
	if err != nil {
		return "", fmt.Errorf("render timeline: %w", err)
	}

	return b.String(), nil
}

var sectionTmpl = template.Must(template.New("section").Parse(`<section class="analysis" id="analysis">
  <h2>Scene Analysis</h2>
  {{.Body}}
</section>
`))

func renderSection(data map[string]models.Value) (string, error) {
	var b strings.Builder

	// The analysis body is caller-authored markup and is embedded as-is.
	err := sectionTmpl.Execute(&b, struct{ Body template.HTML }{
		Body: template.HTML(data["analysis_html"].AsString()), // #nosec G203
	})
	if err != nil {
		return "", fmt.Errorf("render section: %w", err)
	}

	return b.String(), nil
}

func humanSize(n int64) string {
	switch {
	case n > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	case n > 1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func trimFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}

	return path
}
