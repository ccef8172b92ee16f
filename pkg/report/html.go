package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
)

// HTMLConfig contains configuration for HTML report generation.
type HTMLConfig struct {
	OutputPath  string // Path to write the HTML file
	EmbedAssets bool   // Embed screenshots as base64 (makes file larger but portable)
	Title       string // Report title (default: index title)
}

// GenerateHTML generates an HTML report from the report directory.
func GenerateHTML(reportDir string, cfg HTMLConfig) error {
	index, entries, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	if cfg.Title == "" {
		cfg.Title = index.Title
	}
	if cfg.Title == "" {
		cfg.Title = "Test Report"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(reportDir, "report.html")
	}

	data := buildHTMLData(index, entries, reportDir, cfg)

	html, err := renderHTML(data)
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	if err := os.WriteFile(cfg.OutputPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}

// HTMLData contains all data needed for the HTML template.
type HTMLData struct {
	Title         string
	GeneratedAt   string
	Index         *Index
	Scenarios     []ScenarioHTMLData
	TotalDuration string
	PassRate      float64
}

// ScenarioHTMLData contains scenario data formatted for HTML.
type ScenarioHTMLData struct {
	ScenarioEntry
	StatusClass string
	DurationStr string
	Attempts    []AttemptHTMLData
}

// AttemptHTMLData contains one attempt's log formatted for HTML.
type AttemptHTMLData struct {
	EntryDetail
	StatusClass string
	DurationStr string
	Lines       []LineHTMLData
}

// LineHTMLData is one log line with a resolved screenshot source.
type LineHTMLData struct {
	LogLine
	Clock      string
	Class      string
	Screenshot string // base64 data URI or relative path
}

var severityClass = map[core.Severity]string{
	core.SeverityInfo:    "info",
	core.SeverityPass:    "passed",
	core.SeverityFail:    "failed",
	core.SeveritySkip:    "skipped",
	core.SeverityWarning: "warning",
}

func buildHTMLData(index *Index, entries []EntryDetail, reportDir string, cfg HTMLConfig) HTMLData {
	byScenario := entriesByScenario(entries)

	scenarios := make([]ScenarioHTMLData, len(index.Scenarios))
	for i, sc := range index.Scenarios {
		var attempts []AttemptHTMLData
		for _, e := range byScenario[sc.ID] {
			lines := make([]LineHTMLData, len(e.Logs))
			for j, l := range e.Logs {
				line := LineHTMLData{
					LogLine: l,
					Clock:   l.Time.Format("15:04:05"),
					Class:   severityClass[l.Severity],
				}
				if l.Artifact != nil && l.Artifact.Path != "" {
					if cfg.EmbedAssets {
						line.Screenshot = loadAsBase64(filepath.Join(reportDir, l.Artifact.Path))
					} else {
						line.Screenshot = filepath.ToSlash(l.Artifact.Path)
					}
				}
				lines[j] = line
			}
			attempts = append(attempts, AttemptHTMLData{
				EntryDetail: e,
				StatusClass: string(e.Status),
				DurationStr: formatDuration(e.Duration),
				Lines:       lines,
			})
		}
		scenarios[i] = ScenarioHTMLData{
			ScenarioEntry: sc,
			StatusClass:   string(sc.Status),
			DurationStr:   formatDuration(sc.Duration),
			Attempts:      attempts,
		}
	}

	var passRate float64
	if index.Summary.Total > 0 {
		passRate = float64(index.Summary.Passed) / float64(index.Summary.Total) * 100
	}

	var totalDurationMs int64
	if index.EndTime != nil {
		totalDurationMs = index.EndTime.Sub(index.StartTime).Milliseconds()
	}

	return HTMLData{
		Title:         cfg.Title,
		GeneratedAt:   time.Now().Format("2006-01-02 15:04:05"),
		Index:         index,
		Scenarios:     scenarios,
		TotalDuration: formatDuration(&totalDurationMs),
		PassRate:      passRate,
	}
}

func formatDuration(ms *int64) string {
	if ms == nil {
		return "-"
	}
	d := time.Duration(*ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", *ms)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

func loadAsBase64(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(filepath.Ext(path))
	mimeType := "image/png"
	if ext == ".jpg" || ext == ".jpeg" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	// html/template rejects data: URIs in src unless marked safe
	"imgsrc": func(s string) template.URL { return template.URL(s) },
}).Parse(htmlTemplate))

func renderHTML(data HTMLData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f9fafb;
            --text-secondary: rgb(75, 85, 99);
            --border-color: #e5e7eb;
            --passed: #22c55e;
            --failed: #ef4444;
            --skipped: #eab308;
            --running: #06b6d4;
            --pending: #6b7280;
            --info: #3b82f6;
            --warning: #f97316;
        }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background: var(--bg-primary); line-height: 1.5; }
        .header { background: var(--bg-secondary); border-bottom: 1px solid var(--border-color); padding: 16px 24px; }
        .header h1 { font-size: 20px; }
        .meta { color: var(--text-secondary); font-size: 13px; }
        .summary { display: flex; gap: 16px; margin-top: 12px; }
        .summary div { padding: 6px 12px; border: 1px solid var(--border-color); border-radius: 6px; }
        main { padding: 16px 24px; }
        details.scenario { border: 1px solid var(--border-color); border-left-width: 4px; border-radius: 6px; margin-bottom: 8px; padding: 8px 12px; }
        details.passed { border-left-color: var(--passed); }
        details.failed { border-left-color: var(--failed); }
        details.skipped { border-left-color: var(--skipped); }
        details.running { border-left-color: var(--running); }
        details.pending { border-left-color: var(--pending); }
        summary { cursor: pointer; font-weight: 600; }
        .attempt { margin: 8px 0 8px 16px; }
        .attempt h3 { font-size: 14px; }
        table { border-collapse: collapse; width: 100%; font-size: 13px; }
        td { border-top: 1px solid var(--border-color); padding: 4px 6px; vertical-align: top; }
        td.sev { text-transform: uppercase; font-weight: 600; width: 80px; }
        td.info { color: var(--info); }
        td.passed { color: var(--passed); }
        td.failed { color: var(--failed); }
        td.skipped { color: var(--skipped); }
        td.warning { color: var(--warning); }
        .error { color: var(--failed); font-family: monospace; white-space: pre-wrap; }
        img.shot { max-width: 480px; border: 1px solid var(--border-color); margin-top: 4px; }
    </style>
</head>
<body>
<div class="header">
    <h1>{{.Title}}</h1>
    <div class="meta">Run {{.Index.RunID}} &middot; {{.Index.Browser.Name}} &middot; {{.Index.Runner.Driver}} driver &middot; generated {{.GeneratedAt}} &middot; {{.TotalDuration}}</div>
    <div class="summary">
        <div>Total {{.Index.Summary.Total}}</div>
        <div>Passed {{.Index.Summary.Passed}}</div>
        <div>Failed {{.Index.Summary.Failed}}</div>
        <div>Skipped {{.Index.Summary.Skipped}}</div>
        <div>Flaky {{.Index.Summary.Flaky}}</div>
        <div>Pass rate {{printf "%.1f" .PassRate}}%</div>
    </div>
</div>
<main>
{{range .Scenarios}}
<details class="scenario {{.StatusClass}}"{{if eq .StatusClass "failed"}} open{{end}}>
    <summary>{{.Name}}{{if .Row}} (row {{.Row}}){{end}} &middot; {{.Status}} &middot; {{.DurationStr}} &middot; {{.Attempts | len}} attempt(s)</summary>
    {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
    {{range .Attempts}}
    <div class="attempt">
        <h3>Attempt {{.Attempt}} &middot; worker {{.Worker}} &middot; {{.Status}} &middot; {{.DurationStr}}</h3>
        <table>
        {{range .Lines}}
            <tr>
                <td>{{.Clock}}</td>
                <td class="sev {{.Class}}">{{.Severity}}</td>
                <td>{{.Message}}{{if .Error}}<div class="error">{{.Error}}</div>{{end}}{{if .Screenshot}}<br><img class="shot" src="{{imgsrc .Screenshot}}" alt="{{.Message}}">{{end}}</td>
            </tr>
        {{end}}
        </table>
    </div>
    {{end}}
</details>
{{end}}
</main>
</body>
</html>
`
