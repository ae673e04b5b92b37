// Package report assembles rendered fragments into one final HTML document.
package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
)

// Assembler produces the final document from an ordered fragment list.
type Assembler interface {
	Assemble(fragmentPaths []string, title, outputPath string) (string, error)
}

var documentTmpl = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 0 auto; max-width: 960px; padding: 24px; color: #24292f; }
.report-header { border-bottom: 2px solid #d0d7de; padding-bottom: 12px; }
.report-header .subtitle, .report-header .meta { color: #57606a; }
.stat-cards { display: flex; gap: 16px; }
.stat-card { border: 1px solid #d0d7de; border-radius: 6px; padding: 12px 20px; text-align: center; }
.stat-value { display: block; font-size: 1.6em; font-weight: 600; }
.stat-label { color: #57606a; }
.log-block pre { background: #f6f8fa; padding: 12px; overflow-x: auto; font-size: 12px; }
.timeline-list { list-style: none; padding-left: 0; }
.timeline-item { border-left: 3px solid #0969da; margin: 4px 0; padding: 4px 12px; }
.conclusion--warning { background: #fff8c5; border: 1px solid #d4a72c; border-radius: 6px; padding: 12px; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// Builder writes the final document by concatenating fragments in order.
type Builder struct{}

// NewBuilder creates the default assembler.
func NewBuilder() *Builder {
	return &Builder{}
}

// Assemble reads every fragment in order, wraps them in the document shell,
// and writes the result to outputPath. Returns the absolute output path.
func (b *Builder) Assemble(fragmentPaths []string, title, outputPath string) (string, error) {
	var body strings.Builder

	for _, path := range fragmentPaths {
		data, err := os.ReadFile(path) // #nosec G304 -- paths come from the run's own state
		if err != nil {
			return "", fmt.Errorf("failed to read fragment %s: %w", path, err)
		}

		body.Write(data)
		body.WriteString("\n")
	}

	var doc strings.Builder

	err := documentTmpl.Execute(&doc, struct {
		Title string
		Body  template.HTML
	}{
		Title: title,
		Body:  template.HTML(body.String()), // #nosec G203 -- fragments are rendered by us
	})
	if err != nil {
		return "", fmt.Errorf("failed to build document: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(doc.String()), 0600); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	abs, err := filepath.Abs(outputPath)
	if err != nil {
		return outputPath, nil
	}

	return abs, nil
}
