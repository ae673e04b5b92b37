package steps

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/HarrySunV9x/hana-perf/pkg/catalog"
	"github.com/HarrySunV9x/hana-perf/pkg/models"
	"github.com/HarrySunV9x/hana-perf/pkg/render"
)

var (
	timeOnlyRe = regexp.MustCompile(`\d{2}:\d{2}:\d{2}\.\d+`)

	// focusRe matches the common "input_focus: com.example.app/.MainActivity"
	// form; package and activity are the two captures.
	focusRe = regexp.MustCompile(`input_focus[:\s]+(\S+)/(\S+)`)

	// packageRe is the fallback for lines that only carry a dotted package name.
	packageRe = regexp.MustCompile(`(?i)([a-z][a-z0-9_]*(?:\.[a-z0-9_]+)+)`)
)

// AnalyzeTimeline orders the extracted lines by time and condenses them into
// focus-switch timeline entries plus a deduplicated activity flow.
type AnalyzeTimeline struct{}

func NewAnalyzeTimeline() *AnalyzeTimeline {
	return &AnalyzeTimeline{}
}

func (s *AnalyzeTimeline) Name() string {
	return catalog.StepAnalyzeTimeline
}

func (s *AnalyzeTimeline) Component() render.ComponentKind {
	return render.ComponentTimeline
}

func (s *AnalyzeTimeline) Execute(_ context.Context, in Inputs) (map[string]models.Value, error) {
	fileLogs := in.GetOr(catalog.KeyFileLogsMap, models.MapValue(nil)).AsMap()

	type timedLine struct {
		time string
		line string
	}

	var lines []timedLine

	for _, logs := range fileLogs {
		for _, line := range logs.AsStringList() {
			if t := timeOnlyRe.FindString(line); t != "" {
				lines = append(lines, timedLine{time: t, line: strings.TrimSpace(line)})
			}
		}
	}

	// The HH:MM:SS.ffffff form sorts chronologically as text.
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].time < lines[j].time
	})

	timeline := []string{}
	flow := []string{}
	seen := map[string]bool{}

	for _, tl := range lines {
		pkg, activity, title := parseFocusLine(tl.line)

		entry := tl.time + "  " + title
		if pkg != "" {
			entry += "  [" + pkg + "]"
		}

		timeline = append(timeline, entry)

		if activity != "" {
			key := pkg + ":" + activity
			if !seen[key] {
				seen[key] = true

				flow = append(flow, fmt.Sprintf("%s  %s/%s", tl.time, pkg, activity))
			}
		}
	}

	return map[string]models.Value{
		catalog.KeyTimeline:     models.StringListValue(timeline),
		catalog.KeyActivityFlow: models.StringListValue(flow),
	}, nil
}

// parseFocusLine extracts package and activity from one input_focus line.
func parseFocusLine(line string) (pkg, activity, title string) {
	if m := focusRe.FindStringSubmatch(line); m != nil {
		return m[1], m[2], "focus moved to " + m[2]
	}

	if m := packageRe.FindStringSubmatch(line); m != nil {
		return m[1], "", "focus changed"
	}

	title = line
	if r := []rune(title); len(r) > 100 {
		title = string(r[:100])
	}

	return "", "", title
}
