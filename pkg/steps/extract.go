package steps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/HarrySunV9x/hana-perf/pkg/catalog"
	"github.com/HarrySunV9x/hana-perf/pkg/models"
	"github.com/HarrySunV9x/hana-perf/pkg/render"
)

// defaultTimeWindow is the window size in seconds when the caller does not
// supply one.
const defaultTimeWindow = 20.0

// focusKeyword is the marker extracted lines must contain.
const focusKeyword = "input_focus"

// lineTimeRe matches the MM-DD HH:MM:SS.ffffff prefix logcat-style lines carry.
var lineTimeRe = regexp.MustCompile(`(\d{2}-\d{2}\s+)(\d{2}:\d{2}:\d{2}\.\d+)`)

// ExtractLogs filters each events file down to keyword lines inside the
// requested time window.
type ExtractLogs struct{}

func NewExtractLogs() *ExtractLogs {
	return &ExtractLogs{}
}

func (s *ExtractLogs) Name() string {
	return catalog.StepExtractLogs
}

func (s *ExtractLogs) Component() render.ComponentKind {
	return render.ComponentLogBlock
}

func (s *ExtractLogs) Execute(_ context.Context, in Inputs) (map[string]models.Value, error) {
	filesVal, ok := in.Get(catalog.KeyEventsFiles)
	if !ok {
		return nil, errors.New("events_files not resolved")
	}

	tsVal, ok := in.Get(catalog.KeyTimestamp)
	if !ok {
		return nil, errors.New("timestamp not resolved")
	}

	window := in.GetOr(catalog.KeyTimeWindow, models.FloatValue(defaultTimeWindow)).AsFloat()

	target, err := ParseLogTimestamp(tsVal.AsString())
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", tsVal.AsString(), err)
	}

	half := time.Duration(window / 2 * float64(time.Second))
	start := target.Add(-half)
	end := target.Add(half)

	fileLogs := map[string]models.Value{}

	var totalLogs int64

	for _, path := range filesVal.AsStringList() {
		lines, err := filterFile(path, focusKeyword, start, end)
		if err != nil {
			// A single unreadable file should not sink the whole extraction.
			continue
		}

		if len(lines) > 0 {
			fileLogs[path] = models.StringListValue(lines)
			totalLogs += int64(len(lines))
		}
	}

	return map[string]models.Value{
		catalog.KeyFileLogsMap:   models.MapValue(fileLogs),
		catalog.KeyTotalLogs:     models.IntValue(totalLogs),
		catalog.KeyFilesWithLogs: models.IntValue(int64(len(fileLogs))),
	}, nil
}

// ParseLogTimestamp parses the MM-DD HH:MM:SS[.ffffff] form used by the log
// files, pinning the year to the current one since logs do not carry it.
// Whitespace runs and short fractions are tolerated.
func ParseLogTimestamp(ts string) (time.Time, error) {
	ts = strings.Join(strings.Fields(ts), " ")

	dot := strings.Index(ts, ".")
	if dot < 0 {
		ts += ".000000"
	} else {
		frac := ts[dot+1:]
		for len(frac) < 6 {
			frac += "0"
		}

		ts = ts[:dot+1] + frac[:6]
	}

	parsed, err := time.Parse("01-02 15:04:05.000000", ts)
	if err != nil {
		return time.Time{}, err
	}

	now := time.Now()

	return time.Date(now.Year(), parsed.Month(), parsed.Day(),
		parsed.Hour(), parsed.Minute(), parsed.Second(), parsed.Nanosecond(), time.Local), nil
}

// filterFile keeps lines containing the keyword whose embedded timestamp falls
// inside [start, end]. Keyword lines without a parseable timestamp are kept.
func filterFile(path, keyword string, start, end time.Time) ([]string, error) {
	f, err := os.Open(path) // #nosec G304 -- paths come from the search step
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var matched []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if !strings.Contains(line, keyword) {
			continue
		}

		m := lineTimeRe.FindString(line)
		if m == "" {
			matched = append(matched, line)

			continue
		}

		lineTime, err := ParseLogTimestamp(m)
		if err != nil {
			continue
		}

		if !lineTime.Before(start) && !lineTime.After(end) {
			matched = append(matched, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return matched, nil
}
