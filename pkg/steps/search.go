package steps

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/HarrySunV9x/hana-perf/pkg/catalog"
	"github.com/HarrySunV9x/hana-perf/pkg/models"
	"github.com/HarrySunV9x/hana-perf/pkg/render"
)

// filePattern is the name substring that marks a log file as an events log.
const filePattern = "events"

// SearchFiles walks the configured log path and collects events log files.
type SearchFiles struct{}

func NewSearchFiles() *SearchFiles {
	return &SearchFiles{}
}

func (s *SearchFiles) Name() string {
	return catalog.StepSearchFiles
}

func (s *SearchFiles) Component() render.ComponentKind {
	return render.ComponentStats
}

func (s *SearchFiles) Execute(_ context.Context, in Inputs) (map[string]models.Value, error) {
	logPath, ok := in.Get(catalog.KeyLogPath)
	if !ok {
		return nil, errors.New("log_path not resolved")
	}

	root := logPath.AsString()

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("log path unavailable: %w", err)
	}

	var (
		files     []string
		totalSize int64
	)

	if !info.IsDir() {
		if strings.Contains(strings.ToLower(info.Name()), filePattern) {
			abs, err := filepath.Abs(root)
			if err != nil {
				abs = root
			}

			files = append(files, abs)
			totalSize += info.Size()
		}
	} else {
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}

			if entry.IsDir() || !strings.Contains(strings.ToLower(entry.Name()), filePattern) {
				return nil
			}

			fi, err := entry.Info()
			if err != nil {
				return err
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}

			files = append(files, abs)
			totalSize += fi.Size()

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk log path: %w", err)
		}
	}

	return map[string]models.Value{
		catalog.KeyEventsFiles: models.StringListValue(files),
		catalog.KeyFilesCount:  models.IntValue(int64(len(files))),
		catalog.KeyTotalSize:   models.IntValue(totalSize),
	}, nil
}
