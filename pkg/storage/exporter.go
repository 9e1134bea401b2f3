package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"igsaved/pkg/logger"
	"igsaved/pkg/models"
)

// Exporter saves each run's response as its own JSON file
type Exporter struct {
	dir    string
	logger logger.Logger
}

// NewExporter creates an exporter writing into dir
func NewExporter(dir string, log logger.Logger) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Exporter{dir: dir, logger: log}, nil
}

// SaveRun writes resp to <dir>/<owner>_<timestamp>_<run id prefix>.json and
// returns the path.
func (e *Exporter) SaveRun(resp *models.ScrapeResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("nothing to export")
	}

	owner := resp.Run.Owner
	if owner == "" {
		owner = "unknown"
	}
	id := resp.Run.ID
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("%s_%s_%s.json", owner, resp.Run.StartedAt.UTC().Format("20060102T150405Z"), id)
	path := filepath.Join(e.dir, name)

	if err := WriteJSON(path, resp, 0644); err != nil {
		return "", fmt.Errorf("failed to export run: %w", err)
	}

	e.logger.InfoWithFields("Run results exported", map[string]interface{}{
		"path":     path,
		"profiles": len(resp.Profiles),
	})
	return path, nil
}

// Count returns the number of exported runs in the output directory
func (e *Exporter) Count() (int, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory: %w", err)
	}

	n := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") && !strings.HasPrefix(entry.Name(), ".") {
			n++
		}
	}
	return n, nil
}

// Dir returns the output directory path
func (e *Exporter) Dir() string {
	return e.dir
}
