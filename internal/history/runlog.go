package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"paperwatch/internal/domain"
	"paperwatch/internal/ports"
)

// RunLog appends one immutable JSON record per pipeline execution, keyed by
// the run id, alongside the channel histories.
type RunLog struct {
	dir    string
	logger *slog.Logger
}

var _ ports.RunRecorder = (*RunLog)(nil)

func NewRunLog(dir string, logger *slog.Logger) *RunLog {
	return &RunLog{dir: dir, logger: logger}
}

// SaveRun writes the record as <run-id>.json. Records are never rewritten.
func (l *RunLog) SaveRun(record domain.RunRecord) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	path := filepath.Join(l.dir, record.ID+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write run record: %w", err)
	}

	if l.logger != nil {
		l.logger.Debug("run record saved", "run_id", record.ID, "papers", record.PapersCount)
	}
	return nil
}
