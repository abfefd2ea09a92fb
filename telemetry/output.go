package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/creatures/config"
)

// OutputManager writes a session's statistics next to its persisted state.
type OutputManager struct {
	dir         string
	historyFile *os.File

	// Track if headers have been written
	historyHeaderWritten bool
}

// NewOutputManager opens history.csv in dir for appending, so a resumed
// session keeps extending the same file. Returns nil if dir is empty
// (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	historyPath := filepath.Join(dir, "history.csv")
	f, err := os.OpenFile(historyPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening history.csv: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat history.csv: %w", err)
	}

	return &OutputManager{
		dir:                  dir,
		historyFile:          f,
		historyHeaderWritten: info.Size() > 0,
	}, nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteGeneration appends one generation record to history.csv.
func (om *OutputManager) WriteGeneration(stats GenerationStats) error {
	if om == nil {
		return nil
	}

	records := []GenerationStats{stats}

	if !om.historyHeaderWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, om.historyFile); err != nil {
			return fmt.Errorf("writing history: %w", err)
		}
		om.historyHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.historyFile); err != nil {
			return fmt.Errorf("writing history: %w", err)
		}
	}

	return nil
}

// WriteHallOfFame saves the hall of fame as JSON.
func (om *OutputManager) WriteHallOfFame(hof *HallOfFame) error {
	if om == nil || hof == nil {
		return nil
	}

	data, err := hof.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling hall of fame: %w", err)
	}

	if err := os.WriteFile(HallOfFamePath(om.dir), data, 0644); err != nil {
		return fmt.Errorf("writing hall_of_fame.json: %w", err)
	}

	return nil
}

// HallOfFamePath returns where a session directory keeps its hall of fame.
func HallOfFamePath(dir string) string {
	return filepath.Join(dir, "hall_of_fame.json")
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil || om.historyFile == nil {
		return nil
	}
	return om.historyFile.Close()
}
