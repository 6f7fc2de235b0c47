package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"WaybackArchiver/internal/domain"
	"WaybackArchiver/pkg/logger"
)

// Writer turns terminal processing results into CSV report files.
type Writer struct {
	dir string
	log *log.Logger
}

// NewWriter builds a report writer targeting dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, log: logger.New("export")}
}

// WriteRun writes run_<runID>.csv into the configured directory and returns
// the file path.
func (w *Writer) WriteRun(runID string, results []domain.ProcessingResult, duplicates []domain.Duplicate) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(w.dir, "run_"+runID+".csv")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}

	if err := WriteCSV(file, results, duplicates); err != nil {
		_ = file.Close()
		return "", err
	}

	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close report file: %w", err)
	}

	w.log.Printf("report written to %s (%d rows)", path, len(results)+len(duplicates))
	return path, nil
}

// WriteCSV writes the report table: one row per result, then one mirrored
// row per duplicate referencing its canonical address. encoding/csv handles
// quote escaping.
func WriteCSV(w io.Writer, results []domain.ProcessingResult, duplicates []domain.Duplicate) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"Address", "Status", "SnapshotUrl", "SnapshotDate", "Details"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, result := range results {
		var snapshotURL, snapshotDate string
		if result.Record != nil {
			snapshotURL = result.Record.SnapshotURL
			snapshotDate = result.Record.FormattedDate
		}

		row := []string{
			result.Address,
			statusLabel(result.Outcome),
			snapshotURL,
			snapshotDate,
			strings.Join(result.Details, "; "),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	for _, duplicate := range duplicates {
		row := []string{
			duplicate.Address,
			"Duplicate",
			"",
			"",
			"Duplicate of " + duplicate.DuplicateOf,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write duplicate row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	return nil
}

func statusLabel(outcome domain.Outcome) string {
	switch outcome {
	case domain.OutcomeAlreadyArchived:
		return "Already archived"
	case domain.OutcomeArchived:
		return "Archived"
	case domain.OutcomeVerificationFailed:
		return "Verification failed"
	default:
		return "Error"
	}
}
