// Package dataset handles the bulk-export baseline ingest and the snapshot
// persistence cycle that keeps incrementally updated state across restarts.
package dataset

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/wikimedia/research-similar-users/internal/models"
	"github.com/wikimedia/research-similar-users/internal/providers"
	"github.com/wikimedia/research-similar-users/internal/structures"
)

// BaselineLoader ingests the tab-separated bulk export: per-user metadata,
// co-edit counts and temporal histograms. A malformed header aborts the
// file; a malformed row is logged and skipped, never silently miscounted.
type BaselineLoader struct {
	dir     string
	offsets []int
	store   *models.UserStore
	logger  providers.Logger
}

func NewBaselineLoader(conf *structures.Config, store *models.UserStore, logger providers.Logger) *BaselineLoader {
	return &BaselineLoader{
		dir:     conf.Baseline.Dir,
		offsets: conf.Similarity.TemporalOffsets,
		store:   store,
		logger:  logger,
	}
}

// Load ingests all three baseline files. Runs single-threaded at startup,
// before any query traffic.
func (l *BaselineLoader) Load() error {
	if err := l.loadMetadata(); err != nil {
		return err
	}
	if err := l.loadCoeditCounts(); err != nil {
		return err
	}
	return l.loadTemporal()
}

func (l *BaselineLoader) loadFile(name string, header []string, row func(fields []string) error) error {
	path := filepath.Join(l.dir, name)
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return fmt.Errorf("%s: missing header", name)
	}
	got := strings.Split(strings.TrimRight(scanner.Text(), "\r\n"), "\t")
	if len(got) != len(header) {
		return fmt.Errorf("%s: header mismatch: got %v", name, got)
	}
	for i, col := range header {
		if got[i] != col {
			return fmt.Errorf("%s: header mismatch: got %v", name, got)
		}
	}

	loaded, skipped := 0, 0
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != len(header) {
			l.logger.Warnf(providers.TypeApp, "Skipping malformed record in %s: %q", name, line)
			skipped++
			continue
		}
		if err := row(fields); err != nil {
			l.logger.Warnf(providers.TypeApp, "Skipping malformed record in %s: %q: %s", name, line, err)
			skipped++
			continue
		}
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	l.logger.Infof(providers.TypeApp, "Loaded %d records from %s (%d skipped)", loaded, name, skipped)
	return nil
}

func (l *BaselineLoader) loadMetadata() error {
	header := []string{"user_text", "is_anon", "num_edits", "num_pages", "most_recent_edit", "oldest_edit"}
	return l.loadFile("metadata.tsv", header, func(fields []string) error {
		isAnon, err := cast.ToBoolE(strings.ToLower(fields[1]))
		if err != nil {
			return err
		}
		numEdits, err := cast.ToIntE(fields[2])
		if err != nil {
			return err
		}
		numPages, err := cast.ToIntE(fields[3])
		if err != nil {
			return err
		}
		mostRecent, err := time.Parse(models.TimeFormat, fields[4])
		if err != nil {
			return err
		}
		oldest, err := time.Parse(models.TimeFormat, fields[5])
		if err != nil {
			return err
		}
		if oldest.After(mostRecent) {
			return fmt.Errorf("oldest_edit after most_recent_edit")
		}

		st := l.store.GetOrCreate(fields[0], isAnon)
		st.Lock()
		st.Meta.IsAnon = isAnon
		st.Meta.NumEdits = numEdits
		st.Meta.NumPages = numPages
		st.Meta.MostRecentEdit = &mostRecent
		st.Meta.OldestEdit = &oldest
		st.Unlock()
		return nil
	})
}

func (l *BaselineLoader) loadCoeditCounts() error {
	header := []string{"user_text", "user_neighbor", "num_pages_overlapped"}
	return l.loadFile("coedit_counts.tsv", header, func(fields []string) error {
		overlap, err := cast.ToIntE(fields[2])
		if err != nil {
			return err
		}
		if overlap < 1 {
			return fmt.Errorf("overlap count below 1")
		}

		st := l.store.GetOrCreate(fields[0], false)
		st.Lock()
		st.Neighbors = append(st.Neighbors, models.CoeditEntry{Neighbor: fields[1], Overlap: overlap})
		st.Unlock()
		return nil
	})
}

func (l *BaselineLoader) loadTemporal() error {
	header := []string{"user_text", "day_of_week", "hour_of_day", "num_edits"}
	return l.loadFile("temporal.tsv", header, func(fields []string) error {
		// Export convention: 1=Sunday .. 7=Saturday.
		day, err := cast.ToIntE(fields[1])
		if err != nil {
			return err
		}
		hour, err := cast.ToIntE(fields[2])
		if err != nil {
			return err
		}
		numEdits, err := cast.ToIntE(fields[3])
		if err != nil {
			return err
		}
		if day < 1 || day > 7 || hour < 0 || hour > 23 || numEdits < 0 {
			return fmt.Errorf("bucket out of range")
		}

		st := l.store.GetOrCreate(fields[0], false)
		st.Lock()
		st.Temporal.Record(day-1, hour, numEdits, l.offsets)
		st.Unlock()
		return nil
	})
}
