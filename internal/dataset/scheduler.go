package dataset

import (
	"sync"
	"time"

	"github.com/roylee0704/gron"

	"github.com/wikimedia/research-similar-users/internal/dataset/interfaces"
	"github.com/wikimedia/research-similar-users/internal/providers"
	"github.com/wikimedia/research-similar-users/internal/structures"
)

// Scheduler owns the data lifecycle: restore at startup (snapshot if
// present, TSV baseline otherwise) and periodic snapshot persistence.
type Scheduler struct {
	config      *structures.Config
	logger      providers.Logger
	metrics     providers.MetricsProviderInterface
	loader      *BaselineLoader
	fileManager *FileManager
	cron        *gron.Cron
	opsMu       sync.Mutex
}

func (s *Scheduler) Init() {
	s.cron = gron.New()

	s.cron.AddFunc(gron.Every(s.config.Persistence.SaveInterval), func() {
		s.opsMu.Lock()
		defer s.opsMu.Unlock()

		start := time.Now()
		err := s.fileManager.SaveToFile(s.config.Persistence.SnapshotPath)
		if err != nil {
			s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
			return
		}
		s.metrics.ObservePersistenceDuration(time.Since(start))
		s.logger.Infof(providers.TypeApp, "Persisted data to file %s", s.config.Persistence.SnapshotPath)
	})

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Restore populates the store before query traffic starts. A snapshot wins
// over the baseline: it is strictly newer than the bulk export it grew
// from.
func (s *Scheduler) Restore() error {
	restored, err := s.fileManager.LoadFromFile(s.config.Persistence.SnapshotPath)
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Snapshot restore failed, falling back to baseline: %s", err)
	}
	if restored {
		return nil
	}
	return s.loader.Load()
}

func (s *Scheduler) Persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	s.logger.Infof(providers.TypeApp, "Persisting user data to file...")
	start := time.Now()
	err := s.fileManager.SaveToFile(s.config.Persistence.SnapshotPath)
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
		return err
	}
	s.metrics.ObservePersistenceDuration(time.Since(start))
	return nil
}

func NewScheduler(config *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface, loader *BaselineLoader, fileManager *FileManager) interfaces.SchedulerInterface {
	return &Scheduler{
		config:      config,
		logger:      logger,
		metrics:     metrics,
		loader:      loader,
		fileManager: fileManager,
	}
}
