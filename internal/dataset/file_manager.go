package dataset

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/wikimedia/research-similar-users/internal/dataset/interfaces"
	"github.com/wikimedia/research-similar-users/internal/models"
	"github.com/wikimedia/research-similar-users/internal/providers"
)

// FileManager persists the user store as zstd-compressed JSON snapshots,
// written atomically via rename.
type FileManager struct {
	store      *models.UserStore
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewFileManager(compressor interfaces.CompressorInterface, store *models.UserStore, logger providers.Logger) *FileManager {
	return &FileManager{
		store:      store,
		compressor: compressor,
		logger:     logger,
	}
}

func (f *FileManager) SaveToFile(fileName string) error {
	snapshot := f.store.Snapshot()

	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}

// LoadFromFile restores the store from a snapshot. A missing file is not an
// error; (false, nil) means there was nothing to restore.
func (f *FileManager) LoadFromFile(fileName string) (bool, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	decompressedData, err := f.compressor.Decompress(data)
	if err != nil {
		return false, err
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(decompressedData, &snapshot); err != nil {
		return false, err
	}
	if snapshot.Version != models.SnapshotVersion {
		return false, fmt.Errorf("unsupported snapshot version %d", snapshot.Version)
	}
	if snapshot.Users == nil {
		return false, nil
	}

	f.store.Restore(&snapshot)
	f.logger.Infof(providers.TypeApp, "Restored %d users from snapshot %s", len(snapshot.Users), fileName)
	return true, nil
}
