package models

// SnapshotVersion is the current persistence envelope version.
const SnapshotVersion = 1

// UserPersistence is the on-disk form of one user's state bundle.
type UserPersistence struct {
	Meta      UserRecord      `json:"meta"`
	Temporal  TemporalProfile `json:"temporal"`
	Neighbors []CoeditEntry   `json:"neighbors"`
}

// Snapshot is the persistence envelope for the whole user store, written as
// zstd-compressed JSON.
type Snapshot struct {
	Version int                         `json:"version"`
	Users   map[string]*UserPersistence `json:"users"`
}
