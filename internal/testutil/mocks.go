package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/wikimedia/research-similar-users/internal/mediawiki"
	"github.com/wikimedia/research-similar-users/internal/providers"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// MockMetrics implements providers.MetricsProviderInterface and counts
// calls.
type MockMetrics struct {
	mu               sync.Mutex
	Requests         int
	CacheHits        int
	CacheMisses      int
	UpstreamRequests map[string]int
	FetchFailures    map[string]int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		UpstreamRequests: make(map[string]int),
		FetchFailures:    make(map[string]int),
	}
}

func (m *MockMetrics) IncRequestsTotal(_ string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests++
}
func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}
func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}
func (m *MockMetrics) IncUpstreamRequests(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpstreamRequests[operation]++
}
func (m *MockMetrics) IncFetchFailures(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchFailures[operation]++
}
func (m *MockMetrics) ObservePersistenceDuration(_ time.Duration) {}

func (m *MockMetrics) FetchFailureCount(operation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FetchFailures[operation]
}

// MockRevisionSource implements mediawiki.ClientInterface with scripted
// responses.
type MockRevisionSource struct {
	mu sync.Mutex

	UserRevs    []mediawiki.PageRevisions
	UserRevsErr error

	PageRevs    map[int64][]mediawiki.Revision
	PageRevsErr error

	Groups    map[string]mediawiki.GroupInfo
	GroupsErr error

	HasContribs    bool
	HasContribsErr error

	GroupQueries [][]string
	UserRevCalls int
}

func (m *MockRevisionSource) RevisionsByUser(_ context.Context, _ string, _ []int, _ time.Time, _ int) ([]mediawiki.PageRevisions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UserRevCalls++
	if m.UserRevsErr != nil {
		return nil, m.UserRevsErr
	}
	return m.UserRevs, nil
}

func (m *MockRevisionSource) RevisionsByPage(_ context.Context, pageID int64, _ time.Time) ([]mediawiki.Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PageRevsErr != nil {
		return nil, m.PageRevsErr
	}
	return m.PageRevs[pageID], nil
}

func (m *MockRevisionSource) UserGroups(_ context.Context, users []string) (map[string]mediawiki.GroupInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GroupQueries = append(m.GroupQueries, users)
	if m.GroupsErr != nil {
		return nil, m.GroupsErr
	}
	result := make(map[string]mediawiki.GroupInfo, len(users))
	for _, u := range users {
		if info, ok := m.Groups[u]; ok {
			result[u] = info
		} else {
			result[u] = mediawiki.GroupInfo{Groups: []string{"user"}}
		}
	}
	return result, nil
}

func (m *MockRevisionSource) HasContributions(_ context.Context, _ string, _ []int, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HasContribsErr != nil {
		return false, m.HasContribsErr
	}
	return m.HasContribs, nil
}
