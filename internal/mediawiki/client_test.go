package mediawiki

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikimedia/research-similar-users/internal/providers"
	"github.com/wikimedia/research-similar-users/internal/structures"
)

// local mocks to avoid an import cycle with testutil

type clientTestLogger struct{}

func (m *clientTestLogger) Errorf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *clientTestLogger) Warnf(_ providers.TypeEnum, _ string, _ ...interface{})  {}
func (m *clientTestLogger) Debugf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *clientTestLogger) Infof(_ providers.TypeEnum, _ string, _ ...interface{})  {}
func (m *clientTestLogger) Fatalf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *clientTestLogger) Close()                                                  {}

type clientTestMetrics struct{}

func (m *clientTestMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (m *clientTestMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (m *clientTestMetrics) IncCacheHits()                                    {}
func (m *clientTestMetrics) IncCacheMisses()                                  {}
func (m *clientTestMetrics) IncUpstreamRequests(_ string)                     {}
func (m *clientTestMetrics) IncFetchFailures(_ string)                        {}
func (m *clientTestMetrics) ObservePersistenceDuration(_ time.Duration)       {}

func newTestClient(t *testing.T, handler http.HandlerFunc) (ClientInterface, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conf := &structures.Config{
		Source: structures.SourceConfig{
			ApiUrl:    srv.URL,
			UserAgent: "similar-users-test",
			Timeout:   5 * time.Second,
			PageSize:  500,
		},
		Similarity: structures.SimilarityConfig{GroupBatchSize: 2},
	}
	return NewClient(conf, &clientTestLogger{}, &clientTestMetrics{}), srv
}

func since(t *testing.T) time.Time {
	ts, err := time.Parse(time.RFC3339, "2020-10-01T00:00:00Z")
	require.NoError(t, err)
	return ts
}

func TestRevisionsByUser_FollowsContinuation(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		q := r.URL.Query()
		assert.Equal(t, "allrevisions", q.Get("list"))
		assert.Equal(t, "Alice", q.Get("arvuser"))
		assert.Equal(t, "newer", q.Get("arvdir"))
		assert.Equal(t, "similar-users-test", r.Header.Get("User-Agent"))

		if q.Get("arvcontinue") == "" {
			fmt.Fprint(w, `{
				"continue": {"arvcontinue": "next", "continue": "-||"},
				"query": {"allrevisions": [
					{"pageid": 1, "title": "One", "revisions": [
						{"timestamp": "2020-10-02T10:00:00Z", "user": "Alice"}
					]}
				]}
			}`)
			return
		}
		assert.Equal(t, "next", q.Get("arvcontinue"))
		fmt.Fprint(w, `{
			"query": {"allrevisions": [
				{"pageid": 1, "title": "One", "revisions": [
					{"timestamp": "2020-10-03T11:00:00Z", "user": "Alice"}
				]},
				{"pageid": 2, "title": "Two", "revisions": [
					{"timestamp": "2020-10-04T12:00:00Z", "user": "Alice"}
				]}
			]}
		}`)
	})

	pages, err := client.RevisionsByUser(context.Background(), "Alice", []int{0}, since(t), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	require.Len(t, pages, 2)
	assert.Equal(t, int64(1), pages[0].PageID)
	assert.Equal(t, "One", pages[0].Title)
	require.Len(t, pages[0].Revisions, 2, "continuation chunks of one page are merged")
	assert.Equal(t, int64(2), pages[1].PageID)
	require.Len(t, pages[1].Revisions, 1)
}

func TestRevisionsByUser_CapsDistinctPages(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"query": {"allrevisions": [
				{"pageid": 1, "title": "One", "revisions": [{"timestamp": "2020-10-02T10:00:00Z", "user": "Alice"}]},
				{"pageid": 2, "title": "Two", "revisions": [{"timestamp": "2020-10-02T11:00:00Z", "user": "Alice"}]},
				{"pageid": 3, "title": "Three", "revisions": [{"timestamp": "2020-10-02T12:00:00Z", "user": "Alice"}]}
			]}
		}`)
	})

	pages, err := client.RevisionsByUser(context.Background(), "Alice", []int{0}, since(t), 2)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, int64(1), pages[0].PageID)
	assert.Equal(t, int64(2), pages[1].PageID)
}

func TestRevisionsByUser_MalformedTimestamp(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"query": {"allrevisions": [
				{"pageid": 1, "title": "One", "revisions": [{"timestamp": "yesterday", "user": "Alice"}]}
			]}
		}`)
	})

	_, err := client.RevisionsByUser(context.Background(), "Alice", []int{0}, since(t), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed revision timestamp")
}

func TestRevisionsByUser_ApiError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": {"code": "maxlag", "info": "Waiting for replication"}}`)
	})

	_, err := client.RevisionsByUser(context.Background(), "Alice", []int{0}, since(t), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maxlag")
}

func TestRevisionsByPage_SkipsMissingAndOrdersOldestFirst(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "revisions", q.Get("prop"))
		assert.Equal(t, "42", q.Get("pageids"))
		fmt.Fprint(w, `{
			"query": {"pages": [
				{"pageid": 42, "revisions": [
					{"timestamp": "2020-10-02T10:00:00Z", "user": "Alice"},
					{"timestamp": "2020-10-02T10:05:00Z", "user": "Bob"}
				]},
				{"pageid": 43, "missing": true}
			]}
		}`)
	})

	revs, err := client.RevisionsByPage(context.Background(), 42, since(t))
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, "Alice", revs[0].User)
	assert.Equal(t, "Bob", revs[1].User)
	assert.True(t, revs[0].Timestamp.Before(revs[1].Timestamp))
}

func TestUserGroups_ChunksToBatchSize(t *testing.T) {
	var batches []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		names := r.URL.Query().Get("ususers")
		batches = append(batches, names)
		users := make([]string, 0)
		for _, name := range strings.Split(names, "|") {
			users = append(users, fmt.Sprintf(`{"name": %q, "groups": ["user"]}`, name))
		}
		fmt.Fprintf(w, `{"query": {"users": [%s]}}`, strings.Join(users, ","))
	})

	groups, err := client.UserGroups(context.Background(), []string{"A", "B", "C"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A|B", "C"}, batches)
	assert.Len(t, groups, 3)
	assert.Equal(t, GroupInfo{Groups: []string{"user"}}, groups["A"])
}

func TestUserGroups_MissingAndInvalid(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"query": {"users": [
				{"name": "Ghost", "missing": true},
				{"name": "1.2.3.4", "invalid": true},
				{"name": "Robo", "groups": ["bot", "user"]}
			]}
		}`)
	})

	groups, err := client.UserGroups(context.Background(), []string{"Ghost", "1.2.3.4", "Robo"})
	require.NoError(t, err)

	assert.True(t, groups["Ghost"].Missing)
	assert.True(t, groups["1.2.3.4"].Invalid)
	assert.True(t, groups["Robo"].IsBot())
	assert.False(t, groups["Ghost"].IsBot())
}

func TestHasContributions(t *testing.T) {
	empty := false
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "usercontribs", q.Get("list"))
		assert.Equal(t, "1", q.Get("uclimit"))
		if empty {
			fmt.Fprint(w, `{"query": {"usercontribs": []}}`)
			return
		}
		fmt.Fprint(w, `{"query": {"usercontribs": [{"timestamp": "2020-10-02T10:00:00Z"}]}}`)
	})

	has, err := client.HasContributions(context.Background(), "Alice", []int{0}, since(t))
	require.NoError(t, err)
	assert.True(t, has)

	empty = true
	has, err = client.HasContributions(context.Background(), "Alice", []int{0}, since(t))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestGet_NonOKStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.HasContributions(context.Background(), "Alice", []int{0}, since(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}
