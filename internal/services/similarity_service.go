package services

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/wikimedia/research-similar-users/internal/mediawiki"
	"github.com/wikimedia/research-similar-users/internal/models"
	"github.com/wikimedia/research-similar-users/internal/providers"
	"github.com/wikimedia/research-similar-users/internal/structures"
)

type QueryRequest struct {
	UserText string
	K        int
	Followup bool
}

// NeighborResult is one similar-user entry. Followup is left nil by the
// engine; the boundary layer fills it in when requested.
type NeighborResult struct {
	UserText       string         `json:"user_text"`
	NumEditsInData int            `json:"num_edits_in_data"`
	EditOverlap    float64        `json:"edit-overlap"`
	EditOverlapInv float64        `json:"edit-overlap-inv"`
	DayOverlap     models.Overlap `json:"day-overlap"`
	HourOverlap    models.Overlap `json:"hour-overlap"`
	Followup       *FollowupLinks `json:"follow-up,omitempty"`
}

type FollowupLinks struct {
	Similar             string `json:"similar"`
	EditorInteract      string `json:"editorinteract"`
	InteractionTimeline string `json:"interaction-timeline"`
}

type QueryResult struct {
	UserText        string           `json:"user_text"`
	NumEditsInData  int              `json:"num_edits_in_data"`
	FirstEditInData *string          `json:"first_edit_in_data"`
	LastEditInData  *string          `json:"last_edit_in_data"`
	Results         []NeighborResult `json:"results"`
}

type SimilarityServiceInterface interface {
	Query(ctx context.Context, req QueryRequest) (*QueryResult, error)
	UserCount() int
}

type SimilarityService struct {
	conf    *structures.Config
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
	client  mediawiki.ClientInterface
	store   *models.UserStore

	defaultStart time.Time
	earliest     time.Time
}

func NewSimilarityService(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface, client mediawiki.ClientInterface, store *models.UserStore) SimilarityServiceInterface {
	defaultStart, _ := time.Parse(time.RFC3339, conf.Similarity.DefaultStart)
	earliest, _ := time.Parse(time.RFC3339, conf.Similarity.EarliestStart)
	return &SimilarityService{
		conf:         conf,
		logger:       logger,
		metrics:      metrics,
		client:       client,
		store:        store,
		defaultStart: defaultStart,
		earliest:     earliest,
	}
}

// NormalizeHandle standardizes a user handle: any leading "User:" prefixes
// are stripped, spaces become underscores, and the first character is
// capitalized. The result is a fixed point of NormalizeHandle.
func NormalizeHandle(raw string) string {
	s := raw
	for len(s) >= 5 && strings.EqualFold(s[:5], "user:") {
		s = s[5:]
	}
	s = strings.ReplaceAll(s, " ", "_")
	if s == "" {
		return ""
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func (s *SimilarityService) UserCount() int {
	return s.store.Len()
}

// Query answers "top-K similar users" for one handle. The per-user lock
// covers the fetch-discover-merge sequence, dropping briefly while neighbor
// page counts are read; decoration runs on copies after release.
func (s *SimilarityService) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	handle := NormalizeHandle(req.UserText)
	if handle == "" {
		return nil, &ValidationError{Msg: `missing user_text -- e.g., "Isaac (WMF)" for https://en.wikipedia.org/wiki/User:Isaac_(WMF)`}
	}

	st, err := s.resolve(ctx, handle)
	if err != nil {
		return nil, err
	}

	st.Lock()
	touched, err := s.fetchDelta(ctx, handle, st)
	var discoveries map[string]int
	if err != nil {
		// Stale state is an acceptable answer; total failure is not.
		s.metrics.IncFetchFailures("delta")
		s.logger.Errorf(providers.TypeGet, "Failed to get additional edits for %s: %s", handle, err)
	} else if len(touched) > 0 {
		discoveries, err = s.discover(ctx, handle, touched)
		if err != nil {
			s.metrics.IncFetchFailures("discovery")
			s.logger.Errorf(providers.TypeGet, "Failed to discover co-editors for %s: %s", handle, err)
			discoveries = nil
		}
	}
	if len(discoveries) > 0 {
		// Reading a neighbor's page count takes that neighbor's lock, so
		// collect the counts with this user's lock released. Two users
		// querying each other would otherwise block forever.
		handles := make([]string, 0, len(st.Neighbors)+len(discoveries))
		for _, entry := range st.Neighbors {
			handles = append(handles, entry.Neighbor)
		}
		for neighbor := range discoveries {
			handles = append(handles, neighbor)
		}
		st.Unlock()
		counts := make(map[string]int, len(handles))
		for _, h := range handles {
			counts[h] = s.store.NeighborPages(h)
		}
		st.Lock()
		st.Neighbors = models.MergeNeighbors(st.Neighbors, discoveries, func(n string) int { return counts[n] }, s.conf.Similarity.MaxNeighbors)
	}

	meta := st.Meta
	temporal := st.Temporal
	top := make([]models.CoeditEntry, 0, min(req.K, len(st.Neighbors)))
	top = append(top, st.Neighbors[:min(req.K, len(st.Neighbors))]...)
	st.Unlock()

	return s.buildResult(handle, meta, &temporal, top), nil
}

// resolve returns the user's state bundle, probing the revision source for
// handles with no cached state. Bots and unknown accounts are rejected;
// anonymous and registered editors are seeded with empty state.
func (s *SimilarityService) resolve(ctx context.Context, handle string) (*models.UserState, error) {
	if st, ok := s.store.Get(handle); ok {
		return st, nil
	}

	has, err := s.client.HasContributions(ctx, handle, s.conf.Similarity.Namespaces, s.earliest)
	if err != nil {
		s.metrics.IncFetchFailures("probe")
		return nil, err
	}
	if !has {
		s.logger.Warnf(providers.TypeGet, "Request for user %s with no account or edits in scope", handle)
		return nil, &UnknownUserError{Handle: handle, Reason: ReasonNoEdits}
	}

	groups, err := s.client.UserGroups(ctx, []string{handle})
	if err != nil {
		s.metrics.IncFetchFailures("probe")
		return nil, err
	}

	info, ok := lookupGroupInfo(groups, handle)
	switch {
	case !ok || info.Missing:
		// Contributions exist but no resolvable account; should not happen.
		s.logger.Errorf(providers.TypeGet, "Request for user %s with contributions but no account", handle)
		return nil, &UnknownUserError{Handle: handle, Reason: ReasonNoAccount}
	case info.Invalid:
		// An IP editor: valid subject, no account record.
		return s.store.GetOrCreate(handle, true), nil
	case info.IsBot():
		s.logger.Warnf(providers.TypeGet, "Request for bot account %s - out of scope", handle)
		return nil, &UnknownUserError{Handle: handle, Reason: ReasonBot}
	default:
		s.logger.Debugf(providers.TypeGet, "Request for user %s not present in baseline", handle)
		return s.store.GetOrCreate(handle, false), nil
	}
}

// lookupGroupInfo matches a group result to a handle, tolerating the
// source's underscore-to-space name normalization.
func lookupGroupInfo(groups map[string]mediawiki.GroupInfo, handle string) (mediawiki.GroupInfo, bool) {
	if info, ok := groups[handle]; ok {
		return info, true
	}
	info, ok := groups[strings.ReplaceAll(handle, "_", " ")]
	return info, ok
}

// fetchDelta pulls all revisions by handle since the watermark, grouped by
// page. State is mutated only after the listing fully succeeds; a failed or
// cancelled call leaves the bundle untouched.
func (s *SimilarityService) fetchDelta(ctx context.Context, handle string, st *models.UserState) (map[int64][]time.Time, error) {
	since := s.defaultStart
	if st.Meta.MostRecentEdit != nil {
		// One time unit forward so the boundary revision is not re-counted.
		since = st.Meta.MostRecentEdit.Add(time.Second)
	}

	pages, err := s.client.RevisionsByUser(ctx, handle, s.conf.Similarity.Namespaces, since, s.conf.Similarity.MaxPagesPerFetch)
	if err != nil {
		return nil, err
	}

	touched := make(map[int64][]time.Time)
	var scratch models.TemporalProfile
	newEdits := 0
	oldest := st.Meta.OldestEdit
	newest := st.Meta.MostRecentEdit

	for _, page := range pages {
		for _, rev := range page.Revisions {
			ts := rev.Timestamp
			touched[page.PageID] = append(touched[page.PageID], ts)
			scratch.Record(int(ts.Weekday()), ts.Hour(), 1, s.conf.Similarity.TemporalOffsets)
			newEdits++
			if oldest == nil || ts.Before(*oldest) {
				t := ts
				oldest = &t
			}
			if newest == nil || ts.After(*newest) {
				t := ts
				newest = &t
			}
		}
	}
	if newEdits == 0 {
		return nil, nil
	}

	// Commit. Page counts may slightly overcount pages already seen before
	// the watermark; verifying would cost a lookup per page for little gain.
	st.Meta.NumEdits += newEdits
	st.Meta.NumPages += len(touched)
	st.Meta.OldestEdit = oldest
	st.Meta.MostRecentEdit = newest
	st.Temporal.Add(&scratch)
	return touched, nil
}

// discover finds other editors whose revisions on the touched pages fall
// within the configured positional window around the user's own revisions,
// then drops automated accounts. Returns neighbor -> distinct pages
// overlapped. Any failure discards the whole batch.
func (s *SimilarityService) discover(ctx context.Context, handle string, touched map[int64][]time.Time) (map[string]int, error) {
	window := s.conf.Similarity.EditWindow
	overlaps := make(map[string]map[int64]struct{})

	for pid := range touched {
		revs, err := s.client.RevisionsByPage(ctx, pid, s.defaultStart)
		if err != nil {
			return nil, err
		}
		for i, rev := range revs {
			if NormalizeHandle(rev.User) != handle {
				continue
			}
			lo := max(0, i-window)
			hi := min(len(revs), i+window+1)
			for _, other := range revs[lo:hi] {
				neighbor := NormalizeHandle(other.User)
				if neighbor == handle || neighbor == "" {
					continue
				}
				if overlaps[neighbor] == nil {
					overlaps[neighbor] = make(map[int64]struct{})
				}
				overlaps[neighbor][pid] = struct{}{}
			}
		}
	}

	// Known users already passed the bot filter when they entered the
	// store; only probe the rest.
	candidates := make([]string, 0, len(overlaps))
	for neighbor := range overlaps {
		if !s.store.Has(neighbor) {
			candidates = append(candidates, neighbor)
		}
	}
	if len(candidates) > 0 {
		groups, err := s.client.UserGroups(ctx, candidates)
		if err != nil {
			return nil, err
		}
		for name, info := range groups {
			if info.IsBot() {
				delete(overlaps, NormalizeHandle(name))
			}
		}
	}

	result := make(map[string]int, len(overlaps))
	for neighbor, pids := range overlaps {
		result[neighbor] = len(pids)
	}
	return result, nil
}

func (s *SimilarityService) buildResult(handle string, meta models.UserRecord, temporal *models.TemporalProfile, top []models.CoeditEntry) *QueryResult {
	result := &QueryResult{
		UserText:       handle,
		NumEditsInData: meta.NumEdits,
		Results:        make([]NeighborResult, 0, len(top)),
	}
	if meta.OldestEdit != nil {
		t := meta.OldestEdit.UTC().Format(models.ReadableTimeFormat)
		result.FirstEditInData = &t
	}
	if meta.MostRecentEdit != nil {
		t := meta.MostRecentEdit.UTC().Format(models.ReadableTimeFormat)
		result.LastEditInData = &t
	}

	for _, entry := range top {
		neighborMeta, known := s.store.ReadMeta(entry.Neighbor)
		neighborPages := neighborMeta.NumPages
		numEdits := neighborPages
		if !known || neighborPages == 0 {
			neighborPages = 1
			numEdits = entry.Overlap
		}

		overlap := 0.0
		if meta.NumPages > 0 {
			overlap = float64(entry.Overlap) / float64(meta.NumPages)
		}

		var neighborTemporal *models.TemporalProfile
		if tp, ok := s.store.ReadTemporal(entry.Neighbor); ok {
			neighborTemporal = &tp
		}

		result.Results = append(result.Results, NeighborResult{
			UserText:       entry.Neighbor,
			NumEditsInData: numEdits,
			EditOverlap:    overlap,
			EditOverlapInv: min(1, float64(entry.Overlap)/float64(neighborPages)),
			DayOverlap:     models.TemporalSimilarity(temporal, neighborTemporal, models.AxisDay),
			HourOverlap:    models.TemporalSimilarity(temporal, neighborTemporal, models.AxisHour),
		})
	}
	return result
}
