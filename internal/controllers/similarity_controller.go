package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/wikimedia/research-similar-users/internal/providers"
	"github.com/wikimedia/research-similar-users/internal/services"
	"github.com/wikimedia/research-similar-users/internal/structures"
)

type SimilarityController struct {
	logger  providers.Logger
	service services.SimilarityServiceInterface
	cache   providers.CacheProviderInterface
	metrics providers.MetricsProviderInterface
	conf    *structures.Config
}

func NewSimilarityController(logger providers.Logger, service services.SimilarityServiceInterface, cache providers.CacheProviderInterface, metrics providers.MetricsProviderInterface, conf *structures.Config) *SimilarityController {
	return &SimilarityController{
		logger:  logger,
		service: service,
		cache:   cache,
		metrics: metrics,
		conf:    conf,
	}
}

type errorResponse struct {
	Error string `json:"Error"`
}

// parseK clamps the requested result count to [1, maxK]. A non-numeric
// value is not an error; it falls back to the default.
func parseK(raw string, defaultK, maxK int) int {
	if raw == "" {
		return defaultK
	}
	k, err := strconv.Atoi(raw)
	if err != nil {
		return defaultK
	}
	return max(1, min(k, maxK))
}

func (sc *SimilarityController) SimilarUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userText := q.Get("usertext")
	k := parseK(q.Get("k"), sc.conf.Similarity.DefaultK, sc.conf.Similarity.MaxK)
	followup := q.Has("followup")

	if userText == "" {
		sc.writeError(w, "No usertext provided")
		return
	}

	cacheKey := fmt.Sprintf("su:%s:%d:%t", userText, k, followup)
	if data, ok := sc.cache.Get(cacheKey); ok {
		sc.metrics.IncCacheHits()
		sc.writeRaw(w, data)
		return
	}
	sc.metrics.IncCacheMisses()

	result, err := sc.service.Query(r.Context(), services.QueryRequest{
		UserText: userText,
		K:        k,
		Followup: followup,
	})
	if err != nil {
		var validationErr *services.ValidationError
		var unknownErr *services.UnknownUserError
		if errors.As(err, &validationErr) || errors.As(err, &unknownErr) {
			sc.logger.Warnf(providers.TypeGet, "Rejected query for %q: %s", userText, err)
			sc.writeError(w, err.Error())
			return
		}
		sc.logger.Errorf(providers.TypeGet, "Unable to load data for user %q: %s", userText, err)
		sc.writeError(w, fmt.Sprintf("Unable to load data for user %s.", userText))
		return
	}

	if followup {
		sc.attachFollowupLinks(result, k)
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	sc.cache.Set(cacheKey, gson)
	sc.writeRaw(w, gson)
}

// attachFollowupLinks decorates each neighbor with investigation tool URLs.
// The engine treats these as opaque; they are a boundary concern.
func (sc *SimilarityController) attachFollowupLinks(result *services.QueryResult, k int) {
	for i := range result.Results {
		neighbor := result.Results[i].UserText
		result.Results[i].Followup = &services.FollowupLinks{
			Similar:             fmt.Sprintf("%s?usertext=%s&k=%d", sc.conf.Followup.SelfUrl, neighbor, k),
			EditorInteract:      fmt.Sprintf(sc.conf.Followup.EditorInteractUrl, result.UserText, neighbor),
			InteractionTimeline: fmt.Sprintf(sc.conf.Followup.InteractionTimelineUrl, result.UserText, neighbor),
		}
	}
}

func (sc *SimilarityController) writeError(w http.ResponseWriter, msg string) {
	gson, err := json.Marshal(errorResponse{Error: msg})
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	sc.writeRaw(w, gson)
}

func (sc *SimilarityController) writeRaw(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
