// Package mediawiki implements the revision source over the MediaWiki
// Action API: time-ordered revision listings by user and by page, account
// group membership, and an existence probe. All listings consume
// continuation tokens transparently.
package mediawiki

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/wikimedia/research-similar-users/internal/models"
	"github.com/wikimedia/research-similar-users/internal/providers"
	"github.com/wikimedia/research-similar-users/internal/structures"
)

const maxResponseBodySize = 8 << 20 // 8 MB

type Revision struct {
	Timestamp time.Time
	User      string
	Comment   string
}

type PageRevisions struct {
	PageID    int64
	Title     string
	Revisions []Revision
}

// GroupInfo is one entry of a batched group-membership lookup. Missing
// marks a name with no account; Invalid marks a name that cannot be an
// account (an IP, typically).
type GroupInfo struct {
	Groups  []string
	Missing bool
	Invalid bool
}

func (g GroupInfo) IsBot() bool {
	for _, grp := range g.Groups {
		if grp == "bot" {
			return true
		}
	}
	return false
}

type ClientInterface interface {
	RevisionsByUser(ctx context.Context, user string, namespaces []int, since time.Time, maxPages int) ([]PageRevisions, error)
	RevisionsByPage(ctx context.Context, pageID int64, since time.Time) ([]Revision, error)
	UserGroups(ctx context.Context, users []string) (map[string]GroupInfo, error)
	HasContributions(ctx context.Context, user string, namespaces []int, since time.Time) (bool, error)
}

type Client struct {
	apiUrl    string
	userAgent string
	pageSize  int
	batchSize int
	http      *http.Client
	logger    providers.Logger
	metrics   providers.MetricsProviderInterface
}

func NewClient(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface) ClientInterface {
	return &Client{
		apiUrl:    conf.Source.ApiUrl,
		userAgent: conf.Source.UserAgent,
		pageSize:  conf.Source.PageSize,
		batchSize: conf.Similarity.GroupBatchSize,
		http:      &http.Client{Timeout: conf.Source.Timeout},
		logger:    logger,
		metrics:   metrics,
	}
}

func (c *Client) get(ctx context.Context, params url.Values, out interface{}) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiUrl+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("revision source request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revision source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return fmt.Errorf("read revision source response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("malformed revision source payload: %w", err)
	}
	return nil
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *apiError) check() error {
	if e == nil {
		return nil
	}
	return fmt.Errorf("revision source error %s: %s", e.Code, e.Info)
}

type revisionPayload struct {
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	Comment   string `json:"comment"`
}

func parseRevisions(raw []revisionPayload) ([]Revision, error) {
	revs := make([]Revision, 0, len(raw))
	for _, r := range raw {
		ts, err := time.Parse(models.TimeFormat, r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("malformed revision timestamp %q: %w", r.Timestamp, err)
		}
		revs = append(revs, Revision{Timestamp: ts, User: r.User, Comment: r.Comment})
	}
	return revs, nil
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, "|")
}

// RevisionsByUser lists all revisions by user since the given timestamp,
// grouped by page, oldest first. Paging stops once maxPages distinct pages
// have been collected; further pages are silently dropped for this call.
func (c *Client) RevisionsByUser(ctx context.Context, user string, namespaces []int, since time.Time, maxPages int) ([]PageRevisions, error) {
	base := url.Values{}
	base.Set("action", "query")
	base.Set("list", "allrevisions")
	base.Set("arvuser", user)
	base.Set("arvprop", "ids|timestamp|comment|user")
	base.Set("arvnamespace", joinInts(namespaces))
	base.Set("arvstart", since.UTC().Format(models.TimeFormat))
	base.Set("arvdir", "newer")
	base.Set("arvlimit", strconv.Itoa(c.pageSize))

	type allRevisionsResponse struct {
		Error    *apiError         `json:"error"`
		Continue map[string]string `json:"continue"`
		Query    struct {
			AllRevisions []struct {
				PageID    int64             `json:"pageid"`
				Title     string            `json:"title"`
				Revisions []revisionPayload `json:"revisions"`
			} `json:"allrevisions"`
		} `json:"query"`
	}

	pages := make(map[int64]*PageRevisions)
	order := make([]int64, 0)
	cont := map[string]string{}

	for {
		params := url.Values{}
		for k, v := range base {
			params[k] = v
		}
		for k, v := range cont {
			params.Set(k, v)
		}

		c.metrics.IncUpstreamRequests("allrevisions")
		var resp allRevisionsResponse
		if err := c.get(ctx, params, &resp); err != nil {
			return nil, err
		}
		if err := resp.Error.check(); err != nil {
			return nil, err
		}

		for _, page := range resp.Query.AllRevisions {
			pr, ok := pages[page.PageID]
			if !ok {
				if maxPages > 0 && len(pages) >= maxPages {
					continue
				}
				pr = &PageRevisions{PageID: page.PageID, Title: page.Title}
				pages[page.PageID] = pr
				order = append(order, page.PageID)
			}
			revs, err := parseRevisions(page.Revisions)
			if err != nil {
				return nil, err
			}
			pr.Revisions = append(pr.Revisions, revs...)
		}

		if len(resp.Continue) == 0 || (maxPages > 0 && len(pages) >= maxPages) {
			break
		}
		cont = resp.Continue
	}

	result := make([]PageRevisions, 0, len(order))
	for _, pid := range order {
		result = append(result, *pages[pid])
	}
	return result, nil
}

// RevisionsByPage lists a page's full revision history since the given
// timestamp, oldest first.
func (c *Client) RevisionsByPage(ctx context.Context, pageID int64, since time.Time) ([]Revision, error) {
	base := url.Values{}
	base.Set("action", "query")
	base.Set("prop", "revisions")
	base.Set("pageids", strconv.FormatInt(pageID, 10))
	base.Set("rvprop", "ids|timestamp|user")
	base.Set("rvstart", since.UTC().Format(models.TimeFormat))
	base.Set("rvdir", "newer")
	base.Set("rvlimit", strconv.Itoa(c.pageSize))

	type pageRevisionsResponse struct {
		Error    *apiError         `json:"error"`
		Continue map[string]string `json:"continue"`
		Query    struct {
			Pages []struct {
				PageID    int64             `json:"pageid"`
				Missing   bool              `json:"missing"`
				Revisions []revisionPayload `json:"revisions"`
			} `json:"pages"`
		} `json:"query"`
	}

	var all []Revision
	cont := map[string]string{}

	for {
		params := url.Values{}
		for k, v := range base {
			params[k] = v
		}
		for k, v := range cont {
			params.Set(k, v)
		}

		c.metrics.IncUpstreamRequests("revisions")
		var resp pageRevisionsResponse
		if err := c.get(ctx, params, &resp); err != nil {
			return nil, err
		}
		if err := resp.Error.check(); err != nil {
			return nil, err
		}

		for _, page := range resp.Query.Pages {
			if page.Missing {
				continue
			}
			revs, err := parseRevisions(page.Revisions)
			if err != nil {
				return nil, err
			}
			all = append(all, revs...)
		}

		if len(resp.Continue) == 0 {
			break
		}
		cont = resp.Continue
	}
	return all, nil
}

// UserGroups resolves group membership for a set of usernames, chunking the
// lookup to the configured batch size. Results are keyed by the name as
// returned by the source.
func (c *Client) UserGroups(ctx context.Context, users []string) (map[string]GroupInfo, error) {
	type usersResponse struct {
		Error *apiError `json:"error"`
		Query struct {
			Users []struct {
				Name    string   `json:"name"`
				Groups  []string `json:"groups"`
				Missing bool     `json:"missing"`
				Invalid bool     `json:"invalid"`
			} `json:"users"`
		} `json:"query"`
	}

	batchSize := c.batchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	result := make(map[string]GroupInfo, len(users))
	for start := 0; start < len(users); start += batchSize {
		end := min(start+batchSize, len(users))

		params := url.Values{}
		params.Set("action", "query")
		params.Set("list", "users")
		params.Set("ususers", strings.Join(users[start:end], "|"))
		params.Set("usprop", "groups")

		c.metrics.IncUpstreamRequests("users")
		var resp usersResponse
		if err := c.get(ctx, params, &resp); err != nil {
			return nil, err
		}
		if err := resp.Error.check(); err != nil {
			return nil, err
		}

		for _, u := range resp.Query.Users {
			result[u.Name] = GroupInfo{Groups: u.Groups, Missing: u.Missing, Invalid: u.Invalid}
		}
	}
	return result, nil
}

// HasContributions probes whether user has made at least one in-scope edit
// since the given timestamp.
func (c *Client) HasContributions(ctx context.Context, user string, namespaces []int, since time.Time) (bool, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "usercontribs")
	params.Set("ucuser", user)
	params.Set("ucprop", "timestamp")
	params.Set("ucnamespace", joinInts(namespaces))
	params.Set("ucstart", since.UTC().Format(models.TimeFormat))
	params.Set("ucdir", "newer")
	params.Set("uclimit", "1")

	type contribsResponse struct {
		Error *apiError `json:"error"`
		Query struct {
			UserContribs []struct {
				Timestamp string `json:"timestamp"`
			} `json:"usercontribs"`
		} `json:"query"`
	}

	c.metrics.IncUpstreamRequests("usercontribs")
	var resp contribsResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return false, err
	}
	if err := resp.Error.check(); err != nil {
		return false, err
	}
	return len(resp.Query.UserContribs) > 0, nil
}
