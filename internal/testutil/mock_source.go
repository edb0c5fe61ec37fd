// Package testutil provides an httptest stand-in for the LeetCode ranking
// API and GraphQL endpoint.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse is one scripted reply.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSource serves ranking pages and user profiles from memory. Scripted
// responses for a unit are served first, in order, before its stored body.
type MockSource struct {
	server *httptest.Server

	mu         sync.Mutex
	pages      map[int]string
	users      map[string]string
	scripted   map[string][]MockResponse
	delays     map[string]time.Duration
	requests   map[string]int
	total      int
	lastHeader http.Header
}

// NewMockSource starts a mock server.
func NewMockSource() *MockSource {
	m := &MockSource{
		pages:    make(map[int]string),
		users:    make(map[string]string),
		scripted: make(map[string][]MockResponse),
		delays:   make(map[string]time.Duration),
		requests: make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the base URL to pass as leetcode BaseURL.
func (m *MockSource) URL() string {
	return m.server.URL
}

// Close shuts the server down.
func (m *MockSource) Close() {
	m.server.Close()
}

// PageUnit and UserUnit name units for scripting and request counts.
func PageUnit(page int) string     { return "page:" + strconv.Itoa(page) }
func UserUnit(slug string) string { return "user:" + slug }

// SetPage stores the body served for a ranking page.
func (m *MockSource) SetPage(page int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page] = body
}

// SetUser stores the GraphQL body served for a user.
func (m *MockSource) SetUser(slug, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[slug] = body
}

// Script queues responses served for unit before its stored body.
func (m *MockSource) Script(unit string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripted[unit] = append(m.scripted[unit], responses...)
}

// SetDelay makes every response for unit wait d.
func (m *MockSource) SetDelay(unit string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[unit] = d
}

// Requests returns how many requests hit unit.
func (m *MockSource) Requests(unit string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[unit]
}

// TotalRequests returns the number of requests served.
func (m *MockSource) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// LastHeader returns the headers of the most recent request.
func (m *MockSource) LastHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeader
}

func (m *MockSource) handle(w http.ResponseWriter, r *http.Request) {
	unit, err := unitOf(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.total++
	m.requests[unit]++
	m.lastHeader = r.Header.Clone()
	delay := m.delays[unit]
	var resp MockResponse
	if queue := m.scripted[unit]; len(queue) > 0 {
		resp = queue[0]
		m.scripted[unit] = queue[1:]
	} else {
		resp = m.stored(unit)
	}
	m.mu.Unlock()

	if d := delay + resp.Delay; d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}

// stored returns the configured body for unit. Unknown pages are empty
// listings, unknown users a null matchedUser. Caller holds mu.
func (m *MockSource) stored(unit string) MockResponse {
	if strings.HasPrefix(unit, "page:") {
		page, _ := strconv.Atoi(strings.TrimPrefix(unit, "page:"))
		body, ok := m.pages[page]
		if !ok {
			body = `{"total_rank":[],"user_num":0}`
		}
		return MockResponse{StatusCode: http.StatusOK, Body: body}
	}

	slug := strings.TrimPrefix(unit, "user:")
	body, ok := m.users[slug]
	if !ok {
		body = UnknownUserBody(slug)
	}
	return MockResponse{StatusCode: http.StatusOK, Body: body}
}

func unitOf(r *http.Request) (string, error) {
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/contest/api/ranking/"):
		page, err := strconv.Atoi(r.URL.Query().Get("pagination"))
		if err != nil {
			return "", fmt.Errorf("bad pagination: %w", err)
		}
		return PageUnit(page), nil
	case r.Method == http.MethodPost && r.URL.Path == "/graphql":
		var req struct {
			Variables struct {
				Username string `json:"username"`
			} `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", fmt.Errorf("bad graphql body: %w", err)
		}
		return UserUnit(req.Variables.Username), nil
	default:
		return "", fmt.Errorf("unexpected %s %s", r.Method, r.URL.Path)
	}
}

// RankingPageBody renders a ranking page with n entries starting at firstRank.
// Usernames are user<rank>; every entry solved problem 1.
func RankingPageBody(firstRank, n int) string {
	entries := make([]map[string]any, n)
	for i := range entries {
		rank := firstRank + i
		entries[i] = map[string]any{
			"rank":         rank,
			"username":     fmt.Sprintf("user%d", rank),
			"user_slug":    fmt.Sprintf("user%d", rank),
			"country_code": "US",
			"country_name": "United States",
			"score":        18 - i%3,
			"finish_time":  1700000000 + rank,
			"data_region":  "US",
			"contest_id":   1000,
			"submissions": map[string]any{
				"1": map[string]any{
					"question_id":   1,
					"date":          1700000100 + i,
					"fail_count":    i % 2,
					"lang":          "golang",
					"submission_id": 500 + i,
				},
			},
		}
	}
	body, _ := json.Marshal(map[string]any{
		"total_rank": entries,
		"user_num":   n,
	})
	return string(body)
}

// SchoolBody renders a GraphQL answer carrying username and school.
func SchoolBody(username, school string) string {
	body, _ := json.Marshal(map[string]any{
		"data": map[string]any{
			"matchedUser": map[string]any{
				"username": username,
				"profile":  map[string]any{"school": school},
			},
		},
	})
	return string(body)
}

// ProfileBody renders a full profile answer.
func ProfileBody(username, country string, easySolved, badges int) string {
	badgeList := make([]map[string]any, badges)
	for i := range badgeList {
		badgeList[i] = map[string]any{"id": strconv.Itoa(i), "displayName": fmt.Sprintf("Badge %d", i+1)}
	}
	body, _ := json.Marshal(map[string]any{
		"data": map[string]any{
			"matchedUser": map[string]any{
				"username": username,
				"profile": map[string]any{
					"realName":    strings.ToUpper(username),
					"countryName": country,
					"school":      "",
					"ranking":     12345,
					"reputation":  7,
					"starRating":  3.5,
					"websites":    []string{"https://example.com"},
					"skillTags":   []string{"go", "graphs"},
				},
				"submitStats": map[string]any{
					"acSubmissionNum": []map[string]any{
						{"difficulty": "All", "count": easySolved},
						{"difficulty": "Easy", "count": easySolved},
					},
					"totalSubmissionNum": []map[string]any{
						{"difficulty": "All", "count": easySolved * 2},
						{"difficulty": "Easy", "count": easySolved * 2},
					},
				},
				"badges":      badgeList,
				"activeBadge": nil,
			},
		},
	})
	return string(body)
}

// UnknownUserBody is what the GraphQL endpoint answers for a missing user.
func UnknownUserBody(slug string) string {
	return fmt.Sprintf(`{"errors":[{"message":"That user does not exist."}],"data":{"matchedUser":null},"username":%q}`, slug)
}

// Status builds a bare scripted status response.
func Status(code int) MockResponse {
	return MockResponse{StatusCode: code, Body: http.StatusText(code)}
}

// RateLimited builds a 429 response with Retry-After.
func RateLimited(retryAfter int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":"rate limited"}`,
		Headers:    map[string]string{"Retry-After": strconv.Itoa(retryAfter)},
	}
}
