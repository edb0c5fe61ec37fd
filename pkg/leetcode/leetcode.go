// Package leetcode adapts the LeetCode contest ranking API and GraphQL user
// profiles to the collectors: it builds requests, fetches raw bodies through
// the shared client, and decodes them into flat records.
package leetcode

import (
	"context"
	"fmt"
	"net/url"

	"github.com/HariharPal/LC-Fetch/pkg/client"
	"github.com/HariharPal/LC-Fetch/pkg/record"
)

// Defaults for the public LeetCode endpoints.
const (
	DefaultBaseURL = "https://leetcode.com"
	DefaultRegion  = "global_v2"
)

// Transport is the subset of *client.Client the fetchers need.
type Transport interface {
	Get(ctx context.Context, rawURL string) (*client.Response, error)
	PostJSON(ctx context.Context, rawURL string, payload any) (*client.Response, error)
}

// RankingURL builds the ranking API URL for one page of a contest.
func RankingURL(baseURL, contest string, page int, region string) string {
	if region == "" {
		region = DefaultRegion
	}
	q := url.Values{}
	q.Set("pagination", fmt.Sprintf("%d", page))
	q.Set("region", region)
	return fmt.Sprintf("%s/contest/api/ranking/%s/?%s", baseURL, url.PathEscape(contest), q.Encode())
}

// GraphQLURL returns the GraphQL endpoint under baseURL.
func GraphQLURL(baseURL string) string {
	return baseURL + "/graphql"
}

// ProfileURL returns the public profile page of a user.
func ProfileURL(baseURL string, slug record.Key) string {
	return fmt.Sprintf("%s/u/%s", baseURL, url.PathEscape(string(slug)))
}

// RankingFetcher fetches contest ranking pages.
type RankingFetcher struct {
	Transport Transport
	BaseURL   string
	Contest   string
	Region    string
}

// FetchPage implements pagination.PageFetcher.
func (f *RankingFetcher) FetchPage(ctx context.Context, page int) ([]byte, error) {
	base := f.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	resp, err := f.Transport.Get(ctx, RankingURL(base, f.Contest, page, f.Region))
	if err != nil {
		return nil, fmt.Errorf("fetch ranking page %d: %w", page, err)
	}
	return resp.Body, nil
}

// UserFetcher looks up user profiles over GraphQL.
type UserFetcher struct {
	Transport Transport
	BaseURL   string
	Query     string
}

// FetchKey implements fetcher.KeyFetcher.
func (f *UserFetcher) FetchKey(ctx context.Context, slug record.Key) ([]byte, error) {
	base := f.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	query := f.Query
	if query == "" {
		query = ProfileQuery
	}
	resp, err := f.Transport.PostJSON(ctx, GraphQLURL(base), NewGraphQLRequest(query, slug))
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", slug, err)
	}
	return resp.Body, nil
}
