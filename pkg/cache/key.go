package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key.
const KeyPrefix = "lcfetch"

// Key identifies a cached response.
type Key struct {
	// Method is the HTTP method
	Method string

	// URL is the full request URL
	URL string

	// BodyHash is the hex SHA-256 of the request body ("" for no body)
	BodyHash string
}

// NewKey builds a key for a request.
func NewKey(method, rawURL string, body []byte) Key {
	k := Key{Method: strings.ToUpper(method), URL: rawURL}
	if len(body) > 0 {
		sum := sha256.Sum256(body)
		k.BodyHash = hex.EncodeToString(sum[:])
	}
	return k
}

// String generates a deterministic cache key string.
// Format: lcfetch:METHOD:host/path:q1=v1:q2=v2[:body=<hash prefix>]
//
// Example:
//
//	lcfetch:GET:leetcode.com/contest/api/ranking/weekly-contest-400:pagination=2:region=global_v2
func (k Key) String() string {
	parts := []string{KeyPrefix, k.Method}

	u, err := url.Parse(k.URL)
	if err != nil {
		parts = append(parts, k.URL)
	} else {
		parts = append(parts, strings.TrimSuffix(u.Host+u.Path, "/"))

		// Query params sorted for determinism
		query := u.Query()
		names := make([]string, 0, len(query))
		for name := range query {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			parts = append(parts, name+"="+query.Get(name))
		}
	}

	if k.BodyHash != "" {
		h := k.BodyHash
		if len(h) > 16 {
			h = h[:16]
		}
		parts = append(parts, "body="+h)
	}

	return strings.Join(parts, ":")
}
