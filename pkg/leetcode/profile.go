package leetcode

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/HariharPal/LC-Fetch/pkg/record"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// ProfileQuery fetches the full public profile of a user.
const ProfileQuery = `query getUserProfile($username: String!) {
  matchedUser(username: $username) {
    username
    profile {
      realName
      userAvatar
      birthday
      ranking
      reputation
      websites
      countryName
      company
      school
      skillTags
      aboutMe
      starRating
    }
    submitStats {
      acSubmissionNum { difficulty count }
      totalSubmissionNum { difficulty count }
    }
    badges { id displayName icon creationDate }
    activeBadge { displayName icon }
  }
}`

// SchoolQuery fetches only the username and school of a user.
const SchoolQuery = `query getUserProfile($username: String!) {
  matchedUser(username: $username) {
    username
    profile {
      school
    }
  }
}`

// MaxBadgeNames caps how many badge names are joined into badge_names.
const MaxBadgeNames = 10

// listSeparator joins list-valued profile fields into one cell.
const listSeparator = "; "

// ValidateQuery parses a user-supplied GraphQL query and checks that one of
// its operations declares the $username variable every lookup binds.
func ValidateQuery(query string) error {
	doc, err := parser.ParseQuery(&ast.Source{Name: "query", Input: query})
	if err != nil {
		return fmt.Errorf("parse graphql query: %w", err)
	}
	if len(doc.Operations) == 0 {
		return fmt.Errorf("graphql query has no operation")
	}
	for _, op := range doc.Operations {
		if op.VariableDefinitions.ForName("username") != nil {
			return nil
		}
	}
	return fmt.Errorf("graphql query must declare a $username variable")
}

// GraphQLRequest is the POST body of a GraphQL call.
type GraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// NewGraphQLRequest builds a profile lookup for slug.
func NewGraphQLRequest(query string, slug record.Key) GraphQLRequest {
	return GraphQLRequest{
		Query:     query,
		Variables: map[string]any{"username": string(slug)},
	}
}

type difficultyCount struct {
	Difficulty string `json:"difficulty"`
	Count      int64  `json:"count"`
}

type badge struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	Icon         string `json:"icon"`
	CreationDate string `json:"creationDate"`
}

type matchedUser struct {
	Username string `json:"username"`
	Profile  struct {
		RealName    string          `json:"realName"`
		UserAvatar  string          `json:"userAvatar"`
		Birthday    string          `json:"birthday"`
		Ranking     json.RawMessage `json:"ranking"`
		Reputation  json.RawMessage `json:"reputation"`
		Websites    []string        `json:"websites"`
		CountryName string          `json:"countryName"`
		Company     string          `json:"company"`
		School      string          `json:"school"`
		SkillTags   []string        `json:"skillTags"`
		AboutMe     string          `json:"aboutMe"`
		StarRating  json.RawMessage `json:"starRating"`
	} `json:"profile"`
	SubmitStats struct {
		AcSubmissionNum    []difficultyCount `json:"acSubmissionNum"`
		TotalSubmissionNum []difficultyCount `json:"totalSubmissionNum"`
	} `json:"submitStats"`
	Badges      []badge `json:"badges"`
	ActiveBadge *badge  `json:"activeBadge"`
}

type graphQLResponse struct {
	Data struct {
		MatchedUser *matchedUser `json:"matchedUser"`
	} `json:"data"`
}

// decodeMatchedUser parses a GraphQL body. A null matchedUser, which is also
// what the API answers for unknown users alongside an errors list, is ErrNotFound.
func decodeMatchedUser(slug record.Key, body []byte) (*matchedUser, error) {
	var resp graphQLResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &record.DecodeError{Key: slug, Err: fmt.Errorf("graphql response is not valid JSON: %w", err)}
	}
	if resp.Data.MatchedUser == nil {
		return nil, fmt.Errorf("user %s: %w", slug, record.ErrNotFound)
	}
	return resp.Data.MatchedUser, nil
}

// ProfileDecoder flattens a full profile lookup into one record.
type ProfileDecoder struct{}

// DecodeKey implements fetcher.KeyDecoder.
func (ProfileDecoder) DecodeKey(slug record.Key, body []byte) (record.Record, error) {
	user, err := decodeMatchedUser(slug, body)
	if err != nil {
		return record.Record{}, err
	}
	p := user.Profile

	r := record.New()
	r.Set("username", user.Username)
	r.Set("real_name", p.RealName)
	r.Set("country", p.CountryName)
	r.Set("company", p.Company)
	r.Set("school_college", p.School)
	for _, f := range []struct {
		name string
		raw  json.RawMessage
	}{
		{"ranking", p.Ranking},
		{"reputation", p.Reputation},
		{"star_rating", p.StarRating},
	} {
		v, err := record.ParseScalar(f.raw)
		if err != nil {
			return record.Record{}, &record.DecodeError{Key: slug, Err: fmt.Errorf("%s: %w", f.name, err)}
		}
		if v == nil {
			v = ""
		}
		r.Set(f.name, v)
	}
	r.Set("about_me", p.AboutMe)
	r.Set("birthday", p.Birthday)
	r.Set("avatar", p.UserAvatar)
	r.Set("websites", strings.Join(p.Websites, listSeparator))
	r.Set("skill_tags", strings.Join(p.SkillTags, listSeparator))

	for _, item := range user.SubmitStats.AcSubmissionNum {
		r.Set(strings.ToLower(item.Difficulty)+"_solved", item.Count)
	}
	for _, item := range user.SubmitStats.TotalSubmissionNum {
		r.Set(strings.ToLower(item.Difficulty)+"_total_submissions", item.Count)
	}

	r.Set("total_badges", len(user.Badges))
	names := make([]string, 0, MaxBadgeNames)
	for i, b := range user.Badges {
		if i >= MaxBadgeNames {
			break
		}
		names = append(names, b.DisplayName)
	}
	r.Set("badge_names", strings.Join(names, listSeparator))

	active := ""
	if user.ActiveBadge != nil {
		active = user.ActiveBadge.DisplayName
	}
	r.Set("active_badge", active)

	return r, nil
}

// ProfileColumns are the fixed columns ProfileDecoder always produces.
// Per-difficulty counts vary by response and are not listed.
var ProfileColumns = []string{
	"username", "real_name", "country", "company", "school_college",
	"ranking", "reputation", "star_rating", "about_me", "birthday", "avatar",
	"websites", "skill_tags", "total_badges", "badge_names", "active_badge",
}

// SchoolDecoder keeps only username and school.
type SchoolDecoder struct{}

// DecodeKey implements fetcher.KeyDecoder.
func (SchoolDecoder) DecodeKey(slug record.Key, body []byte) (record.Record, error) {
	user, err := decodeMatchedUser(slug, body)
	if err != nil {
		return record.Record{}, err
	}
	r := record.New()
	r.Set("username", user.Username)
	r.Set("school", user.Profile.School)
	return r, nil
}

// SchoolColumns are the columns SchoolDecoder produces.
var SchoolColumns = []string{"username", "school"}
