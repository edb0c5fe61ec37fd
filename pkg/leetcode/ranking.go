package leetcode

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/HariharPal/LC-Fetch/pkg/record"
)

// rankingFields are copied from each ranking entry, in this order.
var rankingFields = []string{
	"rank",
	"username",
	"user_slug",
	"country_code",
	"country_name",
	"score",
	"finish_time",
	"data_region",
	"contest_id",
}

type submission struct {
	QuestionID   json.RawMessage `json:"question_id"`
	Date         json.RawMessage `json:"date"`
	FailCount    json.RawMessage `json:"fail_count"`
	Lang         json.RawMessage `json:"lang"`
	SubmissionID json.RawMessage `json:"submission_id"`
}

type rankingPage struct {
	TotalRank []map[string]json.RawMessage `json:"total_rank"`
}

// RankingDecoder decodes one contest ranking page. A page without a
// total_rank list decodes to zero records.
type RankingDecoder struct{}

// DecodePage implements pagination.PageDecoder.
func (RankingDecoder) DecodePage(body []byte) ([]record.Record, error) {
	var page rankingPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &record.DecodeError{Err: fmt.Errorf("ranking page is not valid JSON: %w", err)}
	}

	records := make([]record.Record, 0, len(page.TotalRank))
	for i, entry := range page.TotalRank {
		r := record.New()
		for _, field := range rankingFields {
			v, err := record.ParseScalar(entry[field])
			if err != nil {
				return nil, &record.DecodeError{Err: fmt.Errorf("entry %d field %s: %w", i, field, err)}
			}
			r.Set(field, v)
		}

		if raw, ok := entry["submissions"]; ok {
			if err := addSubmissions(&r, raw); err != nil {
				return nil, &record.DecodeError{Err: fmt.Errorf("entry %d submissions: %w", i, err)}
			}
		}
		records = append(records, r)
	}
	return records, nil
}

// addSubmissions flattens per-problem submissions into problem_<id>_* fields.
// The API sends either an object keyed by question id or a list.
func addSubmissions(r *record.Record, raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if trimmed[0] == '[' {
		var list []submission
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		for i, sub := range list {
			id := fmt.Sprintf("%d", i)
			if v, err := record.ParseScalar(sub.QuestionID); err == nil && v != nil {
				id = fmt.Sprint(v)
			}
			if err := setSubmission(r, id, sub); err != nil {
				return err
			}
		}
		return nil
	}

	ids, subs, err := orderedObject(trimmed)
	if err != nil {
		return err
	}
	for _, id := range ids {
		var sub submission
		if err := json.Unmarshal(subs[id], &sub); err != nil {
			return fmt.Errorf("problem %s: %w", id, err)
		}
		if err := setSubmission(r, id, sub); err != nil {
			return err
		}
	}
	return nil
}

func setSubmission(r *record.Record, id string, sub submission) error {
	fields := []struct {
		suffix string
		raw    json.RawMessage
	}{
		{"date", sub.Date},
		{"fail_count", sub.FailCount},
		{"lang", sub.Lang},
		{"submission_id", sub.SubmissionID},
	}
	for _, f := range fields {
		v, err := record.ParseScalar(f.raw)
		if err != nil {
			return fmt.Errorf("problem %s %s: %w", id, f.suffix, err)
		}
		r.Set(fmt.Sprintf("problem_%s_%s", id, f.suffix), v)
	}
	return nil
}

// orderedObject decodes a JSON object keeping its key order.
func orderedObject(data []byte) ([]string, map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}

	var keys []string
	values := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		if _, dup := values[key]; !dup {
			keys = append(keys, key)
		}
		values[key] = raw
	}
	return keys, values, nil
}
