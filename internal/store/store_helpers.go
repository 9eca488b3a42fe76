package store

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const caseColumns = "id, name, facts, party_role, case_type, tags_json, petition, created_at, updated_at"

const stageColumns = "id, case_id, stage_index, name, input, output, status, retry_count, duration_ms, error_message, created_at"

type scanner interface{ Scan(dest ...any) error }

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// storedTimeLayout is fixed width so text ordering matches time ordering.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(value time.Time) string {
	return value.UTC().Format(storedTimeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func encodeTags(tags []string) string {
	cleaned := normalizeTags(tags)
	data, err := json.Marshal(cleaned)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
