package logs

import (
	"encoding/json"
	"strconv"
	"strings"

	"mediabot/internal/logging"
)

// Filter selects log lines. The zero value matches everything.
type Filter struct {
	JobID     string
	AccountID int64
}

// Empty reports whether the filter matches every line.
func (f Filter) Empty() bool {
	return strings.TrimSpace(f.JobID) == "" && f.AccountID == 0
}

// Match reports whether line belongs to the selected job or account.
func (f Filter) Match(line string) bool {
	if f.Empty() {
		return true
	}
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var record map[string]any
		if err := json.Unmarshal([]byte(trimmed), &record); err == nil {
			return f.matchRecord(record)
		}
	}
	return f.matchText(trimmed)
}

func (f Filter) matchRecord(record map[string]any) bool {
	if id := strings.TrimSpace(f.JobID); id != "" {
		value, _ := record[logging.FieldJobID].(string)
		if value != id {
			return false
		}
	}
	if f.AccountID != 0 {
		switch value := record[logging.FieldAccountID].(type) {
		case float64:
			if int64(value) != f.AccountID {
				return false
			}
		case string:
			if value != strconv.FormatInt(f.AccountID, 10) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (f Filter) matchText(line string) bool {
	if id := strings.TrimSpace(f.JobID); id != "" && !containsField(line, logging.FieldJobID, id) && !hasJobSubject(line, id) {
		return false
	}
	if f.AccountID != 0 && !containsField(line, logging.FieldAccountID, strconv.FormatInt(f.AccountID, 10)) {
		return false
	}
	return true
}

func containsField(line, key, value string) bool {
	for _, field := range strings.Fields(line) {
		k, v, ok := strings.Cut(field, "=")
		if ok && k == key && strings.Trim(v, `"`) == value {
			return true
		}
	}
	return false
}

// hasJobSubject matches the console handler's "[job <first 8 chars>]" and
// "[job <first 8 chars>/<stage>]" prefixes.
func hasJobSubject(line, id string) bool {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return strings.Contains(line, "[job "+short+"]") || strings.Contains(line, "[job "+short+"/")
}
