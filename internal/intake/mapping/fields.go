package mapping

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/genelab/lab-portal/internal/intake/domain"
)

// dateLayouts are tried in order; day-first forms match how the requisitions are printed
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"2006/01/02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/2006",
}

func clean(s string) string {
	return strings.TrimSpace(s)
}

// text reads a string or number field
func text(b domain.Block, key string) string {
	raw, ok := b[key]
	if !ok {
		return ""
	}
	var s domain.FlexString
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return clean(s.String())
}

// nested reads an object field; missing or malformed yields nil
func nested(b domain.Block, key string) domain.Block {
	raw, ok := b[key]
	if !ok {
		return nil
	}
	var out domain.Block
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// flag reads a checkbox: a bare boolean, a {"yes": bool} object or a yes/no string
func flag(b domain.Block, key string) bool {
	return flagValue(b[key])
}

func flagValue(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}

	switch raw[0] {
	case 't', 'f':
		var v bool
		_ = json.Unmarshal(raw, &v)
		return v
	case '{':
		var box struct {
			Yes        json.RawMessage `json:"yes"`
			IsSelected json.RawMessage `json:"is_selected"`
		}
		if err := json.Unmarshal(raw, &box); err != nil {
			return false
		}
		if len(box.Yes) > 0 {
			return flagValue(box.Yes)
		}
		return flagValue(box.IsSelected)
	case '"':
		var s string
		_ = json.Unmarshal(raw, &s)
		switch strings.ToLower(clean(s)) {
		case "true", "yes", "x", "có", "co":
			return true
		}
	}
	return false
}

// pick scans a {option: {is_selected: bool}} object in priority order and
// returns the first selected option, or "" when none is.
func (m *mapper) pick(field string, b domain.Block, key string, priority []string) string {
	options := nested(b, key)
	if options == nil {
		return ""
	}

	var selected []string
	for _, opt := range priority {
		if flagValue(options[opt]) {
			selected = append(selected, opt)
		}
	}
	if len(selected) == 0 {
		return ""
	}
	if len(selected) > 1 {
		m.warnf("%s: multiple selections (%s), using %s", field, strings.Join(selected, ", "), selected[0])
	}
	return selected[0]
}

// number reads a numeric field by its leading numeric prefix ("12 tuần" is 12)
func (m *mapper) number(field string, b domain.Block, key string) float64 {
	s := text(b, key)
	if s == "" {
		return 0
	}
	n, ok := ParseLeadingNumber(s)
	if !ok {
		m.warnf("%s: %q is not a number", field, s)
		return 0
	}
	return n
}

// date parses leniently; failure yields nil plus a warning
func (m *mapper) date(field, s string) *time.Time {
	s = clean(s)
	if s == "" {
		return nil
	}
	t, ok := ParseDate(s)
	if !ok {
		m.warnf("%s: %q is not a recognizable date", field, s)
		return nil
	}
	return &t
}

// ParseDate parses s with the first matching layout and returns the UTC date
func ParseDate(s string) (time.Time, bool) {
	s = clean(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, mo, d := t.Date()
			return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ParseLeadingNumber parses the numeric prefix of s. A comma is accepted as
// the decimal separator. Reports false when s has no leading digits.
func ParseLeadingNumber(s string) (float64, bool) {
	s = clean(s)

	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
		digits++
	}
	if end < len(s) && (s[end] == '.' || s[end] == ',') {
		frac := end + 1
		for frac < len(s) && s[frac] >= '0' && s[frac] <= '9' {
			frac++
		}
		if frac > end+1 {
			end = frac
			digits++
		}
	}
	if digits == 0 {
		return 0, false
	}

	n, err := strconv.ParseFloat(strings.Replace(s[:end], ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
