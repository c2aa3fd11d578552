// Package normalize turns upstream questions into flat output records.
package normalize

import (
	"strings"
	"time"
)

// DefaultSource is the record source prefix and meta key.
const DefaultSource = "stackexchange"

// DateLayout is the record date format: ISO 8601 without an offset.
const DateLayout = "2006-01-02T15:04:05"

// ForumMeta is the per-source metadata block.
type ForumMeta struct {
	Forum string `json:"forum"`
}

// OutputRecord is the JSON document written for each question. Field order
// is the serialized key order.
type OutputRecord struct {
	ExternalID string               `json:"external_id"`
	Abstract   string               `json:"abstract"`
	Date       string               `json:"date"`
	Title      string               `json:"title"`
	URL        string               `json:"url"`
	Words      string               `json:"words"`
	Meta       map[string]ForumMeta `json:"meta"`
}

// ExternalID builds "<source>_<forum>_<title>" with spaces turned into
// hyphens. Distinct questions sharing a title collide.
func ExternalID(source, forum, title string) string {
	return strings.ReplaceAll(source+"_"+forum+"_"+title, " ", "-")
}

// FormatDate renders epoch seconds in loc using DateLayout.
func FormatDate(epoch int64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(epoch, 0).In(loc).Format(DateLayout)
}
