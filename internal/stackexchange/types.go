// Package stackexchange implements a rate-limited client for the Stack Exchange
// REST API along with the wire types it returns.
package stackexchange

import "encoding/json"

// SiteState is the lifecycle state the API reports for a site.
type SiteState string

// Site states returned by the /sites endpoint.
const (
	SiteStateNormal     SiteState = "normal"
	SiteStateClosedBeta SiteState = "closed_beta"
	SiteStateOpenBeta   SiteState = "open_beta"
	SiteStateLinkedMeta SiteState = "linked_meta"
)

// SiteType distinguishes main sites from their meta companions.
type SiteType string

// Site types returned by the /sites endpoint.
const (
	SiteTypeMain SiteType = "main_site"
	SiteTypeMeta SiteType = "meta_site"
)

// Site describes one forum hosted by the network.
type Site struct {
	APIName string    `json:"api_site_parameter"`
	Name    string    `json:"name"`
	URL     string    `json:"site_url"`
	State   SiteState `json:"site_state,omitempty"`
	Type    SiteType  `json:"site_type,omitempty"`
	// Raw is the item exactly as decoded, including fields the harvester
	// does not model. It is what MarshalJSON writes back when set.
	Raw json.RawMessage `json:"-"`
}

type plainSite Site

// UnmarshalJSON decodes the modeled fields and keeps a copy of data in Raw.
func (s *Site) UnmarshalJSON(data []byte) error {
	var p plainSite
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Site(p)
	s.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON writes Raw when present, otherwise the modeled fields.
func (s Site) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	return json.Marshal(plainSite(s))
}

// WithoutRaw returns s with Raw cleared, for comparing modeled fields.
func (s Site) WithoutRaw() Site {
	s.Raw = nil
	return s
}

// Answer is the subset of an answer the harvester consumes.
type Answer struct {
	ID           int64  `json:"answer_id,omitempty"`
	BodyMarkdown string `json:"body_markdown"`
}

// Question is one upstream question item. Answers may be absent even when
// IsAnswered is true, depending on the filter used.
type Question struct {
	ID           int64    `json:"question_id"`
	Title        string   `json:"title"`
	BodyMarkdown string   `json:"body_markdown"`
	Link         string   `json:"link"`
	CreationDate int64    `json:"creation_date"`
	IsAnswered   bool     `json:"is_answered"`
	Answers      []Answer `json:"answers,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Score        int      `json:"score"`
	AnswerCount  int      `json:"answer_count"`
}

// Wrapper is the common response envelope. A non-zero ErrorID means the
// request failed even if the HTTP exchange itself succeeded.
type Wrapper[T any] struct {
	Items          []T    `json:"items"`
	HasMore        bool   `json:"has_more"`
	QuotaMax       int    `json:"quota_max,omitempty"`
	QuotaRemaining int    `json:"quota_remaining,omitempty"`
	Backoff        int    `json:"backoff,omitempty"`
	ErrorID        int    `json:"error_id,omitempty"`
	ErrorName      string `json:"error_name,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// SitesPage is the /sites response.
type SitesPage = Wrapper[Site]

// QuestionsPage is the /questions response.
type QuestionsPage = Wrapper[Question]

// QuestionsRequest selects one page of questions for a site. FromDate and
// ToDate are epoch seconds; nil leaves the bound open.
type QuestionsRequest struct {
	Site     string
	Page     int
	FromDate *int64
	ToDate   *int64
}
