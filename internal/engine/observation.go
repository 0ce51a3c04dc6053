package engine

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lazypower/pulse/internal/signal"
)

// MaxContentBytes bounds the extracted main text kept per observation.
const MaxContentBytes = 20 * 1024

// Observation is one page visit reported by the host.
type Observation struct {
	URL              string            `json:"url"`
	Title            string            `json:"title"`
	Content          string            `json:"content"`
	Meta             signal.Meta       `json:"meta"`
	TimeOnPage       float64           `json:"timeOnPage"`
	ScrollDepth      float64           `json:"scrollDepth"`
	InteractionCount int               `json:"interactionCount"`
	DOMSignals       signal.DOMSignals `json:"domSignals"`
	SessionID        string            `json:"sessionId"`
	// Timestamp is unix milliseconds; zero means "now".
	Timestamp int64  `json:"timestamp"`
	GeoBucket string `json:"geoBucket,omitempty"`
}

// sanitize substitutes safe defaults for missing or out-of-range fields.
// It reports what it changed so the caller can log it.
func sanitize(obs Observation, now time.Time) (Observation, []string) {
	var fixed []string

	var dropped bool
	for _, field := range []*string{
		&obs.URL, &obs.Title, &obs.Content,
		&obs.Meta.Description, &obs.Meta.Keywords, &obs.Meta.Author, &obs.Meta.Type,
	} {
		if !utf8.ValidString(*field) {
			*field = strings.ToValidUTF8(*field, "")
			dropped = true
		}
	}
	if dropped {
		fixed = append(fixed, "invalid utf-8 dropped")
	}
	if len(obs.Content) > MaxContentBytes {
		obs.Content = truncateUTF8(obs.Content, MaxContentBytes)
		fixed = append(fixed, "content truncated")
	}
	if obs.URL != "" && signal.Hostname(obs.URL) == "" {
		fixed = append(fixed, "malformed url")
	}
	if obs.SessionID == "" {
		obs.SessionID = uuid.NewString()
		fixed = append(fixed, "session id assigned")
	}
	if obs.Timestamp <= 0 || obs.Timestamp > now.UnixMilli() {
		obs.Timestamp = now.UnixMilli()
	}
	return obs, fixed
}

// truncateUTF8 cuts valid UTF-8 s to at most n bytes on a rune boundary.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
