package session

import (
	"fmt"
	"regexp"
	"strings"
)

// maxExchanges bounds the rolling windows of recent messages.
const maxExchanges = 4

// maxContextChars bounds the rendered memory context included in prompts.
const maxContextChars = 250

// Memory is the rolling conversational memory of one session.
type Memory struct {
	UserName string
	Location string
	Date     string // session date, rendered once at creation

	userMessages []string
	replies      []string
}

// Exchange pairs one user utterance with the reply it produced.
type Exchange struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Snapshot is the client-facing view of memory.
type Snapshot struct {
	UserName        string     `json:"name,omitempty"`
	Location        string     `json:"location,omitempty"`
	Date            string     `json:"date,omitempty"`
	RecentExchanges []Exchange `json:"recentExchanges"`
}

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:my name is|i am|i'm|call me)\s+([A-Za-z]+)`),
}

// Location phrases are heuristic. A capitalized word run after "in"/"at"/
// "for" near a weather word is treated as a place name; exact thresholds
// are tunable, not contractual.
var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:weather|temperature|forecast)\s+(?:in|at|for)\s+([A-Z][a-zA-Z]*(?:\s+[A-Z][a-zA-Z]*)*)`),
	regexp.MustCompile(`(?:city|location|place)\s+(?:is|:)\s+([A-Z][a-zA-Z]*(?:\s+[A-Z][a-zA-Z]*)*)`),
	regexp.MustCompile(`\b(?:in|at|for)\s+([A-Z][a-zA-Z]*(?:\s+[A-Z][a-zA-Z]*)*)`),
}

// ExtractLocation pulls a place name out of an utterance, or returns "".
func ExtractLocation(text string) string {
	for _, p := range locationPatterns {
		m := p.FindStringSubmatch(text)
		if len(m) > 1 {
			loc := strings.TrimRight(strings.TrimSpace(m[1]), "?.,!")
			if len(loc) > 2 && len(loc) < 30 {
				return loc
			}
		}
	}
	return ""
}

// ExtractName pulls a self-introduced name out of an utterance, or "".
func ExtractName(text string) string {
	for _, p := range namePatterns {
		m := p.FindStringSubmatch(text)
		if len(m) > 1 && len(m[1]) > 2 {
			return m[1]
		}
	}
	return ""
}

// detect runs the name and location detectors over a user utterance.
func (m *Memory) detect(userText string) {
	if name := ExtractName(userText); name != "" {
		m.UserName = name
	}
	if loc := ExtractLocation(userText); loc != "" {
		m.Location = loc
	}
}

// observe records one exchange and runs the detectors.
func (m *Memory) observe(userText, replyText string) {
	m.detect(userText)
	if userText != "" {
		m.userMessages = appendBounded(m.userMessages, userText)
	}
	if replyText != "" {
		m.replies = appendBounded(m.replies, replyText)
	}
}

func appendBounded(list []string, v string) []string {
	list = append(list, v)
	if len(list) > maxExchanges {
		list = list[len(list)-maxExchanges:]
	}
	return list
}

// contextPrompt renders memory as a compact prompt fragment, bounded in
// length so it never dominates the generation prompt.
func (m *Memory) contextPrompt() string {
	var b strings.Builder
	if m.UserName != "" {
		fmt.Fprintf(&b, "User: %s\n", m.UserName)
	}
	if m.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", m.Location)
	}
	if m.Date != "" {
		fmt.Fprintf(&b, "Date: %s\n", m.Date)
	}
	if len(m.userMessages) > 0 {
		recent := m.userMessages
		if len(recent) > 2 {
			recent = recent[len(recent)-2:]
		}
		joined := strings.Join(recent, " | ")
		if len(joined) > 150 {
			joined = joined[:150]
		}
		fmt.Fprintf(&b, "Recent: %s\n", joined)
	}
	out := b.String()
	if len(out) > maxContextChars {
		out = out[:maxContextChars]
	}
	return out
}

// snapshot pairs the last few user messages with their replies.
func (m *Memory) snapshot() Snapshot {
	snap := Snapshot{
		UserName: m.UserName,
		Location: m.Location,
		Date:     m.Date,
	}
	start := 0
	if len(m.userMessages) > 3 {
		start = len(m.userMessages) - 3
	}
	for i := start; i < len(m.userMessages); i++ {
		ex := Exchange{User: m.userMessages[i]}
		if i < len(m.replies) {
			ex.Assistant = m.replies[i]
		}
		snap.RecentExchanges = append(snap.RecentExchanges, ex)
	}
	return snap
}
