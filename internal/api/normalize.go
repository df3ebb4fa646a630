package api

import (
	"encoding/json"
	"strings"
)

// wireTheme accepts every theme shape the API has produced.
type wireTheme struct {
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Summary     string          `json:"summary"`
	Description string          `json:"description"`
	Sentiment   string          `json:"sentiment"`
	Confidence  float64         `json:"confidence"`
	Count       *int            `json:"count"`
	Mentions    *int            `json:"mentions"`
	Evidence    json.RawMessage `json:"evidence"`
	Quotes      json.RawMessage `json:"quotes"`
}

type wireAnalysis struct {
	Analysis
	Themes []wireTheme `json:"themes"`
}

type wireShareResult struct {
	ShareResult
	SharedWithEmail string `json:"shared_with_email"`
	EmailSent       *bool  `json:"email_sent"`
}

func (w wireTheme) normalize() Theme {
	t := Theme{
		Name:       firstNonEmpty(w.Name, w.Title),
		Summary:    firstNonEmpty(w.Summary, w.Description),
		Sentiment:  normalizeSentiment(w.Sentiment),
		Confidence: w.Confidence,
		Evidence:   decodeEvidence(w.Evidence),
	}
	if t.Evidence == nil {
		t.Evidence = decodeEvidence(w.Quotes)
	}
	if t.Evidence == nil {
		t.Evidence = []string{}
	}
	switch {
	case w.Count != nil:
		t.Count = *w.Count
	case w.Mentions != nil:
		t.Count = *w.Mentions
	}
	return t
}

func (w wireAnalysis) normalize() *Analysis {
	a := w.Analysis
	a.Themes = make([]Theme, 0, len(w.Themes))
	for _, t := range w.Themes {
		a.Themes = append(a.Themes, t.normalize())
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	return &a
}

func (w wireShareResult) normalize() *ShareResult {
	r := w.ShareResult
	if r.InvitedEmail == "" {
		r.InvitedEmail = w.SharedWithEmail
	}
	r.EmailSent = w.EmailSent == nil || *w.EmailSent
	return &r
}

// decodeEvidence accepts a list of strings, a single string, or a list of
// {"quote": ...} objects.
func decodeEvidence(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return []string{}
		}
		return []string{single}
	}
	var objs []struct {
		Quote string `json:"quote"`
		Text  string `json:"text"`
	}
	if err := json.Unmarshal(raw, &objs); err == nil {
		out := make([]string, 0, len(objs))
		for _, o := range objs {
			if q := firstNonEmpty(o.Quote, o.Text); q != "" {
				out = append(out, q)
			}
		}
		return out
	}
	return []string{}
}

func normalizeSentiment(s string) Sentiment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return SentimentPositive
	case "negative":
		return SentimentNegative
	case "critical":
		return SentimentCritical
	case "neutral", "":
		return SentimentNeutral
	default:
		return Sentiment(s)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
