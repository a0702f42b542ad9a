package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Account identifies the signed-in Microsoft user.
type Account struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

// MeResponse is the session-check payload.
type MeResponse struct {
	LoggedIn bool     `json:"loggedIn"`
	Account  *Account `json:"account,omitempty"`
}

// CallbackResponse is returned by the code exchange endpoint. Token-based
// backends return accessToken, cookie-session backends return success.
type CallbackResponse struct {
	AccessToken string   `json:"accessToken"`
	TokenType   string   `json:"tokenType,omitempty"`
	ExpiresIn   int64    `json:"expiresIn,omitempty"`
	Success     bool     `json:"success"`
	Account     *Account `json:"account,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// OK reports whether the exchange produced a session.
func (r *CallbackResponse) OK() bool {
	return r != nil && (r.AccessToken != "" || r.Success)
}

type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
)

// Normalize maps backend spellings onto the three known values. Anything
// unrecognised is Neutral.
func (s Sentiment) Normalize() Sentiment {
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case "positive":
		return SentimentPositive
	case "negative":
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Recipient mirrors the Graph "from" shape: {"emailAddress": {...}}.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

type Analysis struct {
	Sentiment   Sentiment `json:"sentiment"`
	Summary     string    `json:"summary"`
	ActionItems []string  `json:"actionItems"`
}

// AnalyzedEmail is one email annotated by the backend.
type AnalyzedEmail struct {
	ID       string    `json:"id"`
	Subject  string    `json:"subject"`
	From     Recipient `json:"from"`
	Analysis Analysis  `json:"analysis"`
}

// Sender returns the display name, falling back to the address.
func (e AnalyzedEmail) Sender() string {
	if e.From.EmailAddress.Name != "" {
		return e.From.EmailAddress.Name
	}
	return e.From.EmailAddress.Address
}

// AnalysisResult holds whichever payload shape the backend returned: a list
// of analyzed emails, or a single free-text analysis.
type AnalysisResult struct {
	Emails []AnalyzedEmail
	Text   string
}

func (r AnalysisResult) Empty() bool {
	return len(r.Emails) == 0 && strings.TrimSpace(r.Text) == ""
}

func (r *AnalysisResult) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = AnalysisResult{}
		return nil
	}

	if data[0] == '[' {
		var emails []AnalyzedEmail
		if err := json.Unmarshal(data, &emails); err != nil {
			return err
		}
		*r = AnalysisResult{Emails: emails}
		return nil
	}

	var obj struct {
		Analysis *string        `json:"analysis"`
		Emails   []AnalyzedEmail `json:"emails"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Analysis == nil && obj.Emails == nil {
		return fmt.Errorf("unrecognised analysis payload")
	}

	*r = AnalysisResult{Emails: obj.Emails}
	if obj.Analysis != nil {
		r.Text = *obj.Analysis
	}
	return nil
}
