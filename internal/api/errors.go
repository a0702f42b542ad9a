package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxErrorLen = 300

// ErrorMessage pulls a human-readable message out of an error response body:
// a JSON message/error field, the text of an HTML error page, or the raw
// body. It returns "" when nothing usable is present.
func ErrorMessage(body []byte, contentType string) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	if body[0] == '{' {
		if msg := jsonMessage(body); msg != "" {
			return truncate(msg)
		}
	}

	if strings.Contains(contentType, "html") || body[0] == '<' {
		if msg := htmlMessage(body); msg != "" {
			return truncate(msg)
		}
	}

	return truncate(collapse(string(body)))
}

func jsonMessage(body []byte) string {
	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}

	for _, key := range []string{"message", "error_description", "error"} {
		switch v := obj[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]interface{}:
			// {"error": {"code": "...", "message": "..."}} as Graph does
			if m, ok := v["message"].(string); ok && m != "" {
				return m
			}
		}
	}
	return ""
}

func htmlMessage(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	for _, sel := range []string{"h1", "title", "body"} {
		if text := collapse(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string) string {
	if len(s) <= maxErrorLen {
		return s
	}
	cut := maxErrorLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// UserMessage is the single line shown to the user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, context.Canceled) {
		return "Request cancelled."
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The backend took too long to respond."
	}
	return err.Error()
}
