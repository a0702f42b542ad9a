package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/loickal/email-insight/internal/fetch"
)

const plainWidth = 80

// RenderPlain writes a fetch result without the interactive program: every
// card expanded, or the analysis text as is.
func RenderPlain(w io.Writer, st fetch.State) error {
	var out string
	switch {
	case st.Request.Error != "":
		return errors.New(st.Request.Error)
	case st.Result.Empty():
		out = "No emails found."
	case len(st.Result.Emails) > 0:
		cards := make([]string, len(st.Result.Emails))
		for i, e := range st.Result.Emails {
			cards[i] = renderCard(e, true, false, plainWidth)
		}
		out = strings.Join(cards, "\n")
	default:
		out = cleanText(st.Result.Text)
	}

	_, err := fmt.Fprintln(w, out)
	return err
}
