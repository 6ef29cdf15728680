package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"guestbook/internal/models"
)

// commentView is the CLI rendering of a comment; unlike the API it shows the email.
type commentView struct {
	ID           uint                `json:"id"`
	ConferenceID uint                `json:"conference_id"`
	Author       string              `json:"author"`
	Email        string              `json:"email"`
	State        models.CommentState `json:"state"`
	Optimized    bool                `json:"optimized"`
	Text         string              `json:"text"`
}

func newCommentView(c *models.Comment) commentView {
	return commentView{
		ID:           c.ID,
		ConferenceID: c.ConferenceID,
		Author:       c.Author,
		Email:        c.Email,
		State:        c.State,
		Optimized:    c.Optimized,
		Text:         c.Text,
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeComment(w io.Writer, format string, c *models.Comment) error {
	if format == "json" {
		return writeJSON(w, newCommentView(c))
	}
	_, err := fmt.Fprintf(w, "comment %d by %s <%s>: %s\n", c.ID, c.Author, c.Email, c.State)
	return err
}

func writeComments(w io.Writer, format string, comments []*models.Comment) error {
	if format == "json" {
		views := make([]commentView, 0, len(comments))
		for _, c := range comments {
			views = append(views, newCommentView(c))
		}
		return writeJSON(w, views)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tCONFERENCE\tAUTHOR\tSTATE\tTEXT")
	for _, c := range comments {
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", c.ID, c.ConferenceID, c.Author, c.State, truncate(c.Text, 40))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
