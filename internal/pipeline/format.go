package pipeline

import (
	"fmt"
	"html"
	"strings"

	"briefing_agent/internal/model"
)

// FormatBriefing assembles the HTML email body from accumulated summaries.
// Output is deterministic; all user-influenced text is escaped.
func FormatBriefing(prefs model.UserPreferences, summaries []model.Summary) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString("<h2>Your Daily Briefing</h2>")

	if len(prefs.Topics) > 0 {
		fmt.Fprintf(&b, "<p>Today's highlights on %s:</p>", html.EscapeString(strings.Join(prefs.Topics, ", ")))
	}

	b.WriteString("<ul>")
	for _, s := range summaries {
		b.WriteString("<li>")
		fmt.Fprintf(&b, "<strong>%s</strong><br>", html.EscapeString(s.Title))
		fmt.Fprintf(&b, "%s<br>", html.EscapeString(s.Text))
		fmt.Fprintf(&b, `<a href="%s">Read more</a>`, html.EscapeString(s.URL))
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")

	b.WriteString("<p>See you tomorrow.</p>")
	b.WriteString("</body></html>")
	return b.String()
}
