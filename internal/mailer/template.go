package mailer

import (
	"html/template"
	"strings"

	"github.com/k3a/html2text"

	"github.com/wildsight/wildsight-go/internal/errors"
)

// StatusUpdateData feeds the status-update email template.
type StatusUpdateData struct {
	Username    string
	ReportTitle string
	ReportID    uint
	OldStatus   string
	NewStatus   string
	Message     string
	AdminNotes  string
	Species     string
	Condition   string
}

var statusUpdateTmpl = template.Must(template.New("status_update").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  <h2>Report Update</h2>
  <p>Hello {{if .Username}}{{.Username}}{{else}}there{{end}},</p>
  <p>{{.Message}}</p>
  <table cellpadding="4">
    <tr><td><strong>Report</strong></td><td>{{.ReportTitle}} (#{{.ReportID}})</td></tr>
    {{if .Species}}<tr><td><strong>Species</strong></td><td>{{.Species}}</td></tr>{{end}}
    {{if .Condition}}<tr><td><strong>Condition</strong></td><td>{{.Condition}}</td></tr>{{end}}
    <tr><td><strong>Status</strong></td><td>{{.OldStatus}} &rarr; {{.NewStatus}}</td></tr>
  </table>
  {{if .AdminNotes}}<p><strong>Reviewer notes:</strong> {{.AdminNotes}}</p>{{end}}
  <p style="color: #777; font-size: 12px;">This is an automated message from WildSight.</p>
</body>
</html>`))

// RenderStatusUpdate renders the subject and HTML body for a status-update
// email.
func RenderStatusUpdate(data StatusUpdateData) (subject, htmlBody string, err error) {
	var b strings.Builder
	if err := statusUpdateTmpl.Execute(&b, data); err != nil {
		return "", "", errors.New(err).
			Component("mailer").
			Category(errors.CategoryEmail).
			Context("operation", "render_template").
			Build()
	}
	subject = "Report update: " + data.ReportTitle
	return subject, b.String(), nil
}

// PlainText converts a rendered HTML body to a text alternative.
func PlainText(htmlBody string) string {
	return html2text.HTML2Text(htmlBody)
}
