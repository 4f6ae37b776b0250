package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

type Kind string

const (
	KindPromote     Kind = "promote"
	KindDemote      Kind = "demote"
	KindDelete      Kind = "delete"
	KindResetCounts Kind = "reset_counts"
)

type content struct {
	subject    string
	title      string
	paragraphs []string
	button     string
	path       string
}

// paragraphs are trusted markup.
var contents = map[Kind]content{
	KindPromote: {
		subject: "You have been promoted to Admin",
		title:   "Welcome to the Admin Team",
		paragraphs: []string{
			"Congratulations! You have been promoted to an <strong>Administrator</strong> role in the AI Chatbot system.",
			"You now have full access to the Admin Panel to manage users and view statistics.",
		},
		button: "Go to Admin Panel",
		path:   "/admin",
	},
	KindDemote: {
		subject: "Admin privileges revoked",
		title:   "Role Update",
		paragraphs: []string{
			"Your Administrator privileges in the AI Chatbot system have been revoked.",
			"You are now a regular user and can continue using the chat features.",
		},
		button: "Go to Chat",
		path:   "/",
	},
	KindDelete: {
		subject: "Account Deleted",
		title:   "Account Deleted",
		paragraphs: []string{
			"Your account in the AI Chatbot system has been deleted by an administrator.",
			"If you believe this is an error, please contact our support team.",
		},
	},
	KindResetCounts: {
		subject: "Usage Counts Reset",
		title:   "Usage Limits Reset",
		paragraphs: []string{
			"Good news! Your request and response counts in the AI Chatbot system have been reset by an administrator.",
			"You can now continue using the service without restrictions.",
		},
		button: "Start Chatting",
		path:   "/",
	},
}

var layout = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <meta name="color-scheme" content="light">
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #374151; background-color: #f3f4f6; margin: 0; }
    .wrapper { width: 100%; background-color: #f3f4f6; padding: 40px 0; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 8px; overflow: hidden; }
    .content { padding: 40px; }
    h1 { font-size: 24px; font-weight: 700; color: #111827; margin: 0 0 24px; }
    .body-text { font-size: 16px; color: #4b5563; }
    .button { display: inline-block; background-color: #2563eb; color: #ffffff; padding: 12px 24px; text-decoration: none; border-radius: 6px; font-weight: 600; }
    .footer { background-color: #f9fafb; padding: 24px; text-align: center; border-top: 1px solid #e5e7eb; font-size: 14px; color: #9ca3af; }
  </style>
</head>
<body>
  <div class="wrapper">
    <div class="container">
      <div class="content">
        <h1>{{.Title}}</h1>
        <div class="body-text">
          <p>Hello <strong>{{.Name}}</strong>,</p>
          {{- range .Paragraphs}}
          <p>{{.}}</p>
          {{- end}}
        </div>
        {{- if .ButtonURL}}
        <p style="margin: 32px 0;"><a href="{{.ButtonURL}}" class="button" target="_blank">{{.ButtonText}}</a></p>
        {{- end}}
        <p class="body-text" style="font-size: 14px; color: #6b7280;">Best regards,<br>The AI Chatbot Team</p>
      </div>
      <div class="footer">&copy; {{.Year}} AI Chatbot. All rights reserved.</div>
    </div>
  </div>
</body>
</html>
`))

type layoutData struct {
	Title      string
	Name       string
	Paragraphs []template.HTML
	ButtonText string
	ButtonURL  string
	Year       int
}

// Render builds the subject and HTML body of a notification email. The
// recipient name is escaped; baseURL prefixes the call-to-action link.
func Render(kind Kind, name, baseURL string) (string, string, error) {
	c, ok := contents[kind]
	if !ok {
		return "", "", fmt.Errorf("email: unknown template %q", kind)
	}
	if strings.TrimSpace(name) == "" {
		name = "User"
	}

	data := layoutData{Title: c.title, Name: name, ButtonText: c.button, Year: time.Now().Year()}
	for _, p := range c.paragraphs {
		// static copy, never user input
		data.Paragraphs = append(data.Paragraphs, template.HTML(p))
	}
	if c.button != "" {
		data.ButtonURL = strings.TrimRight(baseURL, "/") + c.path
	}

	var buf bytes.Buffer
	if err := layout.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return c.subject, buf.String(), nil
}
