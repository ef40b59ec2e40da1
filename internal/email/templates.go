package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var coldEmailTemplate = template.Must(template.New("coldemail.html").ParseFS(templateFS, "templates/coldemail.html"))

type coldEmailData struct {
	Subject    string
	Paragraphs []string
	FromName   string
}

// renderHTML wraps a plain-text body in the cold email layout. Blank lines
// separate paragraphs.
func renderHTML(subject, body, fromName string) (string, error) {
	var buf bytes.Buffer
	err := coldEmailTemplate.ExecuteTemplate(&buf, "email", coldEmailData{
		Subject:    subject,
		Paragraphs: paragraphs(body),
		FromName:   fromName,
	})
	if err != nil {
		return "", fmt.Errorf("execute cold email template: %w", err)
	}
	return buf.String(), nil
}

func paragraphs(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(body, "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			out = append(out, block)
		}
	}
	return out
}
