// Package messaging renders message templates and delivers them over SMS and
// email.
package messaging

import (
	"strings"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
)

// Render substitutes {key} placeholders in a single left-to-right pass. Keys
// present in vars are replaced by their value (possibly empty); any other
// {token} is copied through untouched. Substituted values are never rescanned.
func Render(body string, vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(body))

	for {
		open := strings.IndexByte(body, '{')
		if open < 0 {
			b.WriteString(body)
			return b.String()
		}
		b.WriteString(body[:open])
		rest := body[open+1:]

		end := strings.IndexAny(rest, "{}")
		if end < 0 || rest[end] == '{' {
			// unterminated, or a nested brace: keep this one literally
			b.WriteByte('{')
			body = rest
			continue
		}

		key := rest[:end]
		if v, ok := vars[key]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(body[open : open+end+2])
		}
		body = rest[end+1:]
	}
}

// RenderBody renders the template body.
func RenderBody(tpl *model.MessageTemplate, vars map[string]string) string {
	return Render(tpl.Body, vars)
}

// RenderSubject renders the subject of an email template. SMS templates and
// templates without subject yield an empty string.
func RenderSubject(tpl *model.MessageTemplate, vars map[string]string) string {
	if tpl.Channel != model.ChannelEmail || tpl.Subject == "" {
		return ""
	}
	return Render(tpl.Subject, vars)
}
