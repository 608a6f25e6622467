package messaging

import "strings"

// NormalizePhone converts a user-entered phone number to E.164: formatting
// characters are stripped, a leading national 0 becomes +41, and a leading +
// is ensured.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return ""
	}

	if strings.HasPrefix(cleaned, "0") {
		cleaned = "+41" + cleaned[1:]
	}
	if !strings.HasPrefix(cleaned, "+") {
		cleaned = "+" + cleaned
	}
	return cleaned
}
