package utils

import (
	"strings"
)

func ExtractDomainFromEmail(email string) string {
	if email == "" {
		return ""
	}

	email = strings.TrimSpace(email)

	// "Name <email@domain.com>"
	if strings.Contains(email, "<") && strings.Contains(email, ">") {
		startIdx := strings.LastIndex(email, "<") + 1
		endIdx := strings.LastIndex(email, ">")
		if startIdx > 0 && endIdx > startIdx {
			email = email[startIdx:endIdx]
		}
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(parts[1]))
}

// ExtractLocalPartFromEmail returns everything before the last "@".
func ExtractLocalPartFromEmail(email string) string {
	idx := strings.LastIndex(email, "@")
	if idx < 0 {
		return email
	}
	return email[:idx]
}

func LooksLikeEmail(s string) bool {
	return strings.Contains(s, "@")
}
