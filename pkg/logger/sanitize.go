package logger

import "strings"

// Query parameters whose presence forces the whole query string out of the
// request log.
var sensitiveQueryParams = []string{
	"password", "token", "secret", "api_key", "apikey",
	"email", "apitoken", "auth", "csrf",
}

// SanitizedEmail masks an address down to "u***@*******.com" so delivery
// logs never carry a full recipient.
func SanitizedEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return "[invalid-email]"
	}

	if len(local) > 1 {
		local = local[:1] + strings.Repeat("*", len(local)-1)
	}

	// Keep the TLD, mask every other domain label.
	labels := strings.Split(domain, ".")
	for i := 0; i < len(labels)-1; i++ {
		labels[i] = strings.Repeat("*", len(labels[i]))
	}

	return local + "@" + strings.Join(labels, ".")
}

// SanitizeQueryString reports whether a raw query string mentions any
// sensitive parameter and must be redacted wholesale.
func SanitizeQueryString(rawQuery string) bool {
	q := strings.ToLower(rawQuery)
	for _, param := range sensitiveQueryParams {
		if strings.Contains(q, param) {
			return true
		}
	}
	return false
}
