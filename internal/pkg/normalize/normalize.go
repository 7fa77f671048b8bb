package normalize

import "strings"

// canonicalDomains maps provider alias domains to the domain they deliver to.
var canonicalDomains = map[string]string{
	"googlemail.com": "gmail.com",
}

// Email trims and case-folds an address and canonicalizes known alias domains.
// It returns "" when s is not shaped like local@domain.
func Email(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 || strings.Count(s, "@") != 1 {
		return ""
	}
	local, domain := s[:at], s[at+1:]
	if strings.ContainsAny(s, " \t\r\n") || !strings.Contains(domain, ".") {
		return ""
	}
	if c, ok := canonicalDomains[domain]; ok {
		domain = c
	}
	return local + "@" + domain
}

// Login trims surrounding whitespace. Case is preserved for display.
func Login(s string) string {
	return strings.TrimSpace(s)
}

// LoginKey is the case-insensitive lookup key of a login.
func LoginKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
