package middleware

import (
	"net/url"
	"regexp"
	"strings"
)

// Access logs carry the raw query string. Values that look like personal
// data or credentials are replaced before they reach the log.
var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so UUID hex segments never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// secretParams are query keys whose values are always masked.
var secretParams = map[string]struct{}{
	"token":         {},
	"access_token":  {},
	"api_key":       {},
	"apikey":        {},
	"password":      {},
	"secret":        {},
	"authorization": {},
}

const redacted = "[REDACTED]"

// scrubQuery masks secret parameters and redacts ids, emails and phone
// numbers in the remaining values. Unparseable queries are redacted as a
// whole string.
func scrubQuery(raw string) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return scrubValue(raw)
	}
	for k, vs := range vals {
		if _, ok := secretParams[strings.ToLower(k)]; ok {
			vals[k] = []string{redacted}
			continue
		}
		for i := range vs {
			vs[i] = scrubValue(vs[i])
		}
	}
	// Encode escapes brackets; keep the log readable.
	out := vals.Encode()
	if u, err := url.QueryUnescape(out); err == nil {
		return u
	}
	return out
}

// scrubValue applies the pattern redactions. UUIDs go first so the phone
// pattern cannot eat their digit runs.
func scrubValue(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}
