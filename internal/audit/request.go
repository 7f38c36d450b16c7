package audit

import "strings"

// RequestContext is the transport detail attached to audit entries.
type RequestContext struct {
	ForwardedFor string
	RemoteAddr   string
	UserAgent    string
}

// ExtractIP prefers the first X-Forwarded-For hop and falls back to the peer address.
func ExtractIP(rc RequestContext) *string {
	if rc.ForwardedFor != "" {
		first := strings.TrimSpace(strings.Split(rc.ForwardedFor, ",")[0])
		if first != "" {
			return &first
		}
	}
	if rc.RemoteAddr != "" {
		addr := rc.RemoteAddr
		return &addr
	}
	return nil
}

// UserAgentOf returns the user agent verbatim, or nil when absent.
func UserAgentOf(rc RequestContext) *string {
	if rc.UserAgent == "" {
		return nil
	}
	ua := rc.UserAgent
	return &ua
}
