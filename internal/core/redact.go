package core

import (
	"net/url"
	"strings"
)

const (
	redactedPath   = "/[path-redacted]"
	redactedParams = "?[params-redacted]"
	redactedURL    = "[redacted]"
)

// RedactURL keeps the scheme, host and any non-default port of raw and
// replaces the path and query with fixed markers.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return redactedURL
	}

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	if host := u.Hostname(); strings.Contains(host, ":") {
		b.WriteString("[" + host + "]")
	} else {
		b.WriteString(host)
	}
	if port := u.Port(); port != "" && !isDefaultPort(u.Scheme, port) {
		b.WriteByte(':')
		b.WriteString(port)
	}
	if p := u.EscapedPath(); p != "" && p != "/" {
		b.WriteString(redactedPath)
	}
	if u.RawQuery != "" || u.ForceQuery {
		b.WriteString(redactedParams)
	}
	return b.String()
}

func isDefaultPort(scheme, port string) bool {
	switch strings.ToLower(scheme) {
	case "http":
		return port == "80"
	case "https":
		return port == "443"
	}
	return false
}
