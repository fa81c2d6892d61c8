package manifest

import (
	"net"
	"net/url"
	"strings"

	"mini-app-service/common"
)

// CanonicalURL normalizes a submission url into the dedup key:
// lower-case scheme and host, default port dropped, no query, fragment or trailing slash.
func CanonicalURL(raw string, allowHTTP bool) (string, error) {
	u, err := parseWebURL(raw, allowHTTP)
	if err != nil {
		return "", err
	}
	path := strings.TrimRight(u.EscapedPath(), "/")
	return u.Scheme + "://" + u.Host + path, nil
}

// Origin returns scheme://host of a url, accepting a bare domain name.
func Origin(raw string, allowHTTP bool) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := parseWebURL(raw, allowHTTP)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host, nil
}

// Host returns the host part (without port) of a canonical url or origin.
func Host(canonical string) string {
	u, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func parseWebURL(raw string, allowHTTP bool) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, common.Malformed("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, common.Malformed("invalid url %q", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	switch u.Scheme {
	case "https":
	case "http":
		if !allowHTTP {
			return nil, common.Malformed("url must use https")
		}
	default:
		return nil, common.Malformed("unsupported url scheme %q", u.Scheme)
	}
	if u.User != nil {
		return nil, common.Malformed("url must not carry credentials")
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, common.Malformed("url host is required")
	}
	port := u.Port()
	if (u.Scheme == "https" && port == "443") || (u.Scheme == "http" && port == "80") {
		port = ""
	}
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}
	return u, nil
}
