package cable

import (
	"fmt"
	"net/url"
	"strings"
)

// CablePath is the fixed path of the dashboard's cable endpoint.
const CablePath = "/cable"

// SocketURL derives the websocket endpoint from the configured dashboard base
// URL. The scheme is rewritten (http to ws, https to wss), trailing slashes
// are stripped before the cable path is appended, and the token rides as a
// URL-encoded query parameter.
func SocketURL(baseURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + CablePath
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
