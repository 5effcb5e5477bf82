package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// IsolatedRoleURL rewrites baseURL to log in as the per-run database role
// "<runnerID>-<runNumber>", keeping the original password. It returns the
// new URL and the role name.
func IsolatedRoleURL(baseURL, runnerID, runNumber string) (string, string, error) {
	if runnerID == "" || runNumber == "" {
		return "", "", fmt.Errorf("runnerID and runNumber must be non-empty")
	}
	role := strings.ToLower(runnerID + "-" + runNumber)

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid DB URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", "", fmt.Errorf("invalid DB URL: unsupported scheme %q", u.Scheme)
	}

	var password string
	if u.User != nil {
		password, _ = u.User.Password()
	}
	u.User = url.UserPassword(role, password)
	return u.String(), role, nil
}
