package domain

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// Credentials holds the three pieces of auth material every upstream call
// needs: the Jira host and the login name/token pair used for Basic auth.
type Credentials struct {
	Host       string
	LoginName  string
	LoginToken string
}

// DefaultsProvider supplies the process-wide default credentials used when a
// tool call does not carry its own. Injected into the dispatcher at startup so
// the resolver can be tested with fixed inputs.
type DefaultsProvider interface {
	DefaultCredentials() Credentials
}

// Argument names under which tool calls may carry per-call credentials.
const (
	ArgJiraHost   = "jiraHost"
	ArgLoginName  = "loginName"
	ArgLoginToken = "loginToken"
)

// ResolveCredentials merges per-call arguments with process-wide defaults.
// Precedence per field: explicit call argument, else default, else absent.
// Absence of any of the three fields is terminal for the call.
func ResolveCredentials(args map[string]interface{}, defaults Credentials) (Credentials, error) {
	creds := Credentials{
		Host:       stringArg(args, ArgJiraHost, defaults.Host),
		LoginName:  stringArg(args, ArgLoginName, defaults.LoginName),
		LoginToken: stringArg(args, ArgLoginToken, defaults.LoginToken),
	}

	var missing []string
	if creds.Host == "" {
		missing = append(missing, ArgJiraHost)
	}
	if creds.LoginName == "" {
		missing = append(missing, ArgLoginName)
	}
	if creds.LoginToken == "" {
		missing = append(missing, ArgLoginToken)
	}
	if len(missing) > 0 {
		return Credentials{}, &Error{
			Code:    AuthenticationError,
			Message: fmt.Sprintf("missing credentials: %s (provide them as tool arguments or configure defaults)", strings.Join(missing, ", ")),
		}
	}

	creds.Host = NormalizeHost(creds.Host)
	return creds, nil
}

// stringArg returns the named argument when it is a non-empty string,
// otherwise the fallback.
func stringArg(args map[string]interface{}, name, fallback string) string {
	if v, ok := args[name].(string); ok && v != "" {
		return v
	}
	return fallback
}

// NormalizeHost turns a bare hostname into a usable base URL: a scheme is
// prepended when absent (https) and a trailing slash is stripped.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return host
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return strings.TrimRight(host, "/")
}

// NewAuthenticatedClient returns an HTTP client whose transport injects the
// Basic Authorization header (loginName:loginToken) on every request.
func NewAuthenticatedClient(creds Credentials) *http.Client {
	return &http.Client{
		Transport: &basicAuthTransport{
			base:  http.DefaultTransport,
			creds: creds,
		},
	}
}

// basicAuthTransport is an http.RoundTripper that adds the Basic auth header.
type basicAuthTransport struct {
	base  http.RoundTripper
	creds Credentials
}

// RoundTrip implements http.RoundTripper by adding the Authorization header
// to a clone of the request.
func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clonedReq := req.Clone(req.Context())

	auth := t.creds.LoginName + ":" + t.creds.LoginToken
	encodedAuth := base64.StdEncoding.EncodeToString([]byte(auth))
	clonedReq.Header.Set("Authorization", "Basic "+encodedAuth)

	return t.base.RoundTrip(clonedReq)
}
