package oauthmodel

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateRedirectURI checks that uri is an absolute http(s) URL without a fragment.
func ValidateRedirectURI(uri string) error {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return fmt.Errorf("redirect_uri is required: %w", ErrInvalidRedirectUri)
	}

	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("redirect_uri does not parse: %w", ErrInvalidRedirectUri)
	}

	// Must be http:// or https://
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("redirect_uri must use http or https scheme: %w", ErrInvalidRedirectUri)
	}
	if u.Host == "" {
		return fmt.Errorf("redirect_uri must be absolute: %w", ErrInvalidRedirectUri)
	}

	// Should not contain fragments
	if u.Fragment != "" || strings.Contains(uri, "#") {
		return fmt.Errorf("redirect_uri must not contain fragments: %w", ErrInvalidRedirectUri)
	}
	return nil
}

// AppendQuery adds the given parameters to uri, keeping any query it already has.
func AppendQuery(uri string, params url.Values) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parsing redirect uri: %w", ErrInvalidRedirectUri)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			if v != "" {
				q.Add(k, v)
			}
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
