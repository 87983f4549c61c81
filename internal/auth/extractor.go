package auth

import "strings"

// bearerScheme is the only accepted authorization scheme. Matching is
// case-sensitive.
const bearerScheme = "Bearer"

// ExtractBearerToken parses an Authorization header value and returns the
// bearer token. The header must consist of exactly two space-delimited
// parts, the first being "Bearer"; anything else is malformed. An absent
// header is reported separately so callers can distinguish "no credentials"
// from "broken credentials".
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != bearerScheme || parts[1] == "" {
		return "", ErrMalformedHeader
	}

	return parts[1], nil
}
