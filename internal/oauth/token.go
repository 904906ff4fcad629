package oauth

import (
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/cexll/evergit/internal/failure"
)

// Token is an OAuth token/secret pair. The same shape is used for the
// short-lived request token and the long-lived access token.
type Token struct {
	Key     string
	Secret  string
	Context string
}

// TokenFromParams reads oauth_token, oauth_token_secret and lp.context.
// Both token fields are mandatory.
func TokenFromParams(params map[string]string) (*Token, error) {
	key, secret := params["oauth_token"], params["oauth_token_secret"]
	if key == "" || secret == "" {
		return nil, failure.New(failure.ProtocolViolation, "oauth",
			"token response is missing oauth_token or oauth_token_secret")
	}
	return &Token{Key: key, Secret: secret, Context: params["lp.context"]}, nil
}

// TokenFromString parses a url-encoded token response body.
func TokenFromString(query string) (*Token, error) {
	values, err := url.ParseQuery(strings.TrimSpace(query))
	if err != nil {
		return nil, failure.Wrap(failure.ProtocolViolation, "oauth", err, "token response is not url-encoded")
	}
	params := make(map[string]string, len(values))
	for k := range values {
		params[k] = values.Get(k)
	}
	return TokenFromParams(params)
}

// Encode renders the token the way a token endpoint returns it.
func (t *Token) Encode() string {
	v := url.Values{}
	v.Set("oauth_token", t.Key)
	v.Set("oauth_token_secret", t.Secret)
	if t.Context != "" {
		v.Set("lp.context", t.Context)
	}
	return v.Encode()
}

// Signature returns the PLAINTEXT signature for an empty consumer secret:
// "&" followed by the percent-encoded token secret.
func Signature(tokenSecret string) string {
	return "&" + PercentEncode(tokenSecret)
}

// PercentEncode applies RFC 3986 encoding: everything except unreserved
// characters is escaped, and spaces become %20.
func PercentEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// Nonce returns a fresh 32 character alphanumeric string.
func Nonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
