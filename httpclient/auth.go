package httpclient

import "net/http"

// AuthType identifies the authentication method.
type AuthType int

const (
	// AuthNone disables authentication.
	AuthNone AuthType = iota
	// AuthBearer sends "Authorization: Bearer <token>".
	AuthBearer
	// AuthHeader sends the key verbatim (with an optional scheme) in a named header.
	AuthHeader
)

// AuthConfig configures request authentication.
type AuthConfig struct {
	Type AuthType
	// Token is the bearer token or header value.
	Token string
	// Name is the header name for AuthHeader. Defaults to "Authorization".
	Name string
	// Scheme is prepended to Token for AuthHeader, e.g. "Token".
	Scheme string
}

// BearerAuth creates a bearer token auth config.
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Type: AuthBearer, Token: token}
}

// HeaderAuth sends token in header name, prefixed by scheme when non-empty.
func HeaderAuth(name, scheme, token string) *AuthConfig {
	return &AuthConfig{Type: AuthHeader, Name: name, Scheme: scheme, Token: token}
}

// Apply writes the credential into h. A nil config does nothing.
func (a *AuthConfig) Apply(h http.Header) {
	if a == nil || a.Token == "" {
		return
	}
	switch a.Type {
	case AuthBearer:
		h.Set("Authorization", "Bearer "+a.Token)
	case AuthHeader:
		name := a.Name
		if name == "" {
			name = "Authorization"
		}
		value := a.Token
		if a.Scheme != "" {
			value = a.Scheme + " " + a.Token
		}
		h.Set(name, value)
	}
}
