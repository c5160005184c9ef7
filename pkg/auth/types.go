package auth

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates the two principal variants
type Kind string

const (
	KindOIDC Kind = "oidc"
	KindDev  Kind = "dev"
)

// Claims are the identity assertions attached to a session. For OIDC
// principals they come from the verified ID token; for dev principals the
// gate synthesizes a view with only Subject set.
type Claims struct {
	Subject         string `json:"subject"`
	Email           string `json:"email,omitempty"`
	FirstName       string `json:"firstName,omitempty"`
	LastName        string `json:"lastName,omitempty"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
	// ExpiresAt is the access token expiry in epoch seconds. Zero means the
	// provider returned no expiry, which the gate treats as unauthenticated.
	ExpiresAt int64 `json:"expiresAtEpochSeconds,omitempty"`
}

// Expired reports whether the access token expiry has passed
func (c Claims) Expired(now time.Time) bool {
	return now.Unix() > c.ExpiresAt
}

// Principal is the in-session representation of who is logged in. Exactly
// one of the two variants is present per session, never both.
type Principal interface {
	Kind() Kind
	// Subject is the stable identifier for the authenticated party
	Subject() string
}

// OIDCPrincipal is a principal established through the identity provider
type OIDCPrincipal struct {
	Claims       Claims `json:"claims"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

func (p *OIDCPrincipal) Kind() Kind      { return KindOIDC }
func (p *OIDCPrincipal) Subject() string { return p.Claims.Subject }

// DevPrincipal is a principal established through the local fallback path
type DevPrincipal struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

func (p *DevPrincipal) Kind() Kind      { return KindDev }
func (p *DevPrincipal) Subject() string { return p.ID }

// principalEnvelope tags the variant for wire encoding
type principalEnvelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalPrincipal encodes a principal with its variant tag so session
// backends can round-trip it.
func MarshalPrincipal(p Principal) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal principal: %w", err)
	}
	return json.Marshal(principalEnvelope{Kind: p.Kind(), Data: data})
}

// UnmarshalPrincipal decodes a tagged principal back into its variant
func UnmarshalPrincipal(data []byte) (Principal, error) {
	var env principalEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal principal envelope: %w", err)
	}

	switch env.Kind {
	case KindOIDC:
		p := &OIDCPrincipal{}
		if err := json.Unmarshal(env.Data, p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal oidc principal: %w", err)
		}
		return p, nil
	case KindDev:
		p := &DevPrincipal{}
		if err := json.Unmarshal(env.Data, p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dev principal: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown principal kind %q", env.Kind)
	}
}
