package licensing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Tier is the closed set of commercial tiers a license can carry.
type Tier string

const (
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

func (t Tier) valid() bool {
	switch t {
	case TierStarter, TierProfessional, TierEnterprise:
		return true
	}
	return false
}

// Limit keys recognized by the claims schema. Tokens carrying any other key
// are rejected at schema validation rather than passed through.
const (
	LimitMaxTenants         = "max_tenants"
	LimitMaxConcurrentTasks = "max_concurrent_tasks"
	LimitMaxTokensPerMonth  = "max_tokens_per_month"
)

var recognizedLimits = map[string]bool{
	LimitMaxTenants:         true,
	LimitMaxConcurrentTasks: true,
	LimitMaxTokensPerMonth:  true,
}

// Claims is the decoded, schema-validated payload of a license token. Once
// validated it is treated as an immutable value for the rest of validation.
type Claims struct {
	Issuer    string           `json:"iss"`
	Subject   string           `json:"sub"`
	IssuedAt  int64            `json:"iat"`
	ExpiresAt int64            `json:"exp"`
	Tier      Tier             `json:"tier"`
	Features  []string         `json:"features"`
	Limits    map[string]int64 `json:"limits"`
	MachineID string           `json:"machine_id,omitempty"`
	Company   string           `json:"company"`
	Contact   string           `json:"contact"`
}

// parseClaims decodes a raw claims payload against the closed schema. Unknown
// fields are rejected so legacy duck-typed payloads fail loudly at decode time.
func parseClaims(raw []byte) (*Claims, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()

	var claims Claims
	if err := decoder.Decode(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	if err := claims.validate(); err != nil {
		return nil, err
	}

	return &claims, nil
}

func (c *Claims) validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("%w: missing issuer", ErrInvalidSchema)
	}
	if c.Subject == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalidSchema)
	}
	if c.IssuedAt <= 0 || c.ExpiresAt <= 0 {
		return fmt.Errorf("%w: missing issued-at or expires-at", ErrInvalidSchema)
	}
	if c.IssuedAt >= c.ExpiresAt {
		return fmt.Errorf("%w: issued-at must precede expires-at", ErrInvalidSchema)
	}
	if !c.Tier.valid() {
		return fmt.Errorf("%w: unrecognized tier %q", ErrInvalidSchema, c.Tier)
	}
	if len(c.Features) == 0 {
		return fmt.Errorf("%w: feature set is empty", ErrInvalidSchema)
	}
	for _, feature := range c.Features {
		if feature == "" {
			return fmt.Errorf("%w: empty feature identifier", ErrInvalidSchema)
		}
	}
	for key, value := range c.Limits {
		if !recognizedLimits[key] {
			return fmt.Errorf("%w: unrecognized limit key %q", ErrInvalidSchema, key)
		}
		if value <= 0 {
			return fmt.Errorf("%w: limit %q must be positive, got %d", ErrInvalidSchema, key, value)
		}
	}
	return nil
}

// checkTime rejects tokens dated in the future as well as expired ones. The
// two failures are reported distinctly.
func (c *Claims) checkTime(now time.Time) error {
	if now.Before(c.IssuedAtTime()) {
		return fmt.Errorf("%w: issued at %s", ErrNotYetValid, c.IssuedAtTime().UTC().Format(time.RFC3339))
	}
	if now.After(c.ExpiresAtTime()) {
		return fmt.Errorf("%w: expired at %s", ErrExpiredLicense, c.ExpiresAtTime().UTC().Format(time.RFC3339))
	}
	return nil
}

func (c *Claims) IssuedAtTime() time.Time {
	return time.Unix(c.IssuedAt, 0)
}

func (c *Claims) ExpiresAtTime() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

// HasMachineBinding reports whether the license is pinned to one machine
// fingerprint. Absence of a binding is valid and skips the machine check.
func (c *Claims) HasMachineBinding() bool {
	return c.MachineID != ""
}
