package licensing_test

import (
	"context"
	"testing"
	"time"

	"license-engine/internal/licensing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaRejections(t *testing.T) {
	t.Run("unknown limit key", func(t *testing.T) {
		claims := baseClaims(time.Hour)
		claims.Limits["max_widgets"] = 5

		validator := newValidator(t, mustToken(t, claims), nil)
		result := validator.Validate(context.Background())

		assert.False(t, result.Valid)
		assert.Equal(t, licensing.ReasonInvalidSchema, result.Reason)
	})

	t.Run("nonpositive limit", func(t *testing.T) {
		claims := baseClaims(time.Hour)
		claims.Limits[licensing.LimitMaxTenants] = 0

		validator := newValidator(t, mustToken(t, claims), nil)
		result := validator.Validate(context.Background())

		assert.False(t, result.Valid)
		assert.Equal(t, licensing.ReasonInvalidSchema, result.Reason)
	})

	t.Run("unrecognized tier", func(t *testing.T) {
		claims := baseClaims(time.Hour)
		claims.Tier = licensing.Tier("gold")

		validator := newValidator(t, mustToken(t, claims), nil)
		result := validator.Validate(context.Background())

		assert.False(t, result.Valid)
		assert.Equal(t, licensing.ReasonInvalidSchema, result.Reason)
	})

	t.Run("empty feature set", func(t *testing.T) {
		claims := baseClaims(time.Hour)
		claims.Features = nil

		validator := newValidator(t, mustToken(t, claims), nil)
		result := validator.Validate(context.Background())

		assert.False(t, result.Valid)
		assert.Equal(t, licensing.ReasonInvalidSchema, result.Reason)
	})

	t.Run("missing issuer", func(t *testing.T) {
		claims := baseClaims(time.Hour)
		claims.Issuer = ""

		validator := newValidator(t, mustToken(t, claims), nil)
		result := validator.Validate(context.Background())

		assert.False(t, result.Valid)
		assert.Equal(t, licensing.ReasonInvalidSchema, result.Reason)
	})

	t.Run("issued after expiry", func(t *testing.T) {
		claims := baseClaims(time.Hour)
		claims.IssuedAt = claims.ExpiresAt + 10

		validator := newValidator(t, mustToken(t, claims), nil)
		result := validator.Validate(context.Background())

		assert.False(t, result.Valid)
		assert.Equal(t, licensing.ReasonInvalidSchema, result.Reason)
	})

	t.Run("unknown top-level field", func(t *testing.T) {
		payload := []byte(`{"iss":"x","sub":"y","iat":1,"exp":2,"tier":"starter","features":["a"],"limits":{},"company":"c","contact":"e","admin":true}`)
		token := signPayload(t, testPrivateKey, payload)

		validator := newValidator(t, token, nil)
		result := validator.Validate(context.Background())

		assert.False(t, result.Valid)
		assert.Equal(t, licensing.ReasonInvalidSchema, result.Reason)
	})

	t.Run("payload is not json", func(t *testing.T) {
		token := signPayload(t, testPrivateKey, []byte("not json at all"))

		validator := newValidator(t, token, nil)
		result := validator.Validate(context.Background())

		assert.False(t, result.Valid)
		assert.Equal(t, licensing.ReasonInvalidSchema, result.Reason)
	})
}

func TestTemporalChecks(t *testing.T) {
	t.Run("expired one second ago", func(t *testing.T) {
		claims := baseClaims(time.Hour)
		claims.ExpiresAt = time.Now().Add(-time.Second).Unix()

		validator := newValidator(t, mustToken(t, claims), nil)
		result := validator.Validate(context.Background())

		assert.False(t, result.Valid)
		assert.Equal(t, licensing.ReasonExpired, result.Reason)

		// Expired-but-well-formed results keep the claims for diagnostics.
		require.NotNil(t, result.Claims)
		assert.Equal(t, licensing.TierStarter, result.Claims.Tier)
		assert.Equal(t, "Acme Corp", result.Claims.Company)
	})

	t.Run("valid for a year", func(t *testing.T) {
		claims := baseClaims(365 * 24 * time.Hour)

		validator := newValidator(t, mustToken(t, claims), nil)
		result := validator.Validate(context.Background())

		assert.True(t, result.Valid)
	})

	t.Run("not yet valid", func(t *testing.T) {
		now := time.Now()
		claims := baseClaims(2 * time.Hour)
		claims.IssuedAt = now.Add(time.Hour).Unix()

		validator := newValidator(t, mustToken(t, claims), nil)
		result := validator.Validate(context.Background())

		assert.False(t, result.Valid)
		assert.Equal(t, licensing.ReasonNotYetValid, result.Reason)
		assert.NotNil(t, result.Claims)
	})
}
