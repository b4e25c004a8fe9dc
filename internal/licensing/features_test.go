package licensing_test

import (
	"testing"
	"time"

	"license-engine/internal/licensing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureQueries(t *testing.T) {
	claims := baseClaims(time.Hour)
	view := licensing.NewFeatureView(&claims)

	assert.True(t, view.HasFeature("drift-rag-advanced"))
	assert.False(t, view.HasFeature("inference-engine"))

	assert.NoError(t, view.RequireFeature("drift-rag-advanced"))

	err := view.RequireFeature("inference-engine")
	require.Error(t, err)
	assert.ErrorIs(t, err, licensing.ErrFeatureNotLicensed)
	assert.Contains(t, err.Error(), "inference-engine")
	assert.Contains(t, err.Error(), "starter")
}

func TestLimitQueries(t *testing.T) {
	claims := baseClaims(time.Hour)
	view := licensing.NewFeatureView(&claims)

	limit, err := view.GetLimit(licensing.LimitMaxTenants)
	require.NoError(t, err)
	assert.Equal(t, int64(10), limit)

	_, err = view.GetLimit("unknown_key")
	assert.ErrorIs(t, err, licensing.ErrUnknownLimit)
	assert.Contains(t, err.Error(), "unknown_key")
}

func TestExpirationQueries(t *testing.T) {
	claims := baseClaims(15 * 24 * time.Hour)
	view := licensing.NewFeatureView(&claims)

	days := view.DaysUntilExpiration()
	assert.InDelta(t, 15, days, 1)

	assert.True(t, view.IsExpiringSoon(30))
	assert.False(t, view.IsExpiringSoon(10))
}

func TestViewIsDetachedFromClaims(t *testing.T) {
	claims := baseClaims(time.Hour)
	view := licensing.NewFeatureView(&claims)

	claims.Features[0] = "mutated"
	assert.True(t, view.HasFeature("drift-rag-advanced"), "view must hold its own copy of the claims value")

	features := view.Features()
	features[0] = "mutated-again"
	assert.True(t, view.HasFeature("drift-rag-advanced"))
}
