package database_test

import (
	"context"
	"testing"

	"license-engine/internal/database"
	"license-engine/internal/licensing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnosticsSummary(t *testing.T) {
	db, err := database.NewSqliteDatabase("file::memory:")
	require.NoError(t, err)

	diagnostics := database.NewDiagnostics(db)
	ctx := context.Background()

	summary, err := diagnostics.Summarize(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Nil(t, summary.LastCheck)

	digest := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	require.NoError(t, diagnostics.RecordValidation(ctx, digest, true, licensing.ReasonNone))
	require.NoError(t, diagnostics.RecordValidation(ctx, digest, false, licensing.ReasonExpired))
	require.NoError(t, diagnostics.RecordValidation(ctx, digest, false, licensing.ReasonExpired))
	require.NoError(t, diagnostics.RecordValidation(ctx, digest, false, licensing.ReasonInvalidSignature))

	summary, err = diagnostics.Summarize(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(4), summary.Total)
	assert.Equal(t, int64(1), summary.Valid)
	assert.Equal(t, int64(3), summary.Invalid)
	assert.Equal(t, int64(2), summary.ByReason[string(licensing.ReasonExpired)])
	assert.Equal(t, int64(1), summary.ByReason[string(licensing.ReasonInvalidSignature)])
	assert.NotNil(t, summary.LastCheck)
}
