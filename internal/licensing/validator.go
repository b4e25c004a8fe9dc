package licensing

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	DefaultOfflineCacheDays       = 7
	DefaultValidationCacheMinutes = 5
	DefaultPhoneHomeTimeout       = 5 * time.Second
)

// Config carries the construction-time options of the validator. LicenseKey
// and PublicKeyPEM are required; everything else has a usable default.
// Leaving ServerURL empty puts the validator in offline-only mode.
type Config struct {
	LicenseKey           string
	PublicKeyPEM         []byte
	ServerURL            string
	EnableMachineBinding bool
	CacheDir             string

	OfflineCacheDays       int
	ValidationCacheMinutes int
	PhoneHomeTimeout       time.Duration
}

func (c *Config) applyDefaults() error {
	if c.LicenseKey == "" {
		return fmt.Errorf("license key is required")
	}
	if len(c.PublicKeyPEM) == 0 {
		return fmt.Errorf("public key is required")
	}
	if c.OfflineCacheDays <= 0 {
		c.OfflineCacheDays = DefaultOfflineCacheDays
	}
	if c.ValidationCacheMinutes <= 0 {
		c.ValidationCacheMinutes = DefaultValidationCacheMinutes
	}
	if c.PhoneHomeTimeout <= 0 {
		c.PhoneHomeTimeout = DefaultPhoneHomeTimeout
	}
	if c.CacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return fmt.Errorf("no cache directory configured and no user cache dir available: %w", err)
		}
		c.CacheDir = filepath.Join(base, "license-engine")
	}
	return nil
}

type memoryEntry struct {
	result    Result
	expiresAt time.Time
}

// Validator owns the full validation pipeline: in-memory cache lookup, token
// decode, signature verification, schema and temporal checks, optional machine
// binding, optional remote reconciliation with offline fallback, and
// persistence of the outcome to both cache layers.
//
// Validate is safe for concurrent use. Concurrent misses for the same token
// may each run the pipeline and race to write the same entry; results are
// deterministic per token, so last-write-wins is harmless.
type Validator struct {
	cfg       Config
	publicKey *rsa.PublicKey
	store     *FileStore
	remote    *remoteClient

	mu       sync.RWMutex
	memCache map[string]memoryEntry
	memTTL   time.Duration

	diagnostics DiagnosticsRecorder

	// Seams for tests.
	now         func() time.Time
	fingerprint func() (string, error)
}

func NewValidator(cfg Config) (*Validator, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, fmt.Errorf("invalid license validator config: %w", err)
	}

	publicKey, err := parseRsaPublicKey(cfg.PublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("error parsing license public key: %w", err)
	}

	store, err := NewFileStore(cfg.CacheDir, time.Duration(cfg.OfflineCacheDays)*24*time.Hour)
	if err != nil {
		return nil, err
	}

	v := &Validator{
		cfg:         cfg,
		publicKey:   publicKey,
		store:       store,
		memCache:    make(map[string]memoryEntry),
		memTTL:      time.Duration(cfg.ValidationCacheMinutes) * time.Minute,
		now:         time.Now,
		fingerprint: MachineFingerprint,
	}

	if cfg.ServerURL != "" {
		v.remote = newRemoteClient(cfg.ServerURL, cfg.PhoneHomeTimeout)
	} else {
		slog.Info("no license server configured, running in offline-only mode")
	}

	return v, nil
}

// AttachDiagnostics wires an optional recorder of validation outcomes.
func (v *Validator) AttachDiagnostics(rec DiagnosticsRecorder) {
	v.diagnostics = rec
}

// Validate checks the configured license key. It never panics on malformed
// input and never returns an error for expected conditions; every outcome is
// a tagged Result.
func (v *Validator) Validate(ctx context.Context) Result {
	return v.ValidateToken(ctx, v.cfg.LicenseKey)
}

// ValidateToken runs the validation pipeline for an arbitrary token, serving
// fresh in-memory outcomes without re-running any checks.
func (v *Validator) ValidateToken(ctx context.Context, token string) Result {
	if result, ok := v.memLookup(token); ok {
		return result
	}

	outcome := v.runPipeline(ctx, token)

	v.persist(token, outcome)
	result := outcome.result
	v.record(ctx, token, result)

	return result
}

// Revalidate drops the in-memory entry for the configured key and runs the
// full pipeline again.
func (v *Validator) Revalidate(ctx context.Context) Result {
	v.mu.Lock()
	delete(v.memCache, v.cfg.LicenseKey)
	v.mu.Unlock()

	return v.Validate(ctx)
}

// FeatureView validates the configured license and, on success, returns the
// read-only feature/limit projection over its claims.
func (v *Validator) FeatureView(ctx context.Context) (*FeatureView, error) {
	result := v.Validate(ctx)
	if !result.Valid {
		reason := result.Reason.Err()
		if reason == nil {
			reason = ErrPhoneHomeFailed
		}
		return nil, fmt.Errorf("license is not valid: %w", reason)
	}

	return NewFeatureView(result.Claims), nil
}

// ClearCaches drops both cache layers. Subsequent validations run the full
// pipeline again.
func (v *Validator) ClearCaches() error {
	v.mu.Lock()
	v.memCache = make(map[string]memoryEntry)
	v.mu.Unlock()

	return v.store.ClearAll()
}

func (v *Validator) memLookup(token string) (Result, bool) {
	v.mu.RLock()
	entry, ok := v.memCache[token]
	v.mu.RUnlock()

	if !ok {
		return Result{}, false
	}

	if v.now().After(entry.expiresAt) {
		v.mu.Lock()
		// Re-check under the write lock; a concurrent miss may have already
		// refreshed the entry.
		if current, ok := v.memCache[token]; ok && v.now().After(current.expiresAt) {
			delete(v.memCache, token)
		}
		v.mu.Unlock()
		return Result{}, false
	}

	return entry.result, true
}

// pipelineOutcome is the result of one full pipeline run plus persistence
// hints: fromOfflineCache suppresses re-writing the durable entry (which
// would silently extend the offline window), cachedUntil is the server's
// optional freshness hint.
type pipelineOutcome struct {
	result           Result
	cachedUntil      int64
	fromOfflineCache bool
}

// runPipeline performs the one-directional validation state machine. Every
// local failure is terminal; only the remote reconciliation step has a
// fallback path.
func (v *Validator) runPipeline(ctx context.Context, token string) pipelineOutcome {
	now := v.now()

	decoded, err := decodeToken(token)
	if err != nil {
		return pipelineOutcome{result: invalidResult(ReasonMalformedToken, err.Error(), nil, now)}
	}

	if err := verifySignature(v.publicKey, decoded.signingInput, decoded.signature); err != nil {
		return pipelineOutcome{result: invalidResult(ReasonInvalidSignature, err.Error(), nil, now)}
	}

	claims, err := parseClaims(decoded.rawClaims)
	if err != nil {
		return pipelineOutcome{result: invalidResult(ReasonInvalidSchema, err.Error(), nil, now)}
	}

	if err := claims.checkTime(now); err != nil {
		reason := ReasonExpired
		if now.Before(claims.IssuedAtTime()) {
			reason = ReasonNotYetValid
		}
		return pipelineOutcome{result: invalidResult(reason, err.Error(), claims, now)}
	}

	fingerprint := ""
	if v.cfg.EnableMachineBinding && claims.HasMachineBinding() {
		fingerprint, err = v.fingerprint()
		if err != nil {
			// Binding is a deterrent, not a security boundary; a machine
			// without any derivable identity does not lose its license.
			slog.Warn("unable to derive machine fingerprint, skipping binding check", "error", err)
		} else if fingerprint != claims.MachineID {
			return pipelineOutcome{result: invalidResult(ReasonMachineMismatch, "machine fingerprint does not match license binding", claims, now)}
		}
	}

	if v.remote == nil {
		return pipelineOutcome{result: validResult(claims, now)}
	}

	outcome, err := v.remote.check(ctx, token, fingerprint)
	if err != nil {
		slog.Warn("license server unreachable, falling back to offline cache", "error", err)

		if cached, ok := v.store.Get(token); ok {
			cached.CheckedAt = now
			return pipelineOutcome{result: *cached, fromOfflineCache: true}
		}

		// No offline entry either: local cryptographic and temporal checks
		// passed, which is sufficient to grant offline trust.
		slog.Info("no offline cache entry, trusting locally verified license")
		return pipelineOutcome{result: validResult(claims, now)}
	}

	if !outcome.Valid {
		return pipelineOutcome{
			result:      invalidResult(ReasonRemoteRejected, outcome.Reason, claims, now),
			cachedUntil: outcome.CachedUntil,
		}
	}

	return pipelineOutcome{result: validResult(claims, now), cachedUntil: outcome.CachedUntil}
}

// persist writes the outcome to the in-memory cache and, for fresh successes
// and definitive remote rejections, to the durable store so restarts within
// the offline window stay fast and consistent.
func (v *Validator) persist(token string, outcome pipelineOutcome) {
	expiresAt := v.now().Add(v.memTTL)
	if outcome.cachedUntil > 0 {
		if until := time.Unix(outcome.cachedUntil, 0); until.After(expiresAt) {
			expiresAt = until
		}
	}

	v.mu.Lock()
	v.memCache[token] = memoryEntry{result: outcome.result, expiresAt: expiresAt}
	v.mu.Unlock()

	if outcome.fromOfflineCache {
		return
	}

	if outcome.result.Valid || outcome.result.Reason == ReasonRemoteRejected {
		if err := v.store.Put(token, outcome.result); err != nil {
			slog.Warn("error persisting license validation outcome", "error", err)
		}
	}
}

func (v *Validator) record(ctx context.Context, token string, result Result) {
	if v.diagnostics == nil {
		return
	}

	if err := v.diagnostics.RecordValidation(ctx, tokenDigest(token), result.Valid, result.Reason); err != nil {
		slog.Warn("error recording license validation diagnostics", "error", err)
	}
}
