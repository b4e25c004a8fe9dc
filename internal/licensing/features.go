package licensing

import (
	"fmt"
	"time"
)

// FeatureView is a read-only projection over one validated Claims value. It
// performs no I/O and cannot trigger another validation, so handing it to the
// rest of the application is always safe.
type FeatureView struct {
	claims Claims
}

func NewFeatureView(claims *Claims) *FeatureView {
	if claims == nil {
		claims = &Claims{}
	}

	snapshot := *claims
	snapshot.Features = make([]string, len(claims.Features))
	copy(snapshot.Features, claims.Features)
	snapshot.Limits = make(map[string]int64, len(claims.Limits))
	for key, value := range claims.Limits {
		snapshot.Limits[key] = value
	}

	return &FeatureView{claims: snapshot}
}

func (f *FeatureView) Tier() Tier {
	return f.claims.Tier
}

func (f *FeatureView) Company() string {
	return f.claims.Company
}

func (f *FeatureView) Features() []string {
	features := make([]string, len(f.claims.Features))
	copy(features, f.claims.Features)
	return features
}

func (f *FeatureView) HasFeature(name string) bool {
	for _, feature := range f.claims.Features {
		if feature == name {
			return true
		}
	}
	return false
}

// RequireFeature returns an error naming the feature and the licensed tier
// when the feature is not included.
func (f *FeatureView) RequireFeature(name string) error {
	if !f.HasFeature(name) {
		return fmt.Errorf("%w: %q is not available on the %s tier", ErrFeatureNotLicensed, name, f.claims.Tier)
	}
	return nil
}

func (f *FeatureView) GetLimit(key string) (int64, error) {
	value, ok := f.claims.Limits[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLimit, key)
	}
	return value, nil
}

// DaysUntilExpiration returns whole days remaining; negative once expired.
func (f *FeatureView) DaysUntilExpiration() int64 {
	remaining := time.Until(f.claims.ExpiresAtTime())
	days := remaining / (24 * time.Hour)
	if remaining < 0 && remaining%(24*time.Hour) != 0 {
		days--
	}
	return int64(days)
}

func (f *FeatureView) ExpiresAt() time.Time {
	return f.claims.ExpiresAtTime()
}

func (f *FeatureView) IsExpiringSoon(thresholdDays int64) bool {
	return f.DaysUntilExpiration() <= thresholdDays
}
