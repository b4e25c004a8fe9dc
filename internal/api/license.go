package api

import (
	"fmt"
	"net/http"

	"license-engine/internal/database"
	"license-engine/internal/licensing"

	"github.com/go-chi/chi/v5"
)

// DefaultExpiryWarningDays is the threshold used by the status endpoint when
// flagging licenses as expiring soon.
const DefaultExpiryWarningDays = 30

// LicenseService exposes the validator over HTTP for host applications that
// prefer polling a local endpoint to linking the engine directly.
type LicenseService struct {
	validator   *licensing.Validator
	diagnostics *database.Diagnostics
}

func NewLicenseService(validator *licensing.Validator, diagnostics *database.Diagnostics) *LicenseService {
	return &LicenseService{validator: validator, diagnostics: diagnostics}
}

func (s *LicenseService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/license", func(r chi.Router) {
		r.Get("/status", RestHandler(s.GetStatus))
		r.Post("/validate", RestHandler(s.RevalidateLicense))
		r.Get("/diagnostics", RestHandler(s.GetDiagnostics))
	})
}

type statusResponse struct {
	Valid               bool             `json:"valid"`
	Reason              licensing.Reason `json:"reason,omitempty"`
	Tier                licensing.Tier   `json:"tier,omitempty"`
	Company             string           `json:"company,omitempty"`
	Features            []string         `json:"features,omitempty"`
	Limits              map[string]int64 `json:"limits,omitempty"`
	ExpiresAt           int64            `json:"expires_at,omitempty"`
	DaysUntilExpiration int64            `json:"days_until_expiration,omitempty"`
	ExpiringSoon        bool             `json:"expiring_soon,omitempty"`
}

func statusFromResult(result licensing.Result) statusResponse {
	resp := statusResponse{Valid: result.Valid, Reason: result.Reason}

	if result.Claims != nil {
		resp.Tier = result.Claims.Tier
		resp.Company = result.Claims.Company
		resp.ExpiresAt = result.Claims.ExpiresAt
	}

	if result.Valid {
		view := licensing.NewFeatureView(result.Claims)
		resp.Features = view.Features()
		resp.Limits = result.Claims.Limits
		resp.DaysUntilExpiration = view.DaysUntilExpiration()
		resp.ExpiringSoon = view.IsExpiringSoon(DefaultExpiryWarningDays)
	}

	return resp
}

func (s *LicenseService) GetStatus(r *http.Request) (any, error) {
	return statusFromResult(s.validator.Validate(r.Context())), nil
}

type validateRequest struct {
	LicenseKey string `json:"license_key"`
}

// RevalidateLicense bypasses the in-memory cache and runs the full pipeline.
// An optional JSON body may name a different license key to check instead of
// the configured one.
func (s *LicenseService) RevalidateLicense(r *http.Request) (any, error) {
	if r.ContentLength > 0 {
		req, err := ParseRequest[validateRequest](r)
		if err != nil {
			return nil, err
		}
		if req.LicenseKey != "" {
			return statusFromResult(s.validator.ValidateToken(r.Context(), req.LicenseKey)), nil
		}
	}

	return statusFromResult(s.validator.Revalidate(r.Context())), nil
}

func (s *LicenseService) GetDiagnostics(r *http.Request) (any, error) {
	if s.diagnostics == nil {
		return nil, CodedErrorf(http.StatusNotFound, "diagnostics store is not configured")
	}

	summary, err := s.diagnostics.Summarize(r.Context())
	if err != nil {
		return nil, CodedError(http.StatusInternalServerError, fmt.Errorf("error summarizing validation diagnostics: %w", err))
	}

	return summary, nil
}
