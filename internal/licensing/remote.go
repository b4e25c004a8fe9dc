package licensing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// protocolVersion is sent with every reconciliation request so the authority
// can reject clients speaking an incompatible protocol.
const protocolVersion = "1"

// remoteClient performs the best-effort phone-home against the licensing
// authority. It issues exactly one request per check with a hard timeout and
// never retries; retry policy, if any, belongs to the caller.
type remoteClient struct {
	client  *resty.Client
	timeout time.Duration
}

func newRemoteClient(serverURL string, timeout time.Duration) *remoteClient {
	return &remoteClient{
		client:  resty.New().SetBaseURL(serverURL),
		timeout: timeout,
	}
}

type remoteCheckRequest struct {
	LicenseKey string `json:"license_key"`
	MachineID  string `json:"machine_id,omitempty"`
	Timestamp  int64  `json:"timestamp"`
	Version    string `json:"version"`
}

type remoteCheckResponse struct {
	Valid       bool   `json:"valid"`
	Reason      string `json:"reason,omitempty"`
	CachedUntil int64  `json:"cached_until,omitempty"`
}

// check posts the token to {server_url}/validate. Any transport failure,
// timeout, non-2xx status, or malformed body is reported as a typed error;
// a reachable server that rejects the license is a definitive outcome, not an
// error.
func (c *remoteClient) check(ctx context.Context, token, fingerprint string) (*remoteCheckResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := remoteCheckRequest{
		LicenseKey: token,
		MachineID:  fingerprint,
		Timestamp:  time.Now().Unix(),
		Version:    protocolVersion,
	}

	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/validate")

	if err != nil {
		slog.Error("unable to reach license server", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPhoneHomeFailed, err)
	}

	if !res.IsSuccess() {
		slog.Error("license server returned error", "status_code", res.StatusCode(), "body", res.String())
		return nil, fmt.Errorf("%w: server returned status %d", ErrPhoneHomeFailed, res.StatusCode())
	}

	var outcome remoteCheckResponse
	if err := json.Unmarshal(res.Body(), &outcome); err != nil {
		slog.Error("error parsing response from license server", "error", err)
		return nil, fmt.Errorf("%w: malformed server response", ErrPhoneHomeFailed)
	}

	return &outcome, nil
}
