// Package entitlement provides the license gate controlling whether the
// premium checkout paths execute. The gate is consulted on every request,
// never cached at startup, because a license can lapse or activate while
// the process runs.
package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Gate reports whether the account is entitled to the premium features.
// When it returns false every card-checkout code path stays inert and the
// site falls back to its pre-existing payment flow.
type Gate interface {
	IsEntitled(ctx context.Context) bool
}

// StaticGate is a fixed entitlement answer, used in tests and in
// deployments that manage licensing out of band.
type StaticGate bool

// IsEntitled implements Gate.
func (g StaticGate) IsEntitled(context.Context) bool { return bool(g) }

// RemoteGate asks a license server whether the install is on a paying plan.
// Answers are cached for a short recheck interval so every request stays
// cheap while runtime license changes still propagate within seconds. On
// transient server errors the last known answer is kept; an install that
// never validated is not entitled.
type RemoteGate struct {
	endpoint   string
	licenseKey string
	client     *http.Client
	recheck    time.Duration

	mutex     sync.Mutex
	lastCheck time.Time
	entitled  bool
	validated bool
}

// NewRemoteGate creates a gate backed by the license server at endpoint.
// A zero recheck interval defaults to 30 seconds.
func NewRemoteGate(endpoint, licenseKey string, recheck time.Duration) *RemoteGate {
	if recheck == 0 {
		recheck = 30 * time.Second
	}
	return &RemoteGate{
		endpoint:   endpoint,
		licenseKey: licenseKey,
		client:     &http.Client{Timeout: 10 * time.Second},
		recheck:    recheck,
	}
}

// IsEntitled implements Gate.
func (g *RemoteGate) IsEntitled(ctx context.Context) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if time.Since(g.lastCheck) < g.recheck {
		return g.entitled
	}
	g.lastCheck = time.Now()

	entitled, err := g.check(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("license check failed, keeping last known entitlement")
		return g.entitled && g.validated
	}
	g.entitled = entitled
	g.validated = true
	return g.entitled
}

func (g *RemoteGate) check(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+g.licenseKey)
	resp, err := g.client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("license server answered %d", resp.StatusCode)
	}
	var answer struct {
		Paying bool `json:"paying"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return false, err
	}
	return answer.Paying, nil
}
