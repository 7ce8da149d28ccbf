package consensus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/claimsentry/backend/internal/core"
)

// Party is one independent observer queried during a consensus round. It
// returns a single numeric observation of the event's value, or an error
// (including context deadline expiry) which the round treats as a discard.
type Party interface {
	Name() string
	Observe(ctx context.Context, ev core.Event) (float64, error)
}

// HTTPParty queries an external party endpoint. The endpoint receives the
// event as JSON and replies {"value": <float>}. At-least-once delivery is the
// caller's concern: no response within the deadline is a discard, not a retry.
type HTTPParty struct {
	name     string
	endpoint string
	client   *http.Client
}

// NewHTTPParty builds a party for one configured endpoint. The client timeout
// is left to the per-round context so one slow party cannot stall the others.
func NewHTTPParty(endpoint string) *HTTPParty {
	name := endpoint
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	return &HTTPParty{
		name:     name,
		endpoint: endpoint,
		client:   &http.Client{},
	}
}

func (p *HTTPParty) Name() string { return p.name }

func (p *HTTPParty) Observe(ctx context.Context, ev core.Event) (float64, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return 0, fmt.Errorf("build party request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("party %s: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("party %s returned %d", p.name, resp.StatusCode)
	}

	var body struct {
		Value float64 `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("party %s: decode observation: %w", p.name, err)
	}
	return body.Value, nil
}

// StaticParty returns a fixed observation. Used by tests and by the red-team
// harness to model colluding or honest observers.
type StaticParty struct {
	PartyName string
	Value     float64
	Err       error
}

func (p *StaticParty) Name() string { return p.PartyName }

func (p *StaticParty) Observe(_ context.Context, _ core.Event) (float64, error) {
	if p.Err != nil {
		return 0, p.Err
	}
	return p.Value, nil
}
