package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/craftbooks/portal-server/internal/config"
	"github.com/craftbooks/portal-server/internal/model"
)

// PreviewSeeder pushes a freshly minted session to the preview environment
// so operators can open the portal as the client would see it. The call is
// best-effort: the local invite/session records are already committed before
// it runs, and a failure here never touches them. Retrying manually is safe.
type PreviewSeeder struct {
	url    string
	secret string
	client *http.Client
}

func NewPreviewSeeder(url, secret string) *PreviewSeeder {
	return &PreviewSeeder{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: config.PreviewSeedCallTimeout},
	}
}

// Enabled reports whether a preview environment is configured.
func (p *PreviewSeeder) Enabled() bool {
	return p.url != ""
}

type previewSeedRequest struct {
	SessionID  string    `json:"sessionId"`
	Token      string    `json:"token"`
	BusinessID string    `json:"businessId"`
	ClientID   string    `json:"clientId"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Seed sends the session to the preview environment. The caller may abandon
// the wait via ctx; the session remains valid locally either way.
func (p *PreviewSeeder) Seed(ctx context.Context, session *model.PortalSession, token string) error {
	if !p.Enabled() {
		return nil
	}

	payload, err := json.Marshal(previewSeedRequest{
		SessionID:  session.ID,
		Token:      token,
		BusinessID: session.BusinessID,
		ClientID:   session.ClientID,
		ExpiresAt:  session.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal preview seed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build preview seed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.secret)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("preview seed call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("preview seed call: unexpected status %d", resp.StatusCode)
	}

	log.Debug().
		Str("sessionId", session.ID).
		Msg("session seeded to preview environment")
	return nil
}
