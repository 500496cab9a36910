package source

import (
	"context"
	"fmt"

	"github.com/valuelens/screener/internal/access"
	"github.com/valuelens/screener/pkg/config"
	"github.com/valuelens/screener/pkg/httputil"
	"github.com/valuelens/screener/pkg/logger"
)

// TierResolver resolves the subscription tier and per-user override
// flags the access gate consumes.
type TierResolver interface {
	Resolve(ctx context.Context, userID string) (access.Entitlement, error)
}

// TierClient resolves entitlements from the billing service
type TierClient struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewTierClient creates a tier source client
func NewTierClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *TierClient {
	return &TierClient{
		httpClient: httpClient,
		logger:     log,
		baseURL:    cfg.Fundamentals.BaseURL,
	}
}

// Resolve fetches the entitlement for a user. An unknown or anonymous
// user resolves to the free tier rather than an error.
func (c *TierClient) Resolve(ctx context.Context, userID string) (access.Entitlement, error) {
	if userID == "" {
		return access.Entitlement{Tier: "free"}, nil
	}

	var ent access.Entitlement
	url := fmt.Sprintf("%s/v1/entitlements/%s", c.baseURL, userID)
	if err := c.httpClient.GetJSON(ctx, url, &ent); err != nil {
		return access.Entitlement{}, fmt.Errorf("resolve entitlement: %w", err)
	}

	ent.UserID = userID
	return ent, nil
}

// StaticTierResolver returns a fixed entitlement for every user.
// Used in development and as the fallback when no billing service is
// configured.
type StaticTierResolver struct {
	Tier string
}

// Resolve returns the static entitlement
func (s StaticTierResolver) Resolve(ctx context.Context, userID string) (access.Entitlement, error) {
	tier := s.Tier
	if tier == "" {
		tier = "free"
	}
	return access.Entitlement{UserID: userID, Tier: tier}, nil
}
