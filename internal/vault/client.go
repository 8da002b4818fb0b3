// Package vault fetches BrokerProfile fee-model inputs from a Vault KV
// mount, grounded on the teacher's internal/vault/client.go API-client
// wrapper pattern.
package vault

import (
	"context"
	"fmt"

	vaultapi "github.com/hashicorp/vault/api"
	"github.com/shopspring/decimal"
)

// BrokerProfile carries the commission/spread/overnight-rate bundle
// the ledger's FeeModel is built from (spec.md §5).
type BrokerProfile struct {
	ID                string
	Commission        decimal.Decimal
	SpreadPct         decimal.Decimal
	OvernightRatePct  decimal.Decimal
	WarrantThetaDaily decimal.Decimal
}

// Client wraps a Vault API client scoped to one KV mount.
type Client struct {
	api       *vaultapi.Client
	mountPath string
}

func New(address, token, mountPath string) (*Client, error) {
	cfg := vaultapi.DefaultConfig()
	cfg.Address = address
	api, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault: new client: %w", err)
	}
	api.SetToken(token)
	return &Client{api: api, mountPath: mountPath}, nil
}

// GetBrokerProfile reads one broker profile from the KV v2 mount at
// <mountPath>/data/broker-profiles/<profileID>.
func (c *Client) GetBrokerProfile(ctx context.Context, profileID string) (*BrokerProfile, error) {
	path := fmt.Sprintf("%s/data/broker-profiles/%s", c.mountPath, profileID)
	secret, err := c.api.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("vault: read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("vault: broker profile %q not found", profileID)
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("vault: malformed secret at %s", path)
	}

	profile := &BrokerProfile{ID: profileID}
	var err2 error
	profile.Commission, err2 = decimalField(data, "commission")
	if err2 != nil {
		return nil, err2
	}
	profile.SpreadPct, err2 = decimalField(data, "spread_pct")
	if err2 != nil {
		return nil, err2
	}
	profile.OvernightRatePct, err2 = decimalField(data, "overnight_rate_pct")
	if err2 != nil {
		return nil, err2
	}
	profile.WarrantThetaDaily, err2 = decimalField(data, "warrant_theta_daily")
	if err2 != nil {
		return nil, err2
	}
	return profile, nil
}

func decimalField(data map[string]interface{}, key string) (decimal.Decimal, error) {
	raw, ok := data[key]
	if !ok {
		return decimal.Zero, nil
	}
	switch v := raw.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("vault: parse field %q: %w", key, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Zero, fmt.Errorf("vault: unexpected type for field %q", key)
	}
}
