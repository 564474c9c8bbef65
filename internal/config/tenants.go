// ABOUTME: Tenant catalogue loaded from TOML and converted into store tenants
// ABOUTME: Validates ids, opening hours, timezones and delivery polygons before anything starts

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/2389/storefront-gateway/internal/geofence"
	"github.com/2389/storefront-gateway/internal/store"
)

// Catalogue is the parsed tenants file
type Catalogue struct {
	Tenants []TenantSpec `toml:"tenant"`
}

// TenantSpec is one [[tenant]] table
type TenantSpec struct {
	ID              string      `toml:"id"`
	Name            string      `toml:"name"`
	BotToken        string      `toml:"bot_token"`
	OperatorChatID  int64       `toml:"operator_chat_id"`
	SupportUsername string      `toml:"support_username"`
	DeliveryZone    [][]float64 `toml:"delivery_zone"`
	Open            string      `toml:"open"`
	Close           string      `toml:"close"`
	Timezone        string      `toml:"timezone"`
	Active          *bool       `toml:"active"` // defaults to true
}

// LoadTenants reads and validates a tenant catalogue. ${VAR} references are
// expanded first so bot tokens can stay out of the file.
func LoadTenants(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tenants file: %w", err)
	}

	var cat Catalogue
	md, err := toml.Decode(expandEnvVars(string(data)), &cat)
	if err != nil {
		return nil, fmt.Errorf("parsing tenants file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parsing tenants file: unknown key %s", undecoded[0])
	}

	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("validating tenants file: %w", err)
	}
	return &cat, nil
}

// Validate checks every tenant and rejects duplicate ids
func (c *Catalogue) Validate() error {
	seen := make(map[string]bool, len(c.Tenants))
	for i, t := range c.Tenants {
		if t.ID == "" {
			return fmt.Errorf("tenant #%d: id is required", i+1)
		}
		if seen[t.ID] {
			return fmt.Errorf("tenant %s: duplicate id", t.ID)
		}
		seen[t.ID] = true

		if err := t.validate(); err != nil {
			return fmt.Errorf("tenant %s: %w", t.ID, err)
		}
	}
	return nil
}

func (t TenantSpec) validate() error {
	if t.Name == "" {
		return errors.New("name is required")
	}
	if (t.Open == "") != (t.Close == "") {
		return errors.New("open and close must be set together")
	}
	if t.Open != "" {
		if _, err := geofence.ParseClock(t.Open); err != nil {
			return fmt.Errorf("open: %w", err)
		}
		if _, err := geofence.ParseClock(t.Close); err != nil {
			return fmt.Errorf("close: %w", err)
		}
	}
	if t.Timezone != "" {
		if _, err := time.LoadLocation(t.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	for i, pair := range t.DeliveryZone {
		if len(pair) != 2 {
			return fmt.Errorf("delivery_zone vertex %d: want [lat, lng]", i+1)
		}
		if pair[0] < -90 || pair[0] > 90 || pair[1] < -180 || pair[1] > 180 {
			return fmt.Errorf("delivery_zone vertex %d: out of range", i+1)
		}
	}
	if n := len(t.DeliveryZone); n > 0 && n < 3 {
		return fmt.Errorf("delivery_zone needs at least 3 vertices, got %d", n)
	}
	return nil
}

// IsActive reports the active flag, defaulting to true
func (t TenantSpec) IsActive() bool {
	return t.Active == nil || *t.Active
}

// StoreTenants converts the catalogue for store.SyncTenants
func (c *Catalogue) StoreTenants() []*store.Tenant {
	out := make([]*store.Tenant, 0, len(c.Tenants))
	for _, t := range c.Tenants {
		out = append(out, &store.Tenant{
			ID:              t.ID,
			Name:            t.Name,
			BotToken:        t.BotToken,
			OperatorChatID:  t.OperatorChatID,
			SupportUsername: t.SupportUsername,
			DeliveryZone:    geofence.PolygonFromPairs(t.DeliveryZone),
			OpenTime:        t.Open,
			CloseTime:       t.Close,
			Timezone:        t.Timezone,
			Active:          t.IsActive(),
		})
	}
	return out
}
