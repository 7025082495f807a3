package deckbridge

import (
	"fmt"
	"strings"

	"github.com/deckbridge/deckbridge/cable"
)

// AccountRecord is the typed configuration resolved for one dashboard
// account. Fields are validated at the boundary by ResolveAccount; the rest
// of the bridge never touches raw configuration blobs.
type AccountRecord struct {
	AccountID string
	Name      string
	BaseURL   string
	Token     string
	Enabled   bool
}

// CableConfig projects the record onto the connection configuration.
func (r AccountRecord) CableConfig() cable.Config {
	return cable.Config{BaseURL: r.BaseURL, Token: r.Token}
}

// ResolveAccount extracts and validates one account's record from a raw
// configuration blob of the shape {"accounts": {"<id>": {"base_url": ...,
// "token": ..., "name": ..., "enabled": ...}}}. It is a pure function: same
// input, same record, no ambient state consulted.
func ResolveAccount(raw map[string]any, accountID string) (AccountRecord, error) {
	accounts, ok := raw["accounts"].(map[string]any)
	if !ok {
		return AccountRecord{}, fmt.Errorf("config has no accounts section")
	}
	entry, ok := accounts[accountID].(map[string]any)
	if !ok {
		return AccountRecord{}, fmt.Errorf("account %q not found in config", accountID)
	}

	rec := AccountRecord{AccountID: accountID, Enabled: true}
	if v, ok := entry["name"].(string); ok {
		rec.Name = v
	}
	if v, ok := entry["base_url"].(string); ok {
		rec.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := entry["token"].(string); ok {
		rec.Token = strings.TrimSpace(v)
	}
	if v, ok := entry["enabled"].(bool); ok {
		rec.Enabled = v
	}

	if rec.BaseURL == "" || rec.Token == "" {
		return AccountRecord{}, fmt.Errorf("account %q: %w", accountID, ErrNotConfigured)
	}
	return rec, nil
}
