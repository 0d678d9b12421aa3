package config

import (
	"fmt"
	"os"
	"sort"
)

const (
	// DefaultAccountID names the implicit account built from channel defaults.
	DefaultAccountID = "default"

	// Wildcard matches any user or group in allowlist entries.
	Wildcard = "*"
)

// TokenSource records where a resolved bot token came from.
type TokenSource string

const (
	TokenSourceLiteral TokenSource = "literal"
	TokenSourceEnv     TokenSource = "env"
	TokenSourceNone    TokenSource = "none"
)

// ResolvedAccount is a fully merged account view: channel defaults layered
// under per-account overrides, token resolved from its configured source.
type ResolvedAccount struct {
	ID          string
	Enabled     bool
	Token       string
	TokenSource TokenSource
	BaseURL     string
	DMPolicy    string
	AllowFrom   []string
	Groups      map[string]GroupConfig
	GroupPolicy string
	Webhook     AccountWebhookConfig
	MediaMaxMB  int
}

// Configured reports whether the account has a usable token.
func (a *ResolvedAccount) Configured() bool {
	return a.Token != ""
}

// ResolveAccount merges channel defaults with the named account's overrides.
// The id "default" resolves the channel-level settings themselves.
func (c *Config) ResolveAccount(id string) (*ResolvedAccount, error) {
	resolved := &ResolvedAccount{
		ID:          id,
		Enabled:     c.Max.Enabled,
		BaseURL:     c.Max.BaseURL,
		DMPolicy:    c.Max.DMPolicy,
		AllowFrom:   c.Max.AllowFrom,
		Groups:      c.Max.Groups,
		GroupPolicy: c.Max.GroupPolicy,
		Webhook:     c.Max.Webhook,
		MediaMaxMB:  c.Max.MediaMaxMB,
	}

	tokenLiteral := c.Max.BotToken
	tokenEnv := c.Max.BotTokenEnv

	if id != DefaultAccountID {
		account, ok := c.Max.Accounts[id]
		if !ok {
			return nil, fmt.Errorf("unknown account: %s", id)
		}
		if account.Enabled != nil {
			resolved.Enabled = *account.Enabled
		}
		if account.BaseURL != "" {
			resolved.BaseURL = account.BaseURL
		}
		if account.DMPolicy != "" {
			resolved.DMPolicy = account.DMPolicy
		}
		if account.AllowFrom != nil {
			resolved.AllowFrom = account.AllowFrom
		}
		if account.Groups != nil {
			resolved.Groups = account.Groups
		}
		if account.GroupPolicy != "" {
			resolved.GroupPolicy = account.GroupPolicy
		}
		if account.Webhook != nil {
			resolved.Webhook = *account.Webhook
		}
		if account.MediaMaxMB != nil {
			resolved.MediaMaxMB = *account.MediaMaxMB
		}
		// A per-account token source fully shadows the channel one.
		if account.BotToken != "" || account.BotTokenEnv != "" {
			tokenLiteral = account.BotToken
			tokenEnv = account.BotTokenEnv
		}
	}

	switch {
	case tokenLiteral != "":
		resolved.Token = tokenLiteral
		resolved.TokenSource = TokenSourceLiteral
	case tokenEnv != "":
		resolved.Token = os.Getenv(tokenEnv)
		resolved.TokenSource = TokenSourceEnv
	default:
		resolved.TokenSource = TokenSourceNone
	}

	if resolved.DMPolicy == "" {
		resolved.DMPolicy = "pairing"
	}
	if resolved.GroupPolicy == "" {
		resolved.GroupPolicy = "allowlist"
	}
	if resolved.MediaMaxMB <= 0 {
		resolved.MediaMaxMB = 20
	}

	return resolved, nil
}

// AccountIDs lists every account the config defines, default first.
func (c *Config) AccountIDs() []string {
	ids := []string{DefaultAccountID}
	extra := make([]string, 0, len(c.Max.Accounts))
	for id := range c.Max.Accounts {
		extra = append(extra, id)
	}
	sort.Strings(extra)
	return append(ids, extra...)
}
