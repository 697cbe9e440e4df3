package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonia-saude/leadops-cli/internal/config"
	"github.com/harmonia-saude/leadops-cli/internal/lead"
)

func setTestConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = &config.Config{
		Resolver: config.ResolverConfig{
			HomeRegion:       "BR",
			FallbackRegions:  []string{"BR", "PT", "US"},
			SuffixLimit:      5,
			QueryTimeoutSecs: 3,
			SelfHeal:         false,
		},
		WhatsApp: config.WhatsAppConfig{
			BaseURL:      "https://api.chatpush.io/v2",
			Token:        "tok",
			SenderID:     "sender",
			RateLimitRPS: 10,
			TimeoutSecs:  15,
		},
	}
}

// The webhook server path always rewrites legacy stored phones after a fuzzy
// match, regardless of the resolver.self_heal setting used by the CLI.
func TestInitResolverServePathSelfHeals(t *testing.T) {
	setTestConfig(t)

	st, err := lead.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	legacy := &lead.Lead{Phone: "1198457676", Email: "ana@example.com", Source: lead.SourceImport}
	require.NoError(t, st.UpsertLead(ctx, legacy))

	resolver := initResolver(st, nil, lead.WithSelfHeal(true))
	result := resolver.Resolve(ctx, lead.Input{Phone: "+5511998457676"})
	require.NotNil(t, result.Lead)
	assert.Equal(t, lead.MethodSuffix8, result.Method)

	assert.Eventually(t, func() bool {
		got, err := st.FindByPhone(ctx, "+5511998457676")
		return err == nil && got != nil && got.ID == legacy.ID
	}, time.Second, 10*time.Millisecond)
}

// Without the extra option the CLI resolver honors the config default and
// leaves stored phones alone.
func TestInitResolverDefaultLeavesStoredPhone(t *testing.T) {
	setTestConfig(t)

	st, err := lead.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	legacy := &lead.Lead{Phone: "1198457676", Email: "ana@example.com", Source: lead.SourceImport}
	require.NoError(t, st.UpsertLead(ctx, legacy))

	resolver := initResolver(st, nil)
	result := resolver.Resolve(ctx, lead.Input{Phone: "+5511998457676"})
	require.NotNil(t, result.Lead)

	time.Sleep(50 * time.Millisecond)
	got, err := st.FindByPhone(ctx, "1198457676")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, legacy.ID, got.ID)
}

func TestInitWhatsApp(t *testing.T) {
	setTestConfig(t)

	client, err := initWhatsApp()
	require.NoError(t, err)
	assert.NotNil(t, client)

	cfg.WhatsApp.Token = ""
	_, err = initWhatsApp()
	require.Error(t, err)
}
