package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlagsDefaults(t *testing.T) {
	ff := LoadFeatureFlags()
	ctx := &FeatureContext{UserID: "user-1"}

	t.Run("stable features are on by default", func(t *testing.T) {
		assert.True(t, ff.IsEnabled(FeatureUICelebration, ctx))
		assert.True(t, ff.IsEnabled(FeatureRollupSnapshots, ctx))
		assert.True(t, ff.IsEnabled(FeatureActivityArchive, ctx))
	})

	t.Run("experimental features are off by default", func(t *testing.T) {
		assert.False(t, ff.IsEnabled(FeatureExperimentalWebhooks, ctx))
		assert.False(t, ff.IsEnabled(FeatureExperimentalAnalytics, ctx))
	})

	t.Run("unknown features are off", func(t *testing.T) {
		assert.False(t, ff.IsEnabled("no.such.feature", ctx))
	})

	t.Run("admins see everything", func(t *testing.T) {
		admin := &FeatureContext{UserID: "admin-1", IsAdmin: true}
		assert.True(t, ff.IsEnabled(FeatureExperimentalWebhooks, admin))
	})
}

func TestFeatureFlagsEnvironmentOverrides(t *testing.T) {
	t.Run("boolean override disables a default-on feature", func(t *testing.T) {
		t.Setenv("FEATURE_PROGRESS_ROLLUP_SNAPSHOTS", "false")
		ff := LoadFeatureFlags()
		assert.False(t, ff.IsEnabled(FeatureRollupSnapshots, &FeatureContext{UserID: "user-1"}))
	})

	t.Run("percentage override sets a partial rollout", func(t *testing.T) {
		t.Setenv("FEATURE_EXPERIMENTAL_WEBHOOKS", "100")
		ff := LoadFeatureFlags()
		assert.True(t, ff.IsEnabled(FeatureExperimentalWebhooks, &FeatureContext{UserID: "user-1"}))
	})
}

func TestFeatureFlagsRollout(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureUICelebration, 50))

	t.Run("bucket assignment is stable per user", func(t *testing.T) {
		ctx := &FeatureContext{UserID: "user-1"}
		first := ff.IsEnabled(FeatureUICelebration, ctx)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, ff.IsEnabled(FeatureUICelebration, ctx))
		}
	})

	t.Run("zero percent turns the feature off for everyone", func(t *testing.T) {
		require.NoError(t, ff.SetRolloutPercent(FeatureUICelebration, 0))
		assert.False(t, ff.IsEnabled(FeatureUICelebration, &FeatureContext{UserID: "user-1"}))
	})
}

func TestFeatureFlagsUserOverrides(t *testing.T) {
	ff := LoadFeatureFlags()
	ctx := &FeatureContext{UserID: "user-1"}

	ff.SetUserOverride("user-1", FeatureExperimentalWebhooks, true)
	assert.True(t, ff.IsEnabled(FeatureExperimentalWebhooks, ctx))
	// Other users keep the default.
	assert.False(t, ff.IsEnabled(FeatureExperimentalWebhooks, &FeatureContext{UserID: "user-2"}))

	ff.ClearUserOverrides("user-1")
	assert.False(t, ff.IsEnabled(FeatureExperimentalWebhooks, ctx))
}

func TestFeatureFlagsVariants(t *testing.T) {
	ff := LoadFeatureFlags()
	ctx := &FeatureContext{UserID: "user-1"}

	t.Run("scoring experiment yields a known variant", func(t *testing.T) {
		variant := ff.GetVariant(FeatureScoringStrategy, ctx)
		assert.Contains(t, []string{ScoringVariantWeighted, ScoringVariantUniform}, variant)
	})

	t.Run("variant assignment is stable per user", func(t *testing.T) {
		first := ff.GetVariant(FeatureScoringStrategy, ctx)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, ff.GetVariant(FeatureScoringStrategy, ctx))
		}
	})

	t.Run("features without variants return empty", func(t *testing.T) {
		assert.Empty(t, ff.GetVariant(FeatureUIFilters, ctx))
	})

	t.Run("disabled features return empty", func(t *testing.T) {
		require.NoError(t, ff.DisableFeature(FeatureScoringStrategy))
		assert.Empty(t, ff.GetVariant(FeatureScoringStrategy, ctx))
	})
}
