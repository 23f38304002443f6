// internal/session/session_test.go
package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/halcyonqa/halcyon/internal/config"
	"github.com/halcyonqa/halcyon/internal/driver"
	"github.com/halcyonqa/halcyon/internal/driver/drivertest"
	"github.com/halcyonqa/halcyon/internal/locator"
	"github.com/halcyonqa/halcyon/internal/pipeline"
)

func newTestSession(t *testing.T) (*Session, *drivertest.Fake) {
	t.Helper()
	fake := drivertest.New()
	cfg := config.Default()
	cfg.Recovery.SettleDelay = 0

	s, err := New(cfg, fake, nil, zap.NewNop())
	require.NoError(t, err)
	return s, fake
}

func TestNewRejectsNilDependencies(t *testing.T) {
	_, err := New(nil, drivertest.New(), nil, zap.NewNop())
	assert.Error(t, err)
	_, err = New(config.Default(), nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestExecuteThroughSession(t *testing.T) {
	s, fake := newTestSession(t)
	loc := locator.ByID("com.app:id/btn_submit")
	fake.AddElement(loc, "e1")

	_, err := s.Execute(context.Background(), driver.ActionClick, loc, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.CacheStats().Misses)

	_, err = s.Execute(context.Background(), driver.ActionClick, loc, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.CacheStats().Hits)
}

func TestSessionsAreIndependent(t *testing.T) {
	s1, fake1 := newTestSession(t)
	s2, _ := newTestSession(t)
	assert.NotEqual(t, s1.ID(), s2.ID())

	loc := locator.ByID("com.app:id/btn_submit")
	fake1.AddElement(loc, "e1")
	_, err := s1.Execute(context.Background(), driver.ActionClick, loc, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), s1.CacheStats().Misses)
	assert.Zero(t, s2.CacheStats().Misses, "sessions must not share cache state")
}

func TestRegisterCustomStrategyInterleaves(t *testing.T) {
	s, fake := newTestSession(t)
	target := locator.ByID("com.app:id/btn_submit")
	nag := locator.ByText("Rate us!")
	fake.AddElement(nag, "nag")
	fake.OnDismiss = func(f *drivertest.Fake, loc locator.Locator) {
		if loc == nag {
			f.AddElement(target, "e1")
		}
	}

	s.RegisterRecoveryStrategy("rating_nag", 5,
		func(ctx context.Context, drv driver.Driver) bool {
			_, err := drv.FindElement(ctx, nag)
			return err == nil
		},
		func(ctx context.Context, drv driver.Driver) bool {
			return drv.Dismiss(ctx, nag) == nil
		},
	)

	_, err := s.Execute(context.Background(), driver.ActionClick, target, nil)
	require.NoError(t, err)

	stats := s.RecoveryStats()
	assert.Equal(t, 1, stats.PerStrategy["rating_nag"],
		"priority 5 must scan before every built-in")
}

func TestRegisterMiddlewareConditional(t *testing.T) {
	s, fake := newTestSession(t)
	loc := locator.ByID("com.app:id/btn_submit")
	fake.AddElement(loc, "e1")

	var clicks, typed int
	s.RegisterMiddleware(func(ctx context.Context, ac *pipeline.ActionContext, next pipeline.Next) (driver.Result, error) {
		clicks++
		return next(ctx)
	}, func(ac *pipeline.ActionContext) bool { return ac.Action == driver.ActionClick })
	s.RegisterMiddleware(func(ctx context.Context, ac *pipeline.ActionContext, next pipeline.Next) (driver.Result, error) {
		typed++
		return next(ctx)
	}, nil)

	_, err := s.Execute(context.Background(), driver.ActionClick, loc, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, clicks)
	assert.Equal(t, 1, typed)

	_, err = s.Execute(context.Background(), driver.ActionGetText, loc, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, clicks, "conditional middleware must skip non-click actions")
	assert.Equal(t, 2, typed)
}

func TestCacheToggleAndClose(t *testing.T) {
	s, fake := newTestSession(t)
	loc := locator.ByID("com.app:id/btn_submit")
	fake.AddElement(loc, "e1")

	s.SetCacheEnabled(false)
	_, err := s.Execute(context.Background(), driver.ActionClick, loc, nil)
	require.NoError(t, err)
	s.SetCacheEnabled(true)

	require.NotNil(t, s.HealingReport())
	require.NoError(t, s.Close(context.Background()))
}

func TestHealingDisabledByConfig(t *testing.T) {
	fake := drivertest.New()
	cfg := config.Default()
	cfg.Healing.Enabled = false

	s, err := New(cfg, fake, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, s.HealingReport())
}
