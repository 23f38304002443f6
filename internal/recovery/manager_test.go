// internal/recovery/manager_test.go
package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/halcyonqa/halcyon/internal/driver"
	"github.com/halcyonqa/halcyon/internal/driver/drivertest"
)

func newTestManager(t *testing.T, maxPasses int) *Manager {
	t.Helper()
	m := NewManager(drivertest.New(), maxPasses, 0, zap.NewNop())
	m.sleep = func(context.Context, time.Duration) error { return nil }
	return m
}

func always(detected bool) DetectFunc {
	return func(context.Context, driver.Driver) bool { return detected }
}

func remediate(ok bool) RemediateFunc {
	return func(context.Context, driver.Driver) bool { return ok }
}

func TestRegisterOrdersByPriority(t *testing.T) {
	m := newTestManager(t, 3)
	m.Register(Strategy{Name: "back", Priority: 50})
	m.Register(Strategy{Name: "permission", Priority: 10})
	m.Register(Strategy{Name: "crash", Priority: 40})
	m.Register(Strategy{Name: "anr", Priority: 15})

	assert.Equal(t, []string{"permission", "anr", "crash", "back"}, m.Strategies())
}

func TestRegistrationOrderBreaksTies(t *testing.T) {
	m := newTestManager(t, 3)
	m.Register(Strategy{Name: "first", Priority: 20})
	m.Register(Strategy{Name: "second", Priority: 20})

	assert.Equal(t, []string{"first", "second"}, m.Strategies())
}

func TestRecoverStopsAtFirstRemediation(t *testing.T) {
	m := newTestManager(t, 3)
	var lowTouched bool
	m.Register(Strategy{
		Name: "high", Priority: 10,
		Detect:    always(true),
		Remediate: remediate(true),
	})
	m.Register(Strategy{
		Name: "low", Priority: 50,
		Detect: func(context.Context, driver.Driver) bool {
			lowTouched = true
			return false
		},
		Remediate: remediate(false),
	})

	attempts, recovered := m.Recover(context.Background())
	require.True(t, recovered)
	assert.False(t, lowTouched, "scan must stop at the first successful remediation")
	require.Len(t, attempts, 1)
	assert.Equal(t, "high", attempts[0].Strategy)
	assert.True(t, attempts[0].Remediated)
}

func TestFailedRemediationResumesScan(t *testing.T) {
	m := newTestManager(t, 3)
	m.Register(Strategy{
		Name: "flaky", Priority: 10,
		Detect:    always(true),
		Remediate: remediate(false),
	})
	m.Register(Strategy{
		Name: "solid", Priority: 20,
		Detect:    always(true),
		Remediate: remediate(true),
	})

	attempts, recovered := m.Recover(context.Background())
	require.True(t, recovered)
	require.Len(t, attempts, 2)
	assert.Equal(t, "flaky", attempts[0].Strategy)
	assert.True(t, attempts[0].Detected)
	assert.False(t, attempts[0].Remediated)
	assert.Equal(t, "solid", attempts[1].Strategy)
	assert.True(t, attempts[1].Remediated)
}

func TestRecoverExhaustsAfterMaxPasses(t *testing.T) {
	m := newTestManager(t, 3)
	m.Register(Strategy{Name: "a", Priority: 10, Detect: always(false), Remediate: remediate(false)})
	m.Register(Strategy{Name: "b", Priority: 20, Detect: always(true), Remediate: remediate(false)})

	attempts, recovered := m.Recover(context.Background())
	assert.False(t, recovered)
	// Two strategies times three passes, every touch logged in order.
	require.Len(t, attempts, 6)
	assert.Equal(t, 1, attempts[0].Pass)
	assert.Equal(t, 3, attempts[5].Pass)

	stats := m.Stats()
	assert.Equal(t, 6, stats.TotalAttempts)
	assert.Equal(t, 0, stats.SuccessCount)
	assert.Equal(t, 6, stats.FailureCount)
	assert.Equal(t, 3, stats.PerStrategy["a"])
	assert.Equal(t, 3, stats.PerStrategy["b"])
}

func TestRecoverRespectsContextCancellation(t *testing.T) {
	m := newTestManager(t, 3)
	m.Register(Strategy{Name: "a", Priority: 10, Detect: always(false), Remediate: remediate(false)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts, recovered := m.Recover(ctx)
	assert.False(t, recovered)
	assert.Empty(t, attempts)
}

func TestStatsReturnsCopy(t *testing.T) {
	m := newTestManager(t, 1)
	m.Register(Strategy{Name: "a", Priority: 10, Detect: always(true), Remediate: remediate(true)})
	_, _ = m.Recover(context.Background())

	stats := m.Stats()
	stats.PerStrategy["a"] = 99
	assert.Equal(t, 1, m.Stats().PerStrategy["a"])
}

func TestExhaustedErrorMessage(t *testing.T) {
	cause := errors.New("element not found")
	err := &ExhaustedError{
		Original: cause,
		Attempts: []Attempt{
			{Pass: 1, Strategy: "permission_dialog"},
			{Pass: 1, Strategy: "back_button", Detected: true},
		},
		Passes:         3,
		ActionAttempts: 1,
	}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "recovery exhausted after 3 pass(es)")
	assert.Contains(t, err.Error(), "permission_dialog: not detected (pass 1)")
	assert.Contains(t, err.Error(), "back_button: detected, remediation failed (pass 1)")
}

func TestBuiltinPermissionDialogFlow(t *testing.T) {
	fake := drivertest.New()
	allow := permissionAllowButtons[0]
	fake.AddElement(allow, "perm_allow")

	m := NewManager(fake, 3, 0, zap.NewNop())
	m.sleep = func(context.Context, time.Duration) error { return nil }
	for _, s := range BuiltinStrategies() {
		m.Register(s)
	}

	attempts, recovered := m.Recover(context.Background())
	require.True(t, recovered)
	assert.Equal(t, "permission_dialog", attempts[len(attempts)-1].Strategy)
	require.Len(t, fake.Dismissed(), 1)
	assert.Equal(t, allow, fake.Dismissed()[0])
}

func TestBuiltinWebViewEscape(t *testing.T) {
	fake := drivertest.New()
	fake.SetContext("WEBVIEW_com.example.app")

	m := NewManager(fake, 1, 0, zap.NewNop())
	m.sleep = func(context.Context, time.Duration) error { return nil }
	for _, s := range BuiltinStrategies() {
		m.Register(s)
	}

	_, recovered := m.Recover(context.Background())
	require.True(t, recovered)
	name, err := fake.CurrentContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "NATIVE_APP", name)
}

func TestBuiltinBackButtonIsLastResort(t *testing.T) {
	fake := drivertest.New()

	m := NewManager(fake, 1, 0, zap.NewNop())
	m.sleep = func(context.Context, time.Duration) error { return nil }
	for _, s := range BuiltinStrategies() {
		m.Register(s)
	}

	attempts, recovered := m.Recover(context.Background())
	require.True(t, recovered)
	assert.Equal(t, "back_button", attempts[len(attempts)-1].Strategy)
	assert.Equal(t, 1, fake.Backs())
}
