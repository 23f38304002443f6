// internal/recovery/strategies.go
package recovery

import (
	"context"
	"strings"
	"time"

	"github.com/halcyonqa/halcyon/internal/driver"
	"github.com/halcyonqa/halcyon/internal/locator"
)

// Built-in strategy priorities. Custom strategies register with any value
// and are interleaved into the same ordering.
const (
	PriorityPermissionDialog = 10
	PriorityANRDialog        = 15
	PrioritySystemDialog     = 20
	PriorityWebViewEscape    = 35
	PriorityCrashRestart     = 40
	PriorityBackButton       = 50
)

const probeTimeout = 2 * time.Second

// permissionAllowButtons are the resource ids used by the system permission
// prompt across Android releases.
var permissionAllowButtons = []locator.Locator{
	locator.ByID("com.android.packageinstaller:id/permission_allow_button"),
	locator.ByID("com.android.permissioncontroller:id/permission_allow_button"),
	locator.ByID("com.android.permissioncontroller:id/permission_allow_foreground_only_button"),
	locator.ByID("com.android.packageinstaller:id/permission_allow_always_button"),
}

var anrWaitButtons = []locator.Locator{
	locator.ByText("Wait"),
	locator.ByText("等待"),
}

// systemDialogDismissals clears update prompts, rating nags and similar
// one-off dialogs. Order matters: prefer the negative/neutral option.
var systemDialogDismissals = []locator.Locator{
	locator.ByXPath(`//*[@text="Cancel" or @text="取消" or @text="稍後"]`),
	locator.ByXPath(`//*[@text="No thanks" or @text="不用了" or @text="略過"]`),
	locator.ByXPath(`//*[@text="Close" or @text="關閉" or @text="Dismiss"]`),
	locator.ByXPath(`//*[@text="OK" or @text="確定" or @text="Got it"]`),
	locator.ByXPath(`//*[@resource-id="android:id/button2"]`),
}

var crashIndicators = []locator.Locator{
	locator.ByXPath(`//*[contains(@text,"has stopped")]`),
	locator.ByXPath(`//*[contains(@text,"keeps stopping")]`),
	locator.ByXPath(`//*[contains(@text,"已停止")]`),
	locator.ByXPath(`//*[contains(@text,"持續停止")]`),
}

var crashCloseButtons = []locator.Locator{
	locator.ByXPath(`//*[@text="Close" or @text="關閉" or @text="OK" or @text="確定"]`),
}

// BuiltinStrategies returns the default interruption handlers in priority
// order: permission dialog, ANR dialog, generic system dialog, webview
// escape, crash restart, and the back button as a last resort.
func BuiltinStrategies() []Strategy {
	return []Strategy{
		{
			Name:      "permission_dialog",
			Priority:  PriorityPermissionDialog,
			Detect:    detectAny(permissionAllowButtons),
			Remediate: dismissAny(permissionAllowButtons),
		},
		{
			Name:      "anr_dialog",
			Priority:  PriorityANRDialog,
			Detect:    detectAny(anrWaitButtons),
			Remediate: dismissAny(anrWaitButtons),
		},
		{
			Name:      "system_dialog",
			Priority:  PrioritySystemDialog,
			Detect:    detectAny(systemDialogDismissals),
			Remediate: dismissAny(systemDialogDismissals),
		},
		{
			Name:      "webview_escape",
			Priority:  PriorityWebViewEscape,
			Detect:    detectWebViewContext,
			Remediate: escapeWebView,
		},
		{
			Name:      "crash_restart",
			Priority:  PriorityCrashRestart,
			Detect:    detectAny(crashIndicators),
			Remediate: restartAfterCrash,
		},
		{
			Name:      "back_button",
			Priority:  PriorityBackButton,
			Detect:    func(context.Context, driver.Driver) bool { return true },
			Remediate: pressBack,
		},
	}
}

// detectAny reports whether any of the locators resolves on screen.
func detectAny(locs []locator.Locator) DetectFunc {
	return func(ctx context.Context, drv driver.Driver) bool {
		_, ok := findAny(ctx, drv, locs)
		return ok
	}
}

// dismissAny taps the first locator that resolves.
func dismissAny(locs []locator.Locator) RemediateFunc {
	return func(ctx context.Context, drv driver.Driver) bool {
		loc, ok := findAny(ctx, drv, locs)
		if !ok {
			return false
		}
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		return drv.Dismiss(probeCtx, loc) == nil
	}
}

func findAny(ctx context.Context, drv driver.Driver, locs []locator.Locator) (locator.Locator, bool) {
	for _, loc := range locs {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		_, err := drv.FindElement(probeCtx, loc)
		cancel()
		if err == nil {
			return loc, true
		}
	}
	return locator.Locator{}, false
}

func detectWebViewContext(ctx context.Context, drv driver.Driver) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	name, err := drv.CurrentContext(probeCtx)
	return err == nil && strings.Contains(strings.ToUpper(name), "WEBVIEW")
}

func escapeWebView(ctx context.Context, drv driver.Driver) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return drv.SwitchContext(probeCtx, "NATIVE_APP") == nil
}

func restartAfterCrash(ctx context.Context, drv driver.Driver) bool {
	// Clear the crash dialog if one is still up, then relaunch.
	if loc, ok := findAny(ctx, drv, crashCloseButtons); ok {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		_ = drv.Dismiss(probeCtx, loc)
		cancel()
	}
	return drv.RestartApp(ctx) == nil
}

func pressBack(ctx context.Context, drv driver.Driver) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return drv.PressBack(probeCtx) == nil
}
