// internal/driver/uia/driver.go
package uia

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/halcyonqa/halcyon/internal/driver"
	"github.com/halcyonqa/halcyon/internal/locator"
)

// Driver adapts the wire client to the driver boundary consumed by the
// pipeline.
type Driver struct {
	client *Client
	appID  string
}

var _ driver.Driver = (*Driver)(nil)

// NewDriver wraps a connected client. appID is the package/bundle id used
// by RestartApp.
func NewDriver(client *Client, appID string) *Driver {
	return &Driver{client: client, appID: appID}
}

// Healthy reports whether the automation server responds to its status
// endpoint. Satisfies the monitor's prober.
func (d *Driver) Healthy(ctx context.Context) bool {
	return d.client.Healthy(ctx)
}

// elementRef decodes the element payload across protocol dialects.
type elementRef struct {
	W3C    string `json:"element-6066-11e4-a52e-4f735466cecf"`
	Legacy string `json:"ELEMENT"`
}

func (r elementRef) id() string {
	if r.W3C != "" {
		return r.W3C
	}
	return r.Legacy
}

// wireSelector translates a locator into the protocol's using/value pair.
// Text locators have no wire strategy of their own and ride on XPath.
func wireSelector(loc locator.Locator) (using, value string, err error) {
	switch loc.Strategy {
	case locator.ID:
		return "id", loc.Value, nil
	case locator.AccessibilityID:
		return "accessibility id", loc.Value, nil
	case locator.XPath:
		return "xpath", loc.Value, nil
	case locator.ClassName:
		return "class name", loc.Value, nil
	case locator.Text:
		return "xpath", fmt.Sprintf(`//*[@text=%q]`, loc.Value), nil
	default:
		return "", "", fmt.Errorf("unsupported locator strategy %q", loc.Strategy)
	}
}

// FindElement polls for the locator until it resolves or the find timeout
// elapses. The poll is the pipeline's coarse readiness wait; there is no
// finer-grained synchronization with the app.
func (d *Driver) FindElement(ctx context.Context, loc locator.Locator) (driver.Handle, error) {
	using, value, err := wireSelector(loc)
	if err != nil {
		return driver.Handle{}, driver.NewElementError(driver.KindProtocol, loc, err)
	}

	deadline := time.Now().Add(d.client.opts.FindTimeout)
	var lastErr error
	for {
		raw, err := d.client.request(ctx, http.MethodPost, d.client.sessionPath("/element"),
			map[string]string{"using": using, "value": value})
		if err == nil {
			var ref elementRef
			if err := json.Unmarshal(raw, &ref); err == nil && ref.id() != "" {
				return driver.Handle{ID: ref.id()}, nil
			}
			lastErr = errors.New("malformed element reference")
		} else {
			if kind := classify(err); kind != driver.KindNotFound {
				return driver.Handle{}, driver.NewElementError(kind, loc, err)
			}
			lastErr = err
		}

		if time.Now().After(deadline) {
			return driver.Handle{}, driver.NewElementError(driver.KindNotFound, loc, lastErr)
		}
		select {
		case <-ctx.Done():
			return driver.Handle{}, driver.NewElementError(driver.KindTimeout, loc, ctx.Err())
		case <-time.After(d.client.opts.PollInterval):
		}
	}
}

// IsAttached probes the element's displayed endpoint. Any failure counts as
// detached.
func (d *Driver) IsAttached(ctx context.Context, h driver.Handle) bool {
	if h.IsZero() {
		return false
	}
	raw, err := d.client.request(ctx, http.MethodGet,
		d.client.sessionPath("/element/"+h.ID+"/displayed"), nil)
	if err != nil {
		return false
	}
	var displayed bool
	return json.Unmarshal(raw, &displayed) == nil && displayed
}

// PerformAction dispatches a single action against a resolved element.
func (d *Driver) PerformAction(ctx context.Context, h driver.Handle, action driver.Action, args driver.Args) (driver.Result, error) {
	var (
		raw []byte
		err error
	)
	switch action {
	case driver.ActionClick:
		_, err = d.client.request(ctx, http.MethodPost,
			d.client.sessionPath("/element/"+h.ID+"/click"), struct{}{})

	case driver.ActionTypeText:
		if _, err = d.client.request(ctx, http.MethodPost,
			d.client.sessionPath("/element/"+h.ID+"/clear"), struct{}{}); err == nil {
			_, err = d.client.request(ctx, http.MethodPost,
				d.client.sessionPath("/element/"+h.ID+"/value"),
				map[string]string{"text": args["text"]})
		}

	case driver.ActionGetText:
		raw, err = d.client.request(ctx, http.MethodGet,
			d.client.sessionPath("/element/"+h.ID+"/text"), nil)
		if err == nil {
			var text string
			if uerr := json.Unmarshal(raw, &text); uerr != nil {
				return driver.Result{}, driver.NewElementError(driver.KindProtocol, locator.Locator{}, uerr)
			}
			return driver.Result{Value: text}, nil
		}

	case driver.ActionAssertPresent:
		if !d.IsAttached(ctx, h) {
			return driver.Result{}, driver.NewElementError(driver.KindStale, locator.Locator{},
				errors.New("element is no longer attached"))
		}
		return driver.Result{}, nil

	default:
		return driver.Result{}, driver.NewElementError(driver.KindProtocol, locator.Locator{},
			fmt.Errorf("unsupported action %q", action))
	}

	if err != nil {
		ee := driver.NewElementError(classify(err), locator.Locator{}, err)
		ee.Action = action
		return driver.Result{}, ee
	}
	return driver.Result{}, nil
}

// PageSource fetches the current hierarchy XML.
func (d *Driver) PageSource(ctx context.Context) ([]byte, error) {
	raw, err := d.client.request(ctx, http.MethodGet, d.client.sessionPath("/source"), nil)
	if err != nil {
		return nil, fmt.Errorf("uia: page source: %w", err)
	}
	var source string
	if err := json.Unmarshal(raw, &source); err != nil {
		return nil, fmt.Errorf("uia: decode page source: %w", err)
	}
	return []byte(source), nil
}

// WindowSize returns the device screen dimensions.
func (d *Driver) WindowSize(ctx context.Context) (int, int, error) {
	raw, err := d.client.request(ctx, http.MethodGet, d.client.sessionPath("/window/rect"), nil)
	if err != nil {
		return 0, 0, fmt.Errorf("uia: window rect: %w", err)
	}
	var rect struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if err := json.Unmarshal(raw, &rect); err != nil {
		return 0, 0, fmt.Errorf("uia: decode window rect: %w", err)
	}
	return rect.Width, rect.Height, nil
}

// Swipe performs a press-move-release pointer gesture.
func (d *Driver) Swipe(ctx context.Context, fromX, fromY, toX, toY int, duration time.Duration) error {
	body := map[string]any{
		"actions": []map[string]any{{
			"type": "pointer",
			"id":   "finger1",
			"actions": []map[string]any{
				{"type": "pointerMove", "duration": 0, "x": fromX, "y": fromY},
				{"type": "pointerDown", "button": 0},
				{"type": "pointerMove", "duration": duration.Milliseconds(), "x": toX, "y": toY},
				{"type": "pointerUp", "button": 0},
			},
		}},
	}
	if _, err := d.client.request(ctx, http.MethodPost, d.client.sessionPath("/actions"), body); err != nil {
		return fmt.Errorf("uia: swipe: %w", err)
	}
	return nil
}

// PressBack presses the system back button.
func (d *Driver) PressBack(ctx context.Context) error {
	if _, err := d.client.request(ctx, http.MethodPost, d.client.sessionPath("/back"), struct{}{}); err != nil {
		return fmt.Errorf("uia: press back: %w", err)
	}
	return nil
}

// Dismiss resolves a locator and taps it in one shot, bypassing the
// pipeline. Used by recovery strategies to clear blocking dialogs.
func (d *Driver) Dismiss(ctx context.Context, loc locator.Locator) error {
	h, err := d.FindElement(ctx, loc)
	if err != nil {
		return err
	}
	_, err = d.PerformAction(ctx, h, driver.ActionClick, nil)
	return err
}

// RestartApp terminates and relaunches the application under test.
func (d *Driver) RestartApp(ctx context.Context) error {
	body := map[string]string{"appId": d.appID}
	if _, err := d.client.request(ctx, http.MethodPost,
		d.client.sessionPath("/appium/app/terminate"), body); err != nil {
		return fmt.Errorf("uia: terminate app: %w", err)
	}
	if _, err := d.client.request(ctx, http.MethodPost,
		d.client.sessionPath("/appium/app/activate"), body); err != nil {
		return fmt.Errorf("uia: activate app: %w", err)
	}
	return nil
}

// CurrentContext returns the active automation context name.
func (d *Driver) CurrentContext(ctx context.Context) (string, error) {
	raw, err := d.client.request(ctx, http.MethodGet, d.client.sessionPath("/context"), nil)
	if err != nil {
		return "", fmt.Errorf("uia: current context: %w", err)
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return "", fmt.Errorf("uia: decode context: %w", err)
	}
	return name, nil
}

// SwitchContext switches the active automation context.
func (d *Driver) SwitchContext(ctx context.Context, name string) error {
	if _, err := d.client.request(ctx, http.MethodPost, d.client.sessionPath("/context"),
		map[string]string{"name": name}); err != nil {
		return fmt.Errorf("uia: switch context: %w", err)
	}
	return nil
}

// classify maps a wire failure onto the driver error taxonomy.
func classify(err error) driver.Kind {
	var pe *protocolError
	if errors.As(err, &pe) {
		switch pe.code {
		case "no such element":
			return driver.KindNotFound
		case "element not interactable", "invalid element state", "element click intercepted":
			return driver.KindNotInteractable
		case "stale element reference":
			return driver.KindStale
		case "timeout", "operation timed out":
			return driver.KindTimeout
		default:
			if pe.status == http.StatusNotFound {
				return driver.KindNotFound
			}
			return driver.KindProtocol
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
		return driver.KindTimeout
	}
	return driver.KindProtocol
}
