// internal/driver/uia/client_test.go
package uia

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/halcyonqa/halcyon/internal/driver"
	"github.com/halcyonqa/halcyon/internal/locator"
)

// fakeServer is a minimal wire-protocol endpoint backed by a mux.
func fakeServer(t *testing.T, register func(mux *http.ServeMux)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":{"ready":true}}`)
	})
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sessionId":"sess-1","value":{}}`)
	})
	register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testOptions(baseURL string) Options {
	return Options{
		BaseURL:        baseURL,
		RequestTimeout: 2 * time.Second,
		ConnectRetries: 1,
		FindTimeout:    200 * time.Millisecond,
		PollInterval:   20 * time.Millisecond,
	}
}

func connectedClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c := NewClient(testOptions(srv.URL), zap.NewNop())
	require.NoError(t, c.Connect(context.Background(), map[string]any{"platformName": "Android"}))
	require.Equal(t, "sess-1", c.SessionID())
	return c
}

func TestConnectRetriesUntilSessionCreated(t *testing.T) {
	var failures atomic.Int32
	failures.Store(2)

	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":{"ready":true}}`)
	})
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		if failures.Add(-1) >= 0 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"value":{"error":"session not created","message":"device busy"}}`)
			return
		}
		fmt.Fprint(w, `{"sessionId":"sess-1","value":{}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.ConnectRetries = 5
	c := NewClient(opts, zap.NewNop())
	require.NoError(t, c.Connect(context.Background(), nil))
	assert.Equal(t, "sess-1", c.SessionID())
}

func TestHealthy(t *testing.T) {
	srv := fakeServer(t, func(*http.ServeMux) {})
	c := NewClient(testOptions(srv.URL), zap.NewNop())
	assert.True(t, c.Healthy(context.Background()))

	c2 := NewClient(testOptions("http://127.0.0.1:1"), zap.NewNop())
	assert.False(t, c2.Healthy(context.Background()))
}

func TestCloseIsIdempotent(t *testing.T) {
	deletes := 0
	srv := fakeServer(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/session/sess-1", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodDelete {
				deletes++
			}
			fmt.Fprint(w, `{"value":null}`)
		})
	})
	c := connectedClient(t, srv)

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, 1, deletes)
	assert.Empty(t, c.SessionID())
}

func TestFindElementDecodesW3CAndLegacyRefs(t *testing.T) {
	payloads := []string{
		`{"value":{"element-6066-11e4-a52e-4f735466cecf":"el-1"}}`,
		`{"value":{"ELEMENT":"el-1"}}`,
	}
	for _, payload := range payloads {
		srv := fakeServer(t, func(mux *http.ServeMux) {
			mux.HandleFunc("/session/sess-1/element", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, payload)
			})
		})
		d := NewDriver(connectedClient(t, srv), "com.example.app")

		h, err := d.FindElement(context.Background(), locator.ByID("com.app:id/btn"))
		require.NoError(t, err)
		assert.Equal(t, "el-1", h.ID)
	}
}

func TestFindElementPollsThenTimesOutAsNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := fakeServer(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/session/sess-1/element", func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"value":{"error":"no such element","message":"not found"}}`)
		})
	})
	d := NewDriver(connectedClient(t, srv), "com.example.app")

	_, err := d.FindElement(context.Background(), locator.ByID("com.app:id/missing"))
	require.Error(t, err)
	assert.Equal(t, driver.KindNotFound, driver.KindOf(err))
	assert.Greater(t, calls.Load(), int32(1), "find must poll before giving up")
}

func TestPerformActionClassifiesWireErrors(t *testing.T) {
	srv := fakeServer(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/session/sess-1/element/el-1/click", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"value":{"error":"element not interactable","message":"obscured"}}`)
		})
	})
	d := NewDriver(connectedClient(t, srv), "com.example.app")

	_, err := d.PerformAction(context.Background(), driver.Handle{ID: "el-1"}, driver.ActionClick, nil)
	require.Error(t, err)
	assert.Equal(t, driver.KindNotInteractable, driver.KindOf(err))
}

func TestPerformActionGetText(t *testing.T) {
	srv := fakeServer(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/session/sess-1/element/el-1/text", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"value":"Welcome"}`)
		})
	})
	d := NewDriver(connectedClient(t, srv), "com.example.app")

	res, err := d.PerformAction(context.Background(), driver.Handle{ID: "el-1"}, driver.ActionGetText, nil)
	require.NoError(t, err)
	assert.Equal(t, "Welcome", res.Value)
}

func TestTypeTextClearsThenTypes(t *testing.T) {
	var sequence []string
	srv := fakeServer(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/session/sess-1/element/el-1/clear", func(w http.ResponseWriter, r *http.Request) {
			sequence = append(sequence, "clear")
			fmt.Fprint(w, `{"value":null}`)
		})
		mux.HandleFunc("/session/sess-1/element/el-1/value", func(w http.ResponseWriter, r *http.Request) {
			sequence = append(sequence, "value")
			fmt.Fprint(w, `{"value":null}`)
		})
	})
	d := NewDriver(connectedClient(t, srv), "com.example.app")

	_, err := d.PerformAction(context.Background(), driver.Handle{ID: "el-1"},
		driver.ActionTypeText, driver.Args{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"clear", "value"}, sequence)
}

func TestStaleWireErrorMapsToStaleKind(t *testing.T) {
	srv := fakeServer(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/session/sess-1/element/el-1/click", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"value":{"error":"stale element reference","message":"gone"}}`)
		})
	})
	d := NewDriver(connectedClient(t, srv), "com.example.app")

	_, err := d.PerformAction(context.Background(), driver.Handle{ID: "el-1"}, driver.ActionClick, nil)
	require.Error(t, err)
	assert.Equal(t, driver.KindStale, driver.KindOf(err))
}

func TestWireSelectorMapsStrategies(t *testing.T) {
	using, value, err := wireSelector(locator.ByText("Login"))
	require.NoError(t, err)
	assert.Equal(t, "xpath", using)
	assert.Equal(t, `//*[@text="Login"]`, value)

	using, _, err = wireSelector(locator.ByAccessibilityID("login_button"))
	require.NoError(t, err)
	assert.Equal(t, "accessibility id", using)

	_, _, err = wireSelector(locator.New("bogus", "x"))
	assert.Error(t, err)
}

func TestRestartAppTerminatesThenActivates(t *testing.T) {
	var sequence []string
	srv := fakeServer(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/session/sess-1/appium/app/terminate", func(w http.ResponseWriter, r *http.Request) {
			sequence = append(sequence, "terminate")
			fmt.Fprint(w, `{"value":true}`)
		})
		mux.HandleFunc("/session/sess-1/appium/app/activate", func(w http.ResponseWriter, r *http.Request) {
			sequence = append(sequence, "activate")
			fmt.Fprint(w, `{"value":null}`)
		})
	})
	d := NewDriver(connectedClient(t, srv), "com.example.app")

	require.NoError(t, d.RestartApp(context.Background()))
	assert.Equal(t, []string{"terminate", "activate"}, sequence)
}
