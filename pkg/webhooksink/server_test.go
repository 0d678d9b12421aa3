package webhooksink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":              "/",
		"/":             "/",
		"//":            "/",
		"/hook":         "/hook",
		"/hook/":        "/hook",
		"/hook///":      "/hook",
		"hook":          "/hook",
		"/max/webhook/": "/max/webhook",
	}
	for input, want := range cases {
		assert.Equal(t, want, NormalizePath(input), "input %q", input)
	}
}

func TestNormalizePathIdempotent(t *testing.T) {
	for _, path := range []string{"", "/", "hook/", "/a/b///"} {
		once := NormalizePath(path)
		assert.Equal(t, once, NormalizePath(once))
	}
}

func startSink(t *testing.T, targets map[string]*Target) *Server {
	t.Helper()
	s := NewServer("127.0.0.1:0", zerolog.Nop())
	for path, target := range targets {
		require.NoError(t, s.Register(path, target))
	}
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s
}

func postJSON(t *testing.T, url, secret, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestDeliverySucceeds(t *testing.T) {
	var got []byte
	s := startSink(t, map[string]*Target{
		"/hook": {Account: "default", Secret: "s3cret", Handler: func(ctx context.Context, body []byte) error {
			got = body
			return nil
		}},
	})

	resp := postJSON(t, "http://"+s.Addr()+"/hook", "s3cret", `{"update_type":"message_created"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.Equal(t, `{"update_type":"message_created"}`, string(got))
}

func TestTrailingSlashRoutesToSameTarget(t *testing.T) {
	calls := 0
	s := startSink(t, map[string]*Target{
		"/hook/": {Account: "default", Handler: func(ctx context.Context, body []byte) error {
			calls++
			return nil
		}},
	})

	resp := postJSON(t, "http://"+s.Addr()+"/hook", "", `{}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestNonPOSTGets405WithAllow(t *testing.T) {
	s := startSink(t, map[string]*Target{
		"/hook": {Account: "default", Handler: func(ctx context.Context, body []byte) error { return nil }},
	})

	resp, err := http.Get("http://" + s.Addr() + "/hook")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
}

func TestBadSecretGets401(t *testing.T) {
	s := startSink(t, map[string]*Target{
		"/hook": {Account: "default", Secret: "right", Handler: func(ctx context.Context, body []byte) error { return nil }},
	})

	resp := postJSON(t, "http://"+s.Addr()+"/hook", "wrong", `{}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, "http://"+s.Addr()+"/hook", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMalformedBodyGets400(t *testing.T) {
	s := startSink(t, map[string]*Target{
		"/hook": {Account: "default", Handler: func(ctx context.Context, body []byte) error { return nil }},
	})

	resp := postJSON(t, "http://"+s.Addr()+"/hook", "", "not json at all")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNonObjectBodyGets400(t *testing.T) {
	invoked := false
	s := startSink(t, map[string]*Target{
		"/hook": {Account: "default", Handler: func(ctx context.Context, body []byte) error {
			invoked = true
			return nil
		}},
	})

	// updates are JSON objects; a top-level array is not one
	resp := postJSON(t, "http://"+s.Addr()+"/hook", "", `[1,2,3]`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, invoked)
}

func TestOversizeBodyGets413(t *testing.T) {
	s := startSink(t, map[string]*Target{
		"/hook": {Account: "default", Handler: func(ctx context.Context, body []byte) error { return nil }},
	})

	big := "{\"pad\":\"" + strings.Repeat("x", MaxBodySize) + "\"}"
	resp := postJSON(t, "http://"+s.Addr()+"/hook", "", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestHandlerErrorGets500(t *testing.T) {
	s := startSink(t, map[string]*Target{
		"/hook": {Account: "default", Handler: func(ctx context.Context, body []byte) error {
			return fmt.Errorf("boom")
		}},
	})

	resp := postJSON(t, "http://"+s.Addr()+"/hook", "", `{}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandlerPanicGets500(t *testing.T) {
	s := startSink(t, map[string]*Target{
		"/hook": {Account: "default", Handler: func(ctx context.Context, body []byte) error {
			panic("bad payload")
		}},
	})

	resp := postJSON(t, "http://"+s.Addr()+"/hook", "", `{}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestUnknownPathGets401(t *testing.T) {
	s := startSink(t, map[string]*Target{
		"/hook": {Account: "default", Handler: func(ctx context.Context, body []byte) error { return nil }},
	})

	// an unregistered path is rejected exactly like a bad secret
	resp := postJSON(t, "http://"+s.Addr()+"/other", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSharedPathRoutesBySecret(t *testing.T) {
	var hit string
	handler := func(name string) Handler {
		return func(ctx context.Context, body []byte) error {
			hit = name
			return nil
		}
	}
	s := startSink(t, map[string]*Target{})
	require.NoError(t, s.Register("/hook", &Target{Account: "a", Secret: "sa", Handler: handler("a")}))
	require.NoError(t, s.Register("/hook", &Target{Account: "b", Secret: "sb", Handler: handler("b")}))

	resp := postJSON(t, "http://"+s.Addr()+"/hook", "sb", `{}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "b", hit)
}

func TestRegisterDuplicateAccountFails(t *testing.T) {
	s := NewServer("127.0.0.1:0", zerolog.Nop())
	require.NoError(t, s.Register("/hook", &Target{Account: "a"}))
	assert.Error(t, s.Register("/hook/", &Target{Account: "a"}))
}

func TestUnregister(t *testing.T) {
	s := startSink(t, map[string]*Target{
		"/hook": {Account: "a", Handler: func(ctx context.Context, body []byte) error { return nil }},
	})

	s.Unregister("/hook/", "a")
	resp := postJSON(t, "http://"+s.Addr()+"/hook", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStalledBodyGets408(t *testing.T) {
	s := NewServer("127.0.0.1:0", zerolog.Nop())
	s.readTimeout = 100 * time.Millisecond
	require.NoError(t, s.Register("/hook", &Target{
		Account: "a",
		Handler: func(ctx context.Context, body []byte) error { return nil },
	}))
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})

	// send headers promising a body, then stall
	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()
	_, err = fmt.Fprintf(conn, "POST /hook HTTP/1.1\r\nHost: sink\r\nContent-Type: application/json\r\nContent-Length: 100\r\n\r\n{")
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestTimeout, resp.StatusCode)
}

func TestSlowHandlerGets500(t *testing.T) {
	s := NewServer("127.0.0.1:0", zerolog.Nop())
	require.NoError(t, s.Register("/hook", &Target{
		Account: "a",
		Handler: func(ctx context.Context, body []byte) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.handle(rec, req)

	// a callback that outlives its budget is a server-side failure
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
