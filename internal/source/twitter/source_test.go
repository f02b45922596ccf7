package twitter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trend-agent/internal/config"
	"github.com/trend-agent/pkg/logger"
)

func newTestServer(t *testing.T, trendsHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"app-token","token_type":"bearer"}`))
	})
	mux.HandleFunc("/1.1/trends/place.json", trendsHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestSource(srv *httptest.Server, overrides map[string]int64) *Source {
	s := New(config.TwitterConfig{
		APIKey:    "key",
		APISecret: "secret",
		BaseURL:   srv.URL,
		TokenURL:  srv.URL + "/oauth2/token",
	}, config.TrendsConfig{
		Timeout:        5 * time.Second,
		Retries:        2,
		WOEIDOverrides: overrides,
	}, logger.Nop())
	s.executor = failsafe.With(newRetryPolicy(2, time.Millisecond))
	return s
}

func TestFetch_UsesBearerTokenAndWOEID(t *testing.T) {
	var auth, id string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		id = r.URL.Query().Get("id")
		_, _ = w.Write([]byte(`[{"trends":[{"name":"#Eclipse","tweet_volume":1200},{"name":"Champions League","tweet_volume":null}]}]`))
	})

	names, err := newTestSource(srv, nil).Fetch(context.Background(), "gb")
	require.NoError(t, err)

	assert.Equal(t, "Bearer app-token", auth)
	assert.Equal(t, "23424975", id)
	assert.Equal(t, []string{"#Eclipse", "Champions League"}, names)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"trends":[{"name":"Olympics"}]}]`))
	})

	names, err := newTestSource(srv, nil).Fetch(context.Background(), "US")
	require.NoError(t, err)
	assert.Equal(t, []string{"Olympics"}, names)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetch_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := newTestSource(srv, nil).Fetch(context.Background(), "US")
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetch_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := newTestSource(srv, nil).Fetch(context.Background(), "US")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWOEID(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	s := newTestSource(srv, map[string]int64{"de": 23424829})

	assert.Equal(t, int64(23424977), s.WOEID("US"))
	assert.Equal(t, int64(23424829), s.WOEID("DE"))
	assert.Equal(t, int64(1), s.WOEID("ZZ"))
}
