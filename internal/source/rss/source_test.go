package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trend-agent/internal/config"
	"github.com/trend-agent/pkg/logger"
)

const trendsFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:ht="https://trends.google.com/trending/rss">
  <channel>
    <title>Daily Search Trends</title>
    <item>
      <title>Solar Eclipse</title>
      <ht:approx_traffic>500000+</ht:approx_traffic>
    </item>
    <item>
      <title><![CDATA[<b>World  Cup</b>]]></title>
    </item>
    <item>
      <title></title>
    </item>
  </channel>
</rss>`

func TestFetch_ParsesTitlesInOrder(t *testing.T) {
	var gotGeo string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGeo = r.URL.Query().Get("geo")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(trendsFeed))
	}))
	defer srv.Close()

	src := New(config.TrendsConfig{
		GoogleURL: srv.URL + "/trending/rss?geo={region}",
		Timeout:   5 * time.Second,
	}, logger.Nop())

	titles, err := src.Fetch(context.Background(), "GB")
	require.NoError(t, err)

	assert.Equal(t, "GB", gotGeo)
	assert.Equal(t, []string{"Solar Eclipse", "World Cup"}, titles)
	assert.Equal(t, "google", src.Name())
}

func TestFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	src := New(config.TrendsConfig{GoogleURL: srv.URL + "?geo={region}", Timeout: time.Second}, logger.Nop())

	_, err := src.Fetch(context.Background(), "US")
	require.Error(t, err)
}
