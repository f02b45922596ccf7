package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trend-agent/internal/config"
	"github.com/trend-agent/pkg/logger"
	"github.com/trend-agent/pkg/ratelimit"
)

func hfConfig(baseURL string) config.HuggingFaceConfig {
	return config.HuggingFaceConfig{
		APIToken:          "hf-token",
		BaseURL:           baseURL,
		Models:            []string{"HuggingFaceH4/zephyr-7b-beta", "google/gemma-7b-it"},
		UserAgent:         "TrendAgent/2.0",
		Timeout:           5 * time.Second,
		MaxNewTokens:      100,
		Temperature:       0.8,
		TopP:              0.9,
		RepetitionPenalty: 1.5,
	}
}

func TestHuggingFace_Request(t *testing.T) {
	var (
		path, auth, agent string
		body              map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		agent = r.Header.Get("User-Agent")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`[{"generated_text":"Mars is calling 🚀"}]`))
	}))
	defer srv.Close()

	backend := NewHuggingFace(hfConfig(srv.URL), "HuggingFaceH4/zephyr-7b-beta", ratelimit.Unlimited(), logger.Nop())
	text, err := backend.Generate(context.Background(), "Tweet about Mars")
	require.NoError(t, err)

	assert.Equal(t, "Mars is calling 🚀", text)
	assert.Equal(t, "/models/HuggingFaceH4/zephyr-7b-beta", path)
	assert.Equal(t, "Bearer hf-token", auth)
	assert.Equal(t, "TrendAgent/2.0", agent)
	assert.Equal(t, "Tweet about Mars", body["inputs"])

	params := body["parameters"].(map[string]interface{})
	assert.Equal(t, 100.0, params["max_new_tokens"])
	assert.Equal(t, 0.8, params["temperature"])
	assert.Equal(t, 0.9, params["top_p"])
	assert.Equal(t, 1.5, params["repetition_penalty"])
	assert.Equal(t, false, params["return_full_text"])
}

func TestHuggingFace_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		accessDeny bool
	}{
		{"forbidden", http.StatusForbidden, `{"error":"no access"}`, true},
		{"server error", http.StatusServiceUnavailable, `{"error":"loading"}`, false},
		{"malformed json", http.StatusOK, `not json`, false},
		{"empty list", http.StatusOK, `[]`, false},
		{"missing field", http.StatusOK, `[{"text":"hi"}]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			backend := NewHuggingFace(hfConfig(srv.URL), "google/gemma-7b-it", ratelimit.Unlimited(), logger.Nop())
			_, err := backend.Generate(context.Background(), "p")

			require.Error(t, err)
			assert.Equal(t, tt.accessDeny, errors.Is(err, ErrAccessDenied))
		})
	}
}

func TestNewHuggingFaceBackends(t *testing.T) {
	backends := NewHuggingFaceBackends(hfConfig("http://localhost"), ratelimit.Unlimited(), logger.Nop())

	require.Len(t, backends, 2)
	assert.Equal(t, "huggingface:google/gemma-7b-it", backends[1].Name())
}
