package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hpungsan/larder/internal/config"
)

// openAIChatResponse wraps content in the chat completions response shape.
func openAIChatResponse(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
}

// newMockOpenAI serves body with status, rejecting requests that do not hit
// the chat completions path with the test bearer key.
func newMockOpenAI(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/v1/chat/completions" || r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "bad request: " + r.URL.Path})
			return
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(baseURL, apiKey string) *Client {
	cfg := config.DefaultConfig()
	cfg.OpenAIBaseURL = baseURL
	cfg.OpenAIAPIKey = apiKey
	cfg.OpenAIModel = "gpt-test"
	return NewClient(cfg)
}

func TestClientComplete_Success(t *testing.T) {
	srv := newMockOpenAI(t, http.StatusOK, openAIChatResponse("118"))

	got, err := testClient(srv.URL+"/", "test-key").Complete(context.Background(), "weight of an apple?")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "118" {
		t.Errorf("Complete() = %q, want 118", got)
	}
}

func TestClientComplete_Non2xx(t *testing.T) {
	srv := newMockOpenAI(t, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})

	_, err := testClient(srv.URL, "test-key").Complete(context.Background(), "hi")

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
	if upErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", upErr.StatusCode)
	}
	if !strings.Contains(upErr.Body, "rate limited") {
		t.Errorf("Body = %q", upErr.Body)
	}
}

func TestClientComplete_NoChoices(t *testing.T) {
	srv := newMockOpenAI(t, http.StatusOK, map[string]any{"choices": []any{}})

	_, err := testClient(srv.URL, "test-key").Complete(context.Background(), "hi")

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
}

func TestClientComplete_MissingKey(t *testing.T) {
	_, err := testClient("http://127.0.0.1:1", "").Complete(context.Background(), "hi")

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
}

func TestClientComplete_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := testClient(url, "test-key").Complete(context.Background(), "hi")

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
	if upErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for transport failure", upErr.StatusCode)
	}
}

func TestOracleOverClient(t *testing.T) {
	srv := newMockOpenAI(t, http.StatusOK,
		openAIChatResponse("```json\n{\"calories\":89,\"protein\":1.1,\"carbs\":22.8,\"fats\":0.3,\"sugar\":12.2,\"fiber\":2.6}\n```"))

	o := New(testClient(srv.URL, "test-key"), config.DefaultConfig(), nil)
	got := o.QueryRawNutrition(context.Background(), "banana")
	if got.Status != StatusOK {
		t.Fatalf("Status = %q, want ok", got.Status)
	}
	if got.Data.Calories != 89 {
		t.Errorf("Calories = %v, want 89", got.Data.Calories)
	}
}
