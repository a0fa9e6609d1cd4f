package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aibrokers/internal/config"
)

func chatCompletionBody(content string) string {
	return fmt.Sprintf(`{
		"id": "chatcmpl-test",
		"object": "chat.completion",
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": %q}, "finish_reason": "stop"}]
	}`, content)
}

func newTestClient(t *testing.T, baseURL string, maxAttempts int) *Client {
	t.Helper()
	client, err := NewClient(config.OpenAIConfig{
		APIKey:      "sk-test",
		BaseURL:     baseURL,
		Model:       "gpt-4o-mini",
		Timeout:     5 * time.Second,
		MaxAttempts: maxAttempts,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func TestDecide(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionBody(`{"action": "hold", "quantity": 0}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/v1", 3)

	got, err := client.Decide(context.Background(), "测试提示词")
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if got != `{"action": "hold", "quantity": 0}` {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestDecideRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionBody("ok"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/v1", 3)

	got, err := client.Decide(context.Background(), "测试提示词")
	if err != nil {
		t.Fatalf("Decide returned error after retries: %v", err)
	}
	if got != "ok" {
		t.Errorf("unexpected content: %q", got)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDecideExhaustsAttempts(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/v1", 2)

	if _, err := client.Decide(context.Background(), "测试提示词"); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(config.OpenAIConfig{Model: "gpt-4o-mini"}, nil); err == nil {
		t.Error("expected error for missing api key")
	}
	if _, err := NewClient(config.OpenAIConfig{APIKey: "sk-test"}, nil); err == nil {
		t.Error("expected error for missing model")
	}
}

func TestBuildPrompts(t *testing.T) {
	technical, err := BuildTechnicalPrompt("BTC", map[string]float64{"rsi_14": 61.2})
	if err != nil {
		t.Fatalf("BuildTechnicalPrompt returned error: %v", err)
	}
	if !strings.Contains(technical, "BTC") || !strings.Contains(technical, "rsi_14") {
		t.Errorf("technical prompt missing inputs: %s", technical)
	}

	sentiment, err := BuildSentimentPrompt(SentimentInput{Pair: "BTC", LongOI: 1200, ShortOI: 800, Ratio: 1.5})
	if err != nil {
		t.Fatalf("BuildSentimentPrompt returned error: %v", err)
	}
	if !strings.Contains(sentiment, "1.5000") {
		t.Errorf("sentiment prompt missing ratio: %s", sentiment)
	}

	portfolio, err := BuildPortfolioPrompt(PortfolioInput{
		Pair:             "BTC",
		TechnicalContent: `{"signal": "bullish"}`,
		SentimentContent: `{"signal": "neutral"}`,
		RiskContent:      `{"max_position_size": 40000}`,
		Cash:             100000,
	})
	if err != nil {
		t.Fatalf("BuildPortfolioPrompt returned error: %v", err)
	}
	if !strings.Contains(portfolio, "max_position_size") || !strings.Contains(portfolio, "100000.00") {
		t.Errorf("portfolio prompt missing inputs: %s", portfolio)
	}
}
