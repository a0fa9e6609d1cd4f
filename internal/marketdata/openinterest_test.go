package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aibrokers/internal/config"
)

func TestFetchOpenInterest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "copin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		query := string(body)

		if !strings.Contains(query, `"BTC-USDT"`) || !strings.Contains(query, `"OPEN"`) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		total := 567.25
		if strings.Contains(query, `"isLong":{"value":true}`) {
			total = 1234.5
		}
		fmt.Fprintf(w, `{"aggregations":{"total_size":{"value":%f}}}`, total)
	}))
	defer server.Close()

	client, err := NewOpenInterestClient(config.OpenInterestConfig{
		BaseURL:  server.URL,
		Username: "copin",
		Password: "secret",
		Timeout:  5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewOpenInterestClient returned error: %v", err)
	}

	oi, err := client.FetchOpenInterest(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("FetchOpenInterest returned error: %v", err)
	}

	if oi.Long != 1234.5 {
		t.Errorf("expected long=1234.5, got %f", oi.Long)
	}
	if oi.Short != 567.25 {
		t.Errorf("expected short=567.25, got %f", oi.Short)
	}
}

func TestFetchOpenInterestServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewOpenInterestClient(config.OpenInterestConfig{
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewOpenInterestClient returned error: %v", err)
	}

	if _, err := client.FetchOpenInterest(context.Background(), "BTC"); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestNewOpenInterestClientValidation(t *testing.T) {
	if _, err := NewOpenInterestClient(config.OpenInterestConfig{}, nil); err == nil {
		t.Error("expected error for empty base url")
	}
}

func TestOpenInterestRatio(t *testing.T) {
	if got := (OpenInterest{Long: 1200, Short: 800}).Ratio(); got != 1.5 {
		t.Errorf("expected ratio=1.5, got %f", got)
	}
	if got := (OpenInterest{Long: 1200}).Ratio(); got != 0 {
		t.Errorf("expected zero ratio when short side is empty, got %f", got)
	}
}
