package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAPIKeyClient_ValidateCredentials_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("API-Key") != "test-key" {
			t.Errorf("API-Key header = %q, want test-key", r.Header.Get("API-Key"))
		}
		if r.Header.Get("API-Sign") == "" {
			t.Error("API-Sign header is empty")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":[],"result":{"ZUSD":"100.00"}}`))
	}))
	defer server.Close()

	client := NewAPIKeyClient(Descriptor{
		Name:        "kraken",
		Kind:        KindAPIKey,
		ValidateURL: server.URL + "/0/private/Balance",
	}, server.Client(), NewKrakenSigner())

	valid, err := client.ValidateCredentials(context.Background(), "test-key", "dGVzdC1zZWNyZXQ=", "")
	if err != nil {
		t.Fatalf("ValidateCredentials returned error: %v", err)
	}
	if !valid {
		t.Error("expected valid credentials")
	}
}

func TestAPIKeyClient_ValidateCredentials_Rejected(t *testing.T) {
	// 認証拒否・上流エラー・エラー付き2xx・パース不能な2xxはすべて無効扱い
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":["EAPI:Invalid key"]}`},
		{"forbidden", http.StatusForbidden, `{}`},
		{"server error", http.StatusInternalServerError, `{}`},
		{"error in 2xx body", http.StatusOK, `{"error":["EAPI:Invalid signature"]}`},
		{"unparseable body", http.StatusOK, `<html>maintenance</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewAPIKeyClient(Descriptor{
				Name:        "kraken",
				Kind:        KindAPIKey,
				ValidateURL: server.URL + "/0/private/Balance",
			}, server.Client(), NewKrakenSigner())

			valid, err := client.ValidateCredentials(context.Background(), "key", "c2VjcmV0", "")
			if err != nil {
				t.Fatalf("ValidateCredentials returned error: %v", err)
			}
			if valid {
				t.Error("expected invalid credentials")
			}
		})
	}
}

func TestAPIKeyClient_ValidateCredentials_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 即座に閉じて接続エラーを起こす

	client := NewAPIKeyClient(Descriptor{
		Name:        "kraken",
		Kind:        KindAPIKey,
		ValidateURL: server.URL + "/0/private/Balance",
	}, &http.Client{Timeout: time.Second}, NewKrakenSigner())

	valid, err := client.ValidateCredentials(context.Background(), "key", "c2VjcmV0", "")
	if err == nil {
		t.Error("expected transport error")
	}
	if valid {
		t.Error("transport error must not yield valid credentials")
	}
}

func TestBitgetSigner_Headers(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Write([]byte(`{"code":"00000","data":[]}`))
	}))
	defer server.Close()

	client := NewAPIKeyClient(Descriptor{
		Name:               "bitget",
		Kind:               KindAPIKey,
		ValidateURL:        server.URL + "/api/v2/spot/account/assets",
		RequiresPassphrase: true,
	}, server.Client(), NewBitgetSigner())

	valid, err := client.ValidateCredentials(context.Background(), "key", "secret", "my-passphrase")
	if err != nil {
		t.Fatal(err)
	}
	if !valid {
		t.Error("expected valid credentials")
	}

	for _, h := range []string{"Access-Key", "Access-Sign", "Access-Timestamp", "Access-Passphrase"} {
		if gotHeaders.Get(h) == "" {
			t.Errorf("header %s is missing", h)
		}
	}
	if gotHeaders.Get("Access-Passphrase") != "my-passphrase" {
		t.Errorf("Access-Passphrase = %q", gotHeaders.Get("Access-Passphrase"))
	}
}
