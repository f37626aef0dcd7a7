package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTelegramPublish(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bottoken/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegram(TelegramConfig{BaseURL: srv.URL, Token: "token", ChatID: "42"}, slog.Default())
	n.Publish(context.Background(), EventPaymentReceived, map[string]any{
		"customer": "Asha",
		"amount":   200,
	})

	require.Equal(t, "42", got["chat_id"])
	require.Contains(t, got["text"], EventPaymentReceived)
	require.Contains(t, got["text"], "amount: 200")
}

func TestTelegramPublishNeverPropagatesFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"ok":false,"description":"backend down"}`))
	}))
	defer srv.Close()

	n := NewTelegram(TelegramConfig{BaseURL: srv.URL, Token: "token", ChatID: "42"}, slog.Default())
	// Must not panic or surface the error; the call simply returns.
	n.Publish(context.Background(), EventHealthAlert, map[string]any{"tag": "C-101"})
}

func TestTelegramPublishSkipsWithoutChat(t *testing.T) {
	n := NewTelegram(TelegramConfig{Token: "token"}, slog.Default())
	n.Publish(context.Background(), EventDeliveryCompleted, nil)
}
