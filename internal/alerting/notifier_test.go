package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vegas-max/Titan2.0/internal/matrix"
	"github.com/vegas-max/Titan2.0/internal/quote"
	"github.com/vegas-max/Titan2.0/internal/ranker"
)

func sampleNotification() Notification {
	return Notification{
		ScannedAt:    time.Now(),
		MinTarScore:  85.0,
		TotalScanned: 4,
		Routes: []ranker.ScoredRoute{
			{
				Record: matrix.RouteRecord{
					ChainOrigin:    1,
					ChainDest:      42161,
					NativeToken:    "USDC",
					BridgeProtocol: "STARGATE",
				},
				Quote:    quote.Snapshot{SpreadPercentage: 1.84},
				TarScore: 94.25,
			},
		},
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if !strings.Contains(received["text"], "USDC") {
		t.Fatalf("message should mention the token, got %q", received["text"])
	}
	if !strings.Contains(received["text"], "STARGATE") {
		t.Fatalf("message should mention the bridge, got %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("ok=false should produce an error")
	}
}

func TestRenderMessageTruncatesLongLists(t *testing.T) {
	note := sampleNotification()
	for i := 0; i < 7; i++ {
		note.Routes = append(note.Routes, note.Routes[0])
	}
	note.TotalScanned = 20

	text := renderMessage(note)
	if !strings.Contains(text, "and 3 more") {
		t.Fatalf("expected truncation marker, got %q", text)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
