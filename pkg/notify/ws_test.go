package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/soundgate-ai/kwd-bridge/pkg/kwd"
)

func wsServer(t *testing.T, got chan detectionMessage) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("Expected websocket accept to succeed, got %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		for {
			var msg detectionMessage
			if err := wsjson.Read(r.Context(), conn, &msg); err != nil {
				return
			}
			got <- msg
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestForwarderPublish(t *testing.T) {
	got := make(chan detectionMessage, 1)
	srv := wsServer(t, got)
	defer srv.Close()

	f := NewForwarder(wsURL(srv))
	defer f.Close()

	det := kwd.Detection{Keyword: "alexa", BeginIndex: 8000, EndIndex: 16000}
	if err := f.Publish(context.Background(), det); err != nil {
		t.Fatalf("Expected publish to succeed, got %v", err)
	}

	select {
	case msg := <-got:
		if msg.Type != "keyword_detected" {
			t.Errorf("Expected message type 'keyword_detected', got %q", msg.Type)
		}
		if msg.Keyword != "alexa" {
			t.Errorf("Expected keyword 'alexa', got %q", msg.Keyword)
		}
		if msg.BeginIndex != 8000 || msg.EndIndex != 16000 {
			t.Errorf("Expected boundaries [8000, 16000), got [%d, %d)", msg.BeginIndex, msg.EndIndex)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the server to receive the detection")
	}
}

func TestForwarderReusesConnection(t *testing.T) {
	got := make(chan detectionMessage, 2)
	srv := wsServer(t, got)
	defer srv.Close()

	f := NewForwarder(wsURL(srv))
	defer f.Close()

	for i := 0; i < 2; i++ {
		if err := f.Publish(context.Background(), kwd.Detection{Keyword: "alexa"}); err != nil {
			t.Fatalf("Expected publish %d to succeed, got %v", i, err)
		}
	}
	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatalf("Expected message %d to arrive", i)
		}
	}
}

func TestForwarderPublishFailsWhenUnreachable(t *testing.T) {
	f := NewForwarder("ws://127.0.0.1:1")
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.Publish(ctx, kwd.Detection{Keyword: "alexa"}); err == nil {
		t.Error("Expected publish to an unreachable endpoint to fail")
	}
}

func TestForwarderObserverSwallowsErrors(t *testing.T) {
	f := NewForwarder("ws://127.0.0.1:1")
	f.timeout = 200 * time.Millisecond
	defer f.Close()

	// Must not panic or block the caller beyond its own timeout.
	f.OnKeywordDetected(kwd.Detection{Keyword: "alexa"})
}

func TestForwarderCloseWithoutConnection(t *testing.T) {
	f := NewForwarder("ws://127.0.0.1:1")
	if err := f.Close(); err != nil {
		t.Errorf("Expected Close before any dial to succeed, got %v", err)
	}
}
