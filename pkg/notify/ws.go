// Package notify forwards keyword detections to a host endpoint over a
// websocket connection.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/soundgate-ai/kwd-bridge/pkg/kwd"
)

// detectionMessage is the wire shape of one forwarded detection.
type detectionMessage struct {
	Type       string `json:"type"`
	Keyword    string `json:"keyword"`
	BeginIndex uint64 `json:"begin_index"`
	EndIndex   uint64 `json:"end_index"`
}

// Forwarder publishes detections to a websocket endpoint. It dials lazily on
// the first publish and redials after a failed write. Forwarder implements
// kwd.KeywordObserver, so it can be registered directly on a detector.
type Forwarder struct {
	url     string
	timeout time.Duration
	logger  kwd.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewForwarder(url string) *Forwarder {
	return NewForwarderWithLogger(url, &kwd.NoOpLogger{})
}

func NewForwarderWithLogger(url string, logger kwd.Logger) *Forwarder {
	if logger == nil {
		logger = &kwd.NoOpLogger{}
	}
	return &Forwarder{
		url:     url,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

func (f *Forwarder) getConn(ctx context.Context) (*websocket.Conn, error) {
	if f.conn != nil {
		return f.conn, nil
	}
	conn, _, err := websocket.Dial(ctx, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("notify: connecting to %s failed: %w", f.url, err)
	}
	f.conn = conn
	return conn, nil
}

// Publish sends one detection, dialing if necessary.
func (f *Forwarder) Publish(ctx context.Context, d kwd.Detection) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	conn, err := f.getConn(ctx)
	if err != nil {
		return err
	}

	msg := detectionMessage{
		Type:       "keyword_detected",
		Keyword:    d.Keyword,
		BeginIndex: d.BeginIndex,
		EndIndex:   d.EndIndex,
	}
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		f.conn = nil
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return fmt.Errorf("notify: sending detection failed: %w", err)
	}
	return nil
}

// OnKeywordDetected implements kwd.KeywordObserver. Publish failures are
// logged and swallowed so a flaky endpoint never stalls the trigger loop.
func (f *Forwarder) OnKeywordDetected(d kwd.Detection) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	if err := f.Publish(ctx, d); err != nil {
		f.logger.Error("forwarding detection failed", "error", err)
	}
}

func (f *Forwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		err := f.conn.Close(websocket.StatusNormalClosure, "")
		f.conn = nil
		return err
	}
	return nil
}
