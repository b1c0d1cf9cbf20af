package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	contractx "github.com/calyhq/caly-voice-agent/call/contract"
	sessionx "github.com/calyhq/caly-voice-agent/call/session"
)

type fakeSpeech struct {
	mu       sync.Mutex
	events   chan contractx.SpeechEvent
	sent     [][]byte
	stopOnce sync.Once

	startErr error
}

func newFakeSpeech() *fakeSpeech {
	return &fakeSpeech{events: make(chan contractx.SpeechEvent, 16)}
}

func (f *fakeSpeech) Start(context.Context, string) error { return f.startErr }

func (f *fakeSpeech) Stop(context.Context) error {
	f.stopOnce.Do(func() { close(f.events) })
	return nil
}

func (f *fakeSpeech) SendAudio(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), chunk...))
	return nil
}

func (f *fakeSpeech) UpdateContext(string) error { return nil }

func (f *fakeSpeech) Events() <-chan contractx.SpeechEvent { return f.events }

func (f *fakeSpeech) sentChunks() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

type noopClassifier struct{}

func (noopClassifier) Classify(context.Context, string, []contractx.Turn) (contractx.IntentDecision, error) {
	return contractx.IntentDecision{Intent: "general_chat"}, nil
}

type noopCoordinator struct{}

func (noopCoordinator) Launch(string, contractx.AgentType, map[string]string, contractx.AgentEvents) error {
	return nil
}
func (noopCoordinator) Update(string, map[string]string) {}
func (noopCoordinator) Cancel(string)                    {}

// newTestServer wires a server around fakes; each registry Create hands
// out the next queued speech session.
func newTestServer(t *testing.T, speeches ...*fakeSpeech) *Server {
	t.Helper()

	var mu sync.Mutex
	queue := append([]*fakeSpeech(nil), speeches...)
	factory := func() contractx.SpeechSession {
		mu.Lock()
		defer mu.Unlock()
		if len(queue) == 0 {
			panic("no fake speech session queued")
		}
		next := queue[0]
		queue = queue[1:]
		return next
	}

	registry, err := sessionx.NewRegistry(sessionx.Deps{
		SpeechFactory: factory,
		Classifier:    noopClassifier{},
		Coordinator:   noopCoordinator{},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	return New(Config{}, registry, nil)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("health status = %v, want ok", body["status"])
	}
	if body["active_calls"] != float64(0) {
		t.Fatalf("active_calls = %v, want 0", body["active_calls"])
	}
}

func TestCallStartRequiresCallID(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telephony/call-start",
		bytes.NewBufferString(`{"caller_number":"+911234567890"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCallEndDestroysSession(t *testing.T) {
	t.Parallel()

	speech := newFakeSpeech()
	srv := newTestServer(t, speech)

	if _, err := srv.registry.Create(context.Background(), "call-1", sessionx.CallData{}, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telephony/call-end",
		bytes.NewBufferString(`{"call_id":"call-1"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := srv.registry.Count(); got != 0 {
		t.Fatalf("registry count = %d, want 0", got)
	}
}

func TestListCallsWithoutPersistence(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/calls", nil)
	srv.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestAudioRequiresCallID(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/audio", nil)
	srv.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAudioWebsocketRoundTrip(t *testing.T) {
	t.Parallel()

	speech := newFakeSpeech()
	srv := newTestServer(t, speech)

	httpServer := httptest.NewServer(srv.engine)
	t.Cleanup(httpServer.Close)

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/audio?callId=call-ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial audio websocket: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	waitFor(t, func() bool { return srv.registry.Count() == 1 }, "session never registered")

	// Inbound: binary frames reach the speech channel.
	inbound := []byte{0x01, 0x02, 0x03}
	if err := conn.WriteMessage(websocket.BinaryMessage, inbound); err != nil {
		t.Fatalf("write inbound audio: %v", err)
	}
	waitFor(t, func() bool { return len(speech.sentChunks()) == 1 }, "inbound audio never relayed")
	if !bytes.Equal(speech.sentChunks()[0], inbound) {
		t.Fatalf("relayed chunk = %v, want %v", speech.sentChunks()[0], inbound)
	}

	// Outbound: synthesized audio events come back as binary frames.
	outbound := []byte{0x0a, 0x0b}
	speech.events <- contractx.SpeechEvent{Type: contractx.AudioOutput, Audio: outbound}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read outbound audio: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("outbound message type = %d, want binary", msgType)
	}
	if !bytes.Equal(payload, outbound) {
		t.Fatalf("outbound payload = %v, want %v", payload, outbound)
	}

	// Socket close tears the session down.
	conn.Close()
	waitFor(t, func() bool { return srv.registry.Count() == 0 }, "session never destroyed after close")
}

func TestAudioDuplicateCallRejected(t *testing.T) {
	t.Parallel()

	first := newFakeSpeech()
	srv := newTestServer(t, first)

	httpServer := httptest.NewServer(srv.engine)
	t.Cleanup(httpServer.Close)

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/audio?callId=call-dup"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial first audio websocket: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	waitFor(t, func() bool { return srv.registry.Count() == 1 }, "first session never registered")

	// The duplicate upgrades, then the server closes it when Create fails.
	dup, dupResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial duplicate audio websocket: %v", err)
	}
	if dupResp != nil {
		dupResp.Body.Close()
	}
	t.Cleanup(func() { dup.Close() })

	dup.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := dup.ReadMessage(); err == nil {
		t.Fatal("duplicate connection stayed open, want close")
	}

	if got := srv.registry.Count(); got != 1 {
		t.Fatalf("registry count = %d, want 1", got)
	}
}
