// Package speech implements the live speech-to-speech channel over a
// realtime voice API websocket. The orchestration core consumes it only
// through contract.SpeechSession; the wire shape here is the upstream
// provider's concern.
package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	contractx "github.com/calyhq/caly-voice-agent/call/contract"
)

type Config struct {
	URL            string        `split_words:"true" required:"true"`
	APIKey         string        `split_words:"true" required:"true"`
	Model          string        `split_words:"true" default:"gpt-4o-realtime-preview"`
	Voice          string        `split_words:"true" default:"alloy"`
	Instructions   string        `split_words:"true"`
	ConnectTimeout time.Duration `split_words:"true" default:"15s"`
}

// RealtimeSession is one live upstream voice session. Start dials the
// websocket and configures the session; events are decoded on a read
// pump and surfaced on Events until Stop.
type RealtimeSession struct {
	cfg Config

	writeMu sync.Mutex
	conn    *websocket.Conn

	events   chan contractx.SpeechEvent
	stopOnce sync.Once
	stopped  chan struct{}
	callID   string
}

func NewRealtimeSession(cfg Config) *RealtimeSession {
	return &RealtimeSession{
		cfg:     cfg,
		events:  make(chan contractx.SpeechEvent, 256),
		stopped: make(chan struct{}),
	}
}

// Factory adapts NewRealtimeSession to the contract factory shape.
func Factory(cfg Config) contractx.SpeechSessionFactory {
	return func() contractx.SpeechSession {
		return NewRealtimeSession(cfg)
	}
}

func (s *RealtimeSession) Start(ctx context.Context, callID string) error {
	s.callID = callID

	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.ConnectTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	url := s.cfg.URL + "?model=" + s.cfg.Model
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial realtime api: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial realtime api: %w", err)
	}
	s.conn = conn

	if err := s.send(map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"voice":        s.cfg.Voice,
			"instructions": s.cfg.Instructions,
			"input_audio_transcription": map[string]any{
				"model": "whisper-1",
			},
		},
	}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("configure realtime session: %w", err)
	}

	go s.readPump()

	log.Info().Str("call_id", callID).Msg("realtime speech session started")
	return nil
}

func (s *RealtimeSession) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stopped)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
	return nil
}

func (s *RealtimeSession) SendAudio(chunk []byte) error {
	return s.send(map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(chunk),
	})
}

func (s *RealtimeSession) UpdateContext(text string) error {
	if err := s.send(map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type": "message",
			"role": "system",
			"content": []map[string]any{
				{"type": "input_text", "text": text},
			},
		},
	}); err != nil {
		return err
	}
	return s.send(map[string]any{"type": "response.create"})
}

func (s *RealtimeSession) Events() <-chan contractx.SpeechEvent {
	return s.events
}

func (s *RealtimeSession) send(payload any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return errors.New("realtime session not started")
	}
	return s.conn.WriteJSON(payload)
}

// serverFrame is the subset of upstream event fields the core needs.
type serverFrame struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	Delta      string `json:"delta"`
	Error      struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *RealtimeSession) readPump() {
	defer close(s.events)

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stopped:
			default:
				s.emit(contractx.SpeechEvent{Type: contractx.SpeechError, Err: err})
			}
			return
		}

		var frame serverFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Warn().Err(err).Str("call_id", s.callID).Msg("undecodable realtime frame")
			continue
		}

		switch frame.Type {
		case "input_audio_buffer.speech_started":
			s.emit(contractx.SpeechEvent{Type: contractx.SpeechStarted})
		case "input_audio_buffer.speech_stopped":
			s.emit(contractx.SpeechEvent{Type: contractx.SpeechStopped})
		case "conversation.item.input_audio_transcription.completed":
			s.emit(contractx.SpeechEvent{Type: contractx.UserTranscriptCompleted, Transcript: frame.Transcript})
		case "response.audio_transcript.done":
			s.emit(contractx.SpeechEvent{Type: contractx.AssistTranscriptCompleted, Transcript: frame.Transcript})
		case "response.audio.delta":
			audio, err := base64.StdEncoding.DecodeString(frame.Delta)
			if err != nil {
				log.Warn().Err(err).Str("call_id", s.callID).Msg("undecodable audio delta")
				continue
			}
			s.emit(contractx.SpeechEvent{Type: contractx.AudioOutput, Audio: audio})
		case "error":
			s.emit(contractx.SpeechEvent{Type: contractx.SpeechError, Err: errors.New(frame.Error.Message)})
		}
	}
}

func (s *RealtimeSession) emit(evt contractx.SpeechEvent) {
	select {
	case s.events <- evt:
	case <-s.stopped:
	}
}
