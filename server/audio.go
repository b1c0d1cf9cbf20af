package server

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	sessionx "github.com/calyhq/caly-voice-agent/call/session"
)

// handleAudio is the per-call audio stream: the telephony provider
// connects with ?callId=..., sends raw audio as binary frames, and
// receives synthesized audio as binary frames. Socket close ends the
// session.
func (s *Server) handleAudio(c *gin.Context) {
	callID := c.Query("callId")
	if callID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "callId is required"})
		return
	}

	var data sessionx.CallData
	if s.db != nil {
		call, err := s.db.GetCall(c.Request.Context(), callID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		if err != nil {
			log.Error().Err(err).Str("call_id", callID).Msg("could not load call for audio stream")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load call"})
			return
		}
		data.CallerNumber = call.CallerNumber
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("call_id", callID).Msg("websocket upgrade failed")
		return
	}

	log.Info().Str("call_id", callID).Msg("audio websocket connected")

	outbound := newWSAudioSink(conn, callID)

	if _, err := s.registry.Create(c.Request.Context(), callID, data, outbound.write); err != nil {
		log.Error().Err(err).Str("call_id", callID).Msg("could not create call session")
		_ = conn.Close()
		return
	}

	defer func() {
		s.registry.Destroy(context.Background(), callID)
		outbound.close()
		log.Info().Str("call_id", callID).Msg("audio websocket closed")
	}()

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("call_id", callID).Msg("audio websocket read error")
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		s.registry.ProcessIncomingAudio(callID, payload)
	}
}

// wsAudioSink serializes outbound writes; gorilla permits only one
// concurrent writer, and writes after close must be dropped, not fail
// the call.
type wsAudioSink struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	callID string
}

func newWSAudioSink(conn *websocket.Conn, callID string) *wsAudioSink {
	return &wsAudioSink{conn: conn, callID: callID}
}

func (w *wsAudioSink) write(chunk []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		log.Warn().Err(err).Str("call_id", w.callID).Msg("could not write outbound audio")
		w.closed = true
	}
}

func (w *wsAudioSink) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		_ = w.conn.Close()
	}
}
