package server

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"service":      "caly-voice-agent",
		"active_calls": s.registry.Count(),
	})
}

type callStartRequest struct {
	CallID       string `json:"call_id" binding:"required"`
	CallerNumber string `json:"caller_number"`
}

// handleCallStart records the call ahead of the audio websocket; the
// telephony provider fires it when the call is answered.
func (s *Server) handleCallStart(c *gin.Context) {
	var req callStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "call_id is required"})
		return
	}

	if s.db != nil {
		if _, err := s.db.CreateCall(c.Request.Context(), req.CallID, req.CallerNumber); err != nil {
			log.Error().Err(err).Str("call_id", req.CallID).Msg("could not record call start")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record call"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"call_id": req.CallID})
}

type callEndRequest struct {
	CallID string `json:"call_id" binding:"required"`
}

func (s *Server) handleCallEnd(c *gin.Context) {
	var req callEndRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "call_id is required"})
		return
	}
	s.registry.Destroy(c.Request.Context(), req.CallID)
	c.JSON(http.StatusOK, gin.H{"call_id": req.CallID})
}

func (s *Server) handleListCalls(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	calls, err := s.db.ListCalls(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("could not list calls")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list calls"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": calls})
}

func (s *Server) handleGetCall(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence disabled"})
		return
	}
	callID := c.Param("id")

	call, err := s.db.GetCall(c.Request.Context(), callID)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("call_id", callID).Msg("could not load call")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load call"})
		return
	}

	turns, err := s.db.ListTurns(c.Request.Context(), callID)
	if err != nil {
		log.Error().Err(err).Str("call_id", callID).Msg("could not load transcript turns")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load transcript"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"call": call, "turns": turns})
}

func (s *Server) handleListActions(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence disabled"})
		return
	}
	callID := c.Param("id")
	actions, err := s.db.ListActions(c.Request.Context(), callID)
	if err != nil {
		log.Error().Err(err).Str("call_id", callID).Msg("could not list actions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list actions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions})
}
