package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pithecene-io/vantage/ipc"
	"github.com/pithecene-io/vantage/lode"
	"github.com/pithecene-io/vantage/runtime"
	"github.com/pithecene-io/vantage/types"
)

// CreateSessionRequest is the optional body of POST /api/sessions.
type CreateSessionRequest struct {
	SessionID string `json:"session_id"`
	ChatID    string `json:"chat_id"`
}

// NavigateRequest is the body of POST /api/sessions/:id/navigate.
type NavigateRequest struct {
	ChatID string `json:"chatId" binding:"required"`
}

// SelectRequest is the body of POST /api/sessions/:id/select.
type SelectRequest struct {
	ID string `json:"id" binding:"required"`
}

// PartsResponse reports the outcome of POST /api/sessions/:id/parts.
type PartsResponse struct {
	Accepted int   `json:"accepted"`
	Skipped  int   `json:"skipped"`
	Seq      int64 `json:"seq"`
}

// health handles GET /healthz
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.registry.Len(),
		"version":  types.Version,
	})
}

// listSessions handles GET /api/sessions
func (s *Server) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.registry.IDs()})
}

// createSession handles POST /api/sessions. An empty body creates a
// session with a random id.
func (s *Server) createSession(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.SessionID == "" {
		req.SessionID = types.NewSessionID()
	}
	if _, exists := s.registry.Get(req.SessionID); exists {
		c.JSON(http.StatusConflict, gin.H{"error": "session already exists"})
		return
	}

	h, _ := s.hubFor(req.SessionID, true)
	if req.ChatID != "" {
		if err := h.navigate(c.Request.Context(), req.ChatID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	h.logger.Info("session created", map[string]any{"chat_id": req.ChatID})
	c.JSON(http.StatusCreated, h.view())
}

// getSession handles GET /api/sessions/:id
func (s *Server) getSession(c *gin.Context) {
	h, ok := s.existing(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.view())
}

// deleteSession handles DELETE /api/sessions/:id
func (s *Server) deleteSession(c *gin.Context) {
	if !s.registry.Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// postParts handles POST /api/sessions/:id/parts. The body is JSONL, one
// data part per line. Lines that are not data parts are skipped; the
// session is created on first use.
func (s *Server) postParts(c *gin.Context) {
	h, _ := s.hubFor(c.Param("id"), true)
	ctx := c.Request.Context()
	dec := ipc.NewLineDecoder(c.Request.Body)

	var resp PartsResponse
	for {
		part, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.config.Collector.IncDecodeErrors()
			if ipc.IsFatalFrameError(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "accepted": resp.Accepted})
				return
			}
			resp.Skipped++
			continue
		}
		if err := h.engine.Ingest(ctx, *part); err != nil {
			status := http.StatusBadRequest
			if runtime.IsPolicyError(err) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"error": err.Error(), "accepted": resp.Accepted})
			return
		}
		resp.Accepted++
	}

	resp.Seq = h.engine.CurrentSeq()
	c.JSON(http.StatusOK, resp)
}

// navigate handles POST /api/sessions/:id/navigate
func (s *Server) navigate(c *gin.Context) {
	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h, _ := s.hubFor(c.Param("id"), true)
	if err := h.navigate(c.Request.Context(), req.ChatID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.view())
}

// selectArtifact handles POST /api/sessions/:id/select
func (s *Server) selectArtifact(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h, ok := s.existing(c)
	if !ok {
		return
	}
	if !h.selectArtifact(req.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not in history"})
		return
	}
	c.JSON(http.StatusOK, h.view())
}

// reset handles POST /api/sessions/:id/reset
func (s *Server) reset(c *gin.Context) {
	h, ok := s.existing(c)
	if !ok {
		return
	}
	h.reset()
	c.JSON(http.StatusOK, h.view())
}

// dismiss handles POST /api/sessions/:id/dismiss
func (s *Server) dismiss(c *gin.Context) {
	h, ok := s.existing(c)
	if !ok {
		return
	}
	h.panel.Dismiss()
	h.broadcastView()
	c.JSON(http.StatusOK, h.view())
}

// open handles POST /api/sessions/:id/open
func (s *Server) open(c *gin.Context) {
	h, ok := s.existing(c)
	if !ok {
		return
	}
	h.panel.Open()
	h.broadcastView()
	c.JSON(http.StatusOK, h.view())
}

// render handles GET /api/sessions/:id/render. It draws the current
// artifact as terminal text; an empty session renders as an empty body.
func (s *Server) render(c *gin.Context) {
	h, ok := s.existing(c)
	if !ok {
		return
	}
	view := h.selector.Select(h.sess.Provider.State())
	c.String(http.StatusOK, view.Render())
}

// archive handles GET /api/sessions/:id/archive
func (s *Server) archive(c *gin.Context) {
	if s.config.Archive == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "no archive configured"})
		return
	}
	snaps, err := s.config.Archive.QueryHistory(c.Request.Context(), c.Param("id"))
	if errors.Is(err, lode.ErrNoHistory) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": c.Param("id"), "artifacts": snaps})
}

// existing looks up the hub of an existing session, replying 404 if absent.
func (s *Server) existing(c *gin.Context) (*hub, bool) {
	h, ok := s.hubFor(c.Param("id"), false)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return h, true
}
