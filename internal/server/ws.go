package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/productassist/internal/logging"
	"github.com/ziadkadry99/productassist/internal/session"
)

// chatRequest is the incoming websocket message format.
type chatRequest struct {
	SessionID    string `json:"session_id"` // empty to start a new session
	Question     string `json:"question"`
	ClearHistory bool   `json:"clear_history"`
}

// chatResponse is the outgoing websocket message format.
type chatResponse struct {
	Type      string `json:"type"` // "answer" or "error"
	SessionID string `json:"session_id"`
	Question  string `json:"question,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Answer    any    `json:"answer,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	u := &websocket.Upgrader{}
	if s.cfg.AllowAll {
		u.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return u
}

// handleWebSocket answers each message through the same coordinator as
// /ask_question. Messages are handled concurrently, so a newer question
// for a session supersedes one still being answered.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context()).With("component", "server")
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	var (
		wg      sync.WaitGroup
		writeMu sync.Mutex
	)
	defer func() {
		cancel()
		wg.Wait()
	}()
	send := func(resp chatResponse) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(resp); err != nil {
			log.Warn("websocket write failed", "error", err)
		}
	}

	var defaultSession string
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read failed", "error", err)
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			send(chatResponse{Type: "error", Detail: "invalid message format"})
			continue
		}
		if strings.TrimSpace(req.SessionID) == "" {
			if defaultSession == "" {
				defaultSession = session.NewID()
			}
			req.SessionID = defaultSession
		}
		if strings.TrimSpace(req.Question) == "" {
			send(chatResponse{Type: "error", SessionID: req.SessionID, Detail: "question is required"})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			send(s.answerChat(ctx, req))
		}()
	}
}

func (s *Server) answerChat(ctx context.Context, req chatRequest) chatResponse {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	res, err := s.asker.Submit(ctx, req.SessionID, req.Question, req.ClearHistory)
	if err != nil {
		appErr := toAppError(err)
		if appErr.StatusCode >= 500 {
			logging.FromContext(ctx).Error("chat question failed", "component", "server", "error", err)
		}
		return chatResponse{Type: "error", SessionID: req.SessionID, Question: req.Question, Detail: appErr.Message}
	}
	return chatResponse{Type: "answer", SessionID: req.SessionID, Question: req.Question, Answer: newAskResponse(res)}
}
