package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coursewright/coursewright/internal/artifact"
	"github.com/coursewright/coursewright/internal/domain"
	"github.com/coursewright/coursewright/internal/generate"
)

// generateTimeout is the maximum duration for a content generation call.
const generateTimeout = 5 * time.Minute

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: s.version})
}

type createSessionRequest struct {
	UserID      int64          `json:"user_id"`
	ContextType string         `json:"context_type"`
	Title       string         `json:"title,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	sess, err := s.manager.Create(r.Context(), req.UserID, req.ContextType, req.Metadata)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if req.Title != "" {
		sess.SetTitle(req.Title)
	}

	if err := s.manager.Save(r.Context(), sess); err != nil {
		writeDomainError(w, err)
		return
	}

	s.broadcast("created", sess.SessionID, map[string]any{
		"user_id":      sess.UserID,
		"context_type": sess.ContextType,
	})
	writeJSON(w, http.StatusCreated, sess.Summarize())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if _, err := fmt.Sscanf(r.URL.Query().Get("user_id"), "%d", &userID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_params", "user_id query parameter is required")
		return
	}
	contextType := r.URL.Query().Get("context_type")

	summaries, err := s.manager.UserSessions(r.Context(), userID, contextType)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Summarize())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.manager.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	s.broadcast("deleted", id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.manager.ForceSave(r.Context(), sess); err != nil {
		writeDomainError(w, err)
		return
	}
	s.broadcast("saved", sess.SessionID, nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"saved":      true,
		"last_saved": sess.LastSaved,
	})
}

type addMessageRequest struct {
	Type     string         `json:"type"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Generate bool           `json:"generate,omitempty"`
	System   string         `json:"system,omitempty"`
}

type addMessageResponse struct {
	Message  domain.Message  `json:"message"`
	Reply    *domain.Message `json:"reply,omitempty"`
	State    domain.State    `json:"current_state"`
	Progress float64         `json:"progress"`
}

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req addMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	// History for generation is the conversation before this turn.
	history := conversationTurns(sess.Messages())

	msg, err := sess.AddMessage(domain.MessageType(req.Type), req.Content, req.Metadata)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.broadcast("message_added", sess.SessionID, map[string]any{
		"message_id": msg.ID,
		"type":       string(msg.Type),
	})

	resp := addMessageResponse{Message: msg}

	if req.Generate {
		reply, err := s.generateReply(r, sess, req, history)
		if err != nil {
			// The user turn is already recorded; persist it before failing.
			if saveErr := s.manager.Save(r.Context(), sess); saveErr != nil {
				s.log.Warn().Err(saveErr).Str("sessionId", sess.SessionID).Msg("saving user turn failed")
			}
			writeDomainError(w, err)
			return
		}
		resp.Reply = &reply
		s.broadcast("message_added", sess.SessionID, map[string]any{
			"message_id": reply.ID,
			"type":       string(reply.Type),
		})
	}

	// Sessions are rehydrated from the store per request, so every
	// mutation must be persisted before responding.
	if err := s.manager.Save(r.Context(), sess); err != nil {
		writeDomainError(w, err)
		return
	}

	resp.State = sess.CurrentState
	resp.Progress = sess.Progress
	writeJSON(w, http.StatusOK, resp)
}

// conversationTurns converts stored messages to provider turns.
func conversationTurns(msgs []domain.Message) []generate.Turn {
	turns := make([]generate.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, generate.Turn{Role: string(m.Type), Content: m.Content})
	}
	return turns
}

// generateReply calls the configured provider with the conversation so
// far and appends the assistant turn to the session.
func (s *Server) generateReply(r *http.Request, sess *domain.Session, req addMessageRequest, history []generate.Turn) (domain.Message, error) {
	if s.generator == nil {
		return domain.Message{}, &generate.GenerationError{
			Provider: "none",
			Err:      fmt.Errorf("no generation provider configured"),
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()

	result, err := s.generator.Generate(ctx, generate.Request{
		System:  req.System,
		History: history,
		Prompt:  req.Content,
		Context: sess.Context,
	})
	if err != nil {
		return domain.Message{}, err
	}

	reply, err := sess.AddMessage(domain.MessageAssistant, result.Content, map[string]any{
		"tokens":   result.Usage.Total(),
		"cost":     result.CostUSD,
		"provider": s.generator.Name(),
	})
	if err != nil {
		return domain.Message{}, err
	}
	return reply, nil
}

type setStateRequest struct {
	State      string         `json:"state"`
	Transition map[string]any `json:"transition,omitempty"`
}

func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req setStateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	newState := domain.State(req.State)
	if !newState.Known() {
		writeDomainError(w, &domain.ValidationError{
			Field:  "state",
			Reason: fmt.Sprintf("unknown state %q", req.State),
		})
		return
	}

	prev := sess.CurrentState
	if newState != prev {
		sess.SaveStateToHistory(prev, req.Transition)
		sess.SetState(newState)
	}

	if err := s.manager.Save(r.Context(), sess); err != nil {
		writeDomainError(w, err)
		return
	}

	s.broadcast("state_changed", sess.SessionID, map[string]any{
		"from": string(prev),
		"to":   string(sess.CurrentState),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"current_state": sess.CurrentState,
		"progress":      sess.Progress,
	})
}

type mergeContextRequest struct {
	Context map[string]any `json:"context"`
}

func (s *Server) handleMergeContext(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req mergeContextRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if len(req.Context) == 0 {
		writeDomainError(w, &domain.ValidationError{Field: "context", Reason: "must not be empty"})
		return
	}

	sess.MergeContext(req.Context)
	if err := s.manager.Save(r.Context(), sess); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"context": sess.Context})
}

type reasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req reasonRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	sess.Pause(req.Reason)
	if err := s.manager.Save(r.Context(), sess); err != nil {
		writeDomainError(w, err)
		return
	}
	s.broadcast("paused", sess.SessionID, map[string]any{"reason": req.Reason})
	writeJSON(w, http.StatusOK, sess.Summarize())
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Resume(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.broadcast("resumed", sess.SessionID, map[string]any{
		"state": string(sess.CurrentState),
	})
	writeJSON(w, http.StatusOK, sess.Summarize())
}

type completeRequest struct {
	Data        map[string]any `json:"data,omitempty"`
	Materialize bool           `json:"materialize,omitempty"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req completeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	var receipt *artifact.Receipt
	if req.Materialize {
		if s.materializer == nil {
			writeError(w, http.StatusNotImplemented, "unavailable", "no materializer configured")
			return
		}
		outline, err := artifact.FromContext(sess.Context)
		if err != nil {
			writeDomainError(w, &domain.ValidationError{Field: "context.outline", Reason: err.Error()})
			return
		}
		receipt, err = s.materializer.Materialize(r.Context(), sess.SessionID, outline)
		if err != nil {
			writeError(w, http.StatusBadGateway, "materialize_failed", err.Error())
			return
		}
	}

	sess.Complete(req.Data)
	if err := s.manager.Save(r.Context(), sess); err != nil {
		writeDomainError(w, err)
		return
	}

	s.broadcast("completed", sess.SessionID, nil)
	resp := map[string]any{
		"current_state": sess.CurrentState,
		"progress":      sess.Progress,
	}
	if receipt != nil {
		resp["artifact"] = receipt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req reasonRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	sess.Abandon(req.Reason)
	if err := s.manager.Save(r.Context(), sess); err != nil {
		writeDomainError(w, err)
		return
	}
	s.broadcast("abandoned", sess.SessionID, map[string]any{"reason": req.Reason})
	writeJSON(w, http.StatusOK, map[string]any{
		"current_state": sess.CurrentState,
	})
}

func (s *Server) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checkpoints": sess.CheckpointList()})
}

type createCheckpointRequest struct {
	Name string `json:"name,omitempty"`
}

func (s *Server) handleCreateCheckpoint(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req createCheckpointRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	cp := sess.CreateCheckpoint(req.Name)
	if err := s.manager.Save(r.Context(), sess); err != nil {
		writeDomainError(w, err)
		return
	}
	s.broadcast("checkpoint_created", sess.SessionID, map[string]any{"name": cp.Name})
	writeJSON(w, http.StatusCreated, cp)
}

func (s *Server) handleRestoreCheckpoint(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	name := chi.URLParam(r, "name")
	if !sess.RestoreCheckpoint(name) {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("checkpoint %q not found", name))
		return
	}

	if err := s.manager.Save(r.Context(), sess); err != nil {
		writeDomainError(w, err)
		return
	}
	s.broadcast("checkpoint_restored", sess.SessionID, map[string]any{"name": name})
	writeJSON(w, http.StatusOK, sess.Summarize())
}

// handleWatch upgrades the connection and streams session events until
// the client disconnects.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := s.manager.Load(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(64 * 1024)

	watcher := s.hub.Subscribe(id, conn)
	defer s.hub.Unsubscribe(id, watcher)

	s.log.Debug().Str("sessionId", id).Str("remote", r.RemoteAddr).Msg("watcher connected")

	// Watchers only receive events. Drain the connection to notice
	// disconnects and control frames.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
