package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shouni/go-st-localizer/pkg/binder"
	"github.com/shouni/go-st-localizer/pkg/domain"
	"github.com/shouni/go-st-localizer/pkg/host"
	"github.com/shouni/go-st-localizer/pkg/rewriter"
)

const maxBodyBytes = 8 << 20

type characterRequest struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type htmlRequest struct {
	characterRequest
	HTML string `json:"html"`
}

type activeRequest struct {
	CharacterID string `json:"characterId"`
}

type renderRequest struct {
	HTML string `json:"html"`
	// Role は "user" ならユーザーの発言として扱うのだ。それ以外はキャラクターの発言なのだ。
	Role string `json:"role"`
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	var req characterRequest
	if !readJSON(w, r, &req) {
		return
	}
	char := domain.CharacterRef{Name: req.Name, Avatar: req.Avatar}
	if !char.HasIdentity() {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	m := s.builder.Build(r.Context(), char)
	writeJSON(w, http.StatusOK, map[string]any{"map": m})
}

func (s *Server) handleHTML(w http.ResponseWriter, r *http.Request) {
	var req htmlRequest
	if !readJSON(w, r, &req) {
		return
	}
	char := domain.CharacterRef{Name: req.Name, Avatar: req.Avatar}
	if !char.HasIdentity() {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	m := s.builder.Build(r.Context(), char)
	out, n, err := rewriter.LocalizeHTML(req.HTML, m)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"html": out, "rewritten": n})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.builder.Cache().Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutCharacter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req characterRequest
	if !readJSON(w, r, &req) {
		return
	}
	s.state.PutCharacter(id, domain.CharacterRef{Name: req.Name, Avatar: req.Avatar})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if !readJSON(w, r, &req) {
		return
	}
	s.state.SetActive(req.CharacterID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := domain.ParseSettings(raw); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.state.SetSettings(s.settingsKey(), raw)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	if err := s.doc.Render(&b); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, b.String())
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	mesID, ok := messageID(w, r)
	if !ok {
		return
	}
	out, found := s.doc.MessageHTML(mesID)
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messageId": mesID, "html": out})
}

// handleRenderMessage はメッセージを描画し、ホストと同じように描画済みイベントを発火するのだ。
func (s *Server) handleRenderMessage(w http.ResponseWriter, r *http.Request) {
	mesID, ok := messageID(w, r)
	if !ok {
		return
	}
	var req renderRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := s.doc.RenderMessage(mesID, req.HTML); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	name := host.CharacterMessageRendered
	if req.Role == "user" {
		name = host.UserMessageRendered
	}
	s.state.Bus().Emit(r.Context(), host.Event{Name: name, MessageID: mesID})

	out, _ := s.doc.MessageHTML(mesID)
	writeJSON(w, http.StatusOK, map[string]any{"messageId": mesID, "html": out})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	ev := host.Event{MessageID: host.NoMessage}
	if !readJSON(w, r, &ev) {
		return
	}
	if !host.IsKnown(ev.Name) {
		http.Error(w, "unknown event", http.StatusBadRequest)
		return
	}

	// ハンドラが購読前でもチャット切り替えのキャッシュ破棄だけは守るのだ
	if ev.Name == host.ChatChanged && s.binder.State() != binder.StateSubscribed {
		s.builder.Cache().Clear()
	}

	n := s.state.Bus().Emit(r.Context(), ev)
	writeJSON(w, http.StatusAccepted, map[string]any{"event": ev.Name, "handlers": n})
}

func (s *Server) settingsKey() string {
	if s.cfg.SettingsKey != "" {
		return s.cfg.SettingsKey
	}
	return domain.DefaultSettingsKey
}

func messageID(w http.ResponseWriter, r *http.Request) (int, bool) {
	mesID, err := strconv.Atoi(chi.URLParam(r, "mesid"))
	if err != nil || mesID < 0 {
		http.Error(w, "invalid message id", http.StatusBadRequest)
		return 0, false
	}
	return mesID, true
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
