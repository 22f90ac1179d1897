// Package httpapi exposes the Secret Santa service over JSON/HTTP with a
// server-sent event stream of the live projection.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"secretsanta/internal/avatars"
	"secretsanta/internal/blob"
	"secretsanta/internal/core"
	"secretsanta/internal/identity"
	"secretsanta/internal/messaging"
	"secretsanta/internal/roster"
	"secretsanta/internal/suggest"
	"secretsanta/internal/wizard"
	"secretsanta/pkg/domain"
)

const (
	apiPrefix       = "/api/v1"
	maxBodyBytes    = 64 << 10
	signInAttempts  = 3
	signInBackoff   = 200 * time.Millisecond
	streamKeepAlive = 25 * time.Second
)

// Suggester produces gift suggestions; *suggest.Client satisfies it.
type Suggester interface {
	Suggest(ctx context.Context, req suggest.Request) []domain.GiftSuggestion
}

// Handler serves the /api/v1 tree.
type Handler struct {
	Service   *core.Service
	Identity  *identity.Anonymous
	Suggester Suggester
	Avatars   *avatars.Service
	Logger    core.Logger

	mu       sync.RWMutex
	sessions map[string]string // token -> participant id
	current  map[string]string // participant id -> token
}

// NewHandler constructs a handler. Suggester and Avatars may be nil, which
// disables their endpoints.
func NewHandler(svc *core.Service, ident *identity.Anonymous, sg Suggester, av *avatars.Service, logger core.Logger) *Handler {
	if ident == nil {
		ident = identity.NewAnonymous()
	}
	return &Handler{
		Service:   svc,
		Identity:  ident,
		Suggester: sg,
		Avatars:   av,
		Logger:    logger,
		sessions:  make(map[string]string),
		current:   make(map[string]string),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "service not configured")
		return
	}
	path := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, apiPrefix), "/")
	switch {
	case path == "/participants":
		h.only(w, r, http.MethodGet, h.handleParticipants)
	case path == "/session":
		h.handleSession(w, r)
	case path == "/view":
		h.only(w, r, http.MethodGet, h.handleView)
	case path == "/stream":
		h.only(w, r, http.MethodGet, h.handleStream)
	case path == "/suggestions":
		h.only(w, r, http.MethodPost, h.handleSuggestions)
	case path == "/draw":
		h.only(w, r, http.MethodPost, h.handleDraw)
	case path == "/links":
		h.only(w, r, http.MethodGet, h.handleLinks)
	case strings.HasPrefix(path, "/profiles/"):
		h.handleProfile(w, r, strings.TrimPrefix(path, "/profiles/"))
	case strings.HasPrefix(path, "/avatars/"):
		h.handleAvatar(w, r, strings.TrimPrefix(path, "/avatars/"))
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) only(w http.ResponseWriter, r *http.Request, method string, fn http.HandlerFunc) {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	fn(w, r)
}

type participantResponse struct {
	domain.Participant
	AvatarURL string `json:"avatar_url"`
}

func (h *Handler) handleParticipants(w http.ResponseWriter, r *http.Request) {
	participants := h.Service.Roster().Participants()
	urls := map[string]string{}
	if h.Avatars != nil {
		resolved, err := h.Avatars.ResolveAll(r.Context())
		if err != nil {
			h.logWarn("resolve avatars failed; using defaults", "error", err)
		}
		urls = resolved
	}
	out := make([]participantResponse, 0, len(participants))
	for _, p := range participants {
		link := urls[p.ID]
		if link == "" {
			link = p.Avatar
		}
		out = append(out, participantResponse{Participant: p, AvatarURL: link})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"participants": out,
		"questions":    roster.Questions,
	})
}

type sessionRequest struct {
	ParticipantID string `json:"participant_id"`
}

type sessionResponse struct {
	Token       string             `json:"token"`
	Participant domain.Participant `json:"participant"`
	Landing     wizard.State       `json:"landing"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req sessionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		participant, ok := h.Service.Roster().Find(strings.TrimSpace(req.ParticipantID))
		if !ok {
			writeError(w, http.StatusNotFound, "participant not found")
			return
		}
		ident, err := identity.SignInWithRetry(r.Context(), h.Identity, signInAttempts, signInBackoff)
		if err != nil {
			h.logWarn("sign-in failed", "participant", participant.ID, "error", err)
			writeError(w, http.StatusServiceUnavailable, "sign-in unavailable")
			return
		}
		h.bind(ident.Token, participant.ID)

		var existing *domain.Profile
		if p, err := h.Service.Profile(r.Context(), participant.ID); err == nil {
			existing = &p
		}
		writeJSON(w, http.StatusCreated, sessionResponse{
			Token:       ident.Token,
			Participant: participant,
			Landing:     wizard.New(existing).State(),
		})
	case http.MethodDelete:
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing session token")
			return
		}
		h.unbind(token)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// bind makes token the only session of participant, revoking the one it
// replaces.
func (h *Handler) bind(token, participant string) {
	h.mu.Lock()
	prev, had := h.current[participant]
	h.sessions[token] = participant
	h.current[participant] = token
	if had {
		delete(h.sessions, prev)
	}
	h.mu.Unlock()
	if had {
		h.Identity.Revoke(prev)
	}
}

func (h *Handler) unbind(token string) {
	h.Identity.Revoke(token)
	h.mu.Lock()
	defer h.mu.Unlock()
	participant, ok := h.sessions[token]
	if !ok {
		return
	}
	delete(h.sessions, token)
	if h.current[participant] == token {
		delete(h.current, participant)
	}
}

// sessionParticipant resolves the participant bound to the request's bearer token.
func (h *Handler) sessionParticipant(r *http.Request) (string, bool) {
	token := bearerToken(r)
	if token == "" {
		return "", false
	}
	if _, ok := h.Identity.Verify(token); !ok {
		h.unbind(token)
		return "", false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.sessions[token]
	return id, ok
}

// requireSession writes 401 unless the request carries a session for want
// (any session when want is empty).
func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request, want string) (string, bool) {
	me, ok := h.sessionParticipant(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or unknown session token")
		return "", false
	}
	if want != "" && me != want {
		writeError(w, http.StatusForbidden, "session belongs to another participant")
		return "", false
	}
	return me, true
}

// viewer resolves whose personal fields a read carries. Anonymous callers get
// the shared dashboard only; a token that does not verify is rejected.
func (h *Handler) viewer(w http.ResponseWriter, r *http.Request) (string, bool) {
	if bearerToken(r) == "" {
		return "", true
	}
	return h.requireSession(w, r, "")
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	me, ok := h.viewer(w, r)
	if !ok {
		return
	}
	view, err := h.Service.View(r.Context(), me)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"view": view})
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	me, ok := h.viewer(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	lv, err := h.Service.Subscribe(ctx, me)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()
	updates := lv.Updates(ctx)
	for {
		select {
		case view, ok := <-updates:
			if !ok {
				if err := lv.Err(); err != nil {
					writeEvent(w, "error", map[string]string{"error": err.Error()})
					_ = rc.Flush()
				}
				return
			}
			if err := writeEvent(w, "view", view); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func writeEvent(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, "event: "+event+"\ndata: "+string(data)+"\n\n")
	return err
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		profile, err := h.Service.Profile(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		// The target is private to its owner.
		if me, ok := h.sessionParticipant(r); !ok || me != id {
			profile.AssignedTargetID = nil
		}
		writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
	case http.MethodPut:
		if _, ok := h.requireSession(w, r, id); !ok {
			return
		}
		var sub core.Submission
		if !decodeBody(w, r, &sub) {
			return
		}
		profile, _, err := h.Service.SubmitProfile(r.Context(), id, sub)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type suggestionRequest struct {
	ManualGift  string         `json:"manual_gift"`
	QuizAnswers map[int]string `json:"quiz_answers"`
}

func (h *Handler) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if h.Suggester == nil {
		http.NotFound(w, r)
		return
	}
	me, ok := h.requireSession(w, r, "")
	if !ok {
		return
	}
	var req suggestionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ManualGift) == "" {
		writeError(w, http.StatusUnprocessableEntity, "invalid manual_gift: must not be empty")
		return
	}
	participant, _ := h.Service.Roster().Find(me)
	suggestions := h.Suggester.Suggest(r.Context(), suggest.Request{
		Participant: participant,
		ManualGift:  strings.TrimSpace(req.ManualGift),
		QuizAnswers: req.QuizAnswers,
	})
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

type drawRequest struct {
	Passcode string `json:"passcode"`
}

func (h *Handler) handleDraw(w http.ResponseWriter, r *http.Request) {
	var req drawRequest
	if !decodeBody(w, r, &req) {
		return
	}
	assignment, _, err := h.Service.CommitDraw(r.Context(), req.Passcode)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	// Only the count is returned; each participant reveals their own target.
	writeJSON(w, http.StatusCreated, map[string]any{"drawn": true, "participants": len(assignment)})
}

func (h *Handler) handleLinks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var link string
	switch messaging.Kind(q.Get("kind")) {
	case messaging.KindReminder, messaging.KindPetReminder:
		participant, ok := h.Service.Roster().Find(q.Get("participant"))
		if !ok {
			writeError(w, http.StatusNotFound, "participant not found")
			return
		}
		link = messaging.Reminder(participant)
	case messaging.KindDrawAnnounce:
		link = messaging.DrawAnnouncement()
	case messaging.KindShareResult:
		me, ok := h.requireSession(w, r, "")
		if !ok {
			return
		}
		view, err := h.Service.View(r.Context(), me)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if view.MyAssignedTarget == nil {
			writeError(w, http.StatusConflict, "no assigned target yet")
			return
		}
		link = messaging.ShareResult("", messaging.ShareDetailsFor(*view.MyAssignedTarget))
	default:
		writeError(w, http.StatusBadRequest, "unknown link kind")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": link})
}

func (h *Handler) handleAvatar(w http.ResponseWriter, r *http.Request, id string) {
	if h.Avatars == nil || id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		info, body, err := h.Avatars.Open(r.Context(), id)
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, http.StatusNotFound, "avatar not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "avatar storage unavailable")
			return
		}
		defer body.Close()
		if info.ContentType != "" {
			w.Header().Set("Content-Type", info.ContentType)
		}
		if info.ETag != "" {
			w.Header().Set("ETag", `"`+info.ETag+`"`)
		}
		w.Header().Set("Cache-Control", "private, max-age=300")
		_, _ = io.Copy(w, body)
	case http.MethodPut:
		if _, ok := h.requireSession(w, r, id); !ok {
			return
		}
		info, err := h.Avatars.Upload(r.Context(), id, r.Header.Get("Content-Type"), r.Body)
		var upErr avatars.UploadError
		if errors.As(err, &upErr) {
			writeError(w, http.StatusUnprocessableEntity, upErr.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "avatar storage unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"avatar": info})
	case http.MethodDelete:
		if _, ok := h.requireSession(w, r, id); !ok {
			return
		}
		if _, err := h.Avatars.Remove(r.Context(), id); err != nil {
			writeError(w, http.StatusServiceUnavailable, "avatar storage unavailable")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) logWarn(msg string, args ...any) {
	if h.Logger != nil {
		h.Logger.Warn(msg, args...)
	}
}

// bearerToken reads the Authorization header, falling back to the
// access_token query parameter that EventSource clients must use.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	return true
}

// writeServiceError maps service errors onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		auth       core.AdminAuthError
		pre        core.PreconditionFailedError
		validation core.ValidationError
		notFound   core.ErrNotFound
		rules      domain.RuleViolationError
		commit     core.CommitError
		sub        core.SubscriptionError
	)
	switch {
	case errors.As(err, &auth):
		writeError(w, http.StatusUnauthorized, auth.Error())
	case errors.As(err, &pre):
		writeJSON(w, http.StatusConflict, map[string]any{"error": pre.Error(), "reason": pre.Reason, "pending": pre.Pending})
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusUnprocessableEntity, validation.Error())
	case errors.As(err, &rules):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "rule violation", "violations": rules.Result.Violations})
	case errors.As(err, &commit), errors.As(err, &sub):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
