// Package api implements the REST surface of the realtime server. Chat sends
// are persisted here before the client broadcasts them on the socket, so a
// dropped socket echo never loses a message. All responses use a uniform
// {success, data, message} envelope.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yakin/dating-app/internal/geo"
	"github.com/yakin/dating-app/internal/history"
	"github.com/yakin/dating-app/internal/metrics"
	"github.com/yakin/dating-app/internal/presence"
	"github.com/yakin/dating-app/internal/protocol"
	"github.com/yakin/dating-app/internal/ratelimit"
	"github.com/yakin/dating-app/internal/room"
	"github.com/yakin/dating-app/internal/token"
)

// envelope is the uniform REST response wrapper.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Handler serves the /api routes. All endpoints require a Bearer token that
// resolves through the token store.
type Handler struct {
	tokens   *token.Store
	history  *history.Store
	presence *presence.Store
	limiter  *ratelimit.Limiter
}

// NewHandler creates the REST handler. The limiter may be nil to disable
// request rate limiting (tests).
func NewHandler(tokens *token.Store, hist *history.Store, pres *presence.Store, limiter *ratelimit.Limiter) *Handler {
	return &Handler{
		tokens:   tokens,
		history:  hist,
		presence: pres,
		limiter:  limiter,
	}
}

// Mount registers the API routes on the given mux.
func (h *Handler) Mount(mux *http.ServeMux) {
	mux.HandleFunc("/api/chat/send", h.auth(h.handleChatSend))
	mux.HandleFunc("/api/chat/history", h.auth(h.handleChatHistory))
	mux.HandleFunc("/api/chat/private/send", h.auth(h.handlePrivateSend))
	mux.HandleFunc("/api/chat/private/history", h.auth(h.handlePrivateHistory))
	mux.HandleFunc("/api/location", h.auth(h.handleLocation))
	mux.HandleFunc("/api/location/nearby", h.auth(h.handleNearby))
}

// authedHandler receives the resolved user ID alongside the request.
type authedHandler func(w http.ResponseWriter, r *http.Request, userID string)

// auth resolves the Bearer token and rejects unauthenticated requests.
func (h *Handler) auth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")
		if !strings.HasPrefix(raw, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}
		tok := strings.TrimPrefix(raw, "Bearer ")

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		userID, err := h.tokens.Resolve(ctx, tok)
		cancel()
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r, userID)
	}
}

// handleChatSend persists a room message and returns the stored record. The
// realtime fan-out happens separately over the socket, driven by the client.
func (h *Handler) handleChatSend(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.allow(r, userID, ratelimit.RuleMessage) {
		writeError(w, http.StatusTooManyRequests, "message rate limit exceeded")
		return
	}

	var req struct {
		Room    string `json:"room"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Room == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.saveMessage(r.Context(), req.Room, userID, "", req.Message)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics.MessagesTotal.WithLabelValues("room").Inc()
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: rec})
}

// handlePrivateSend persists a 1:1 message. The pairwise room name is derived
// server-side from the two participants, never trusted from the client.
func (h *Handler) handlePrivateSend(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.allow(r, userID, ratelimit.RuleMessage) {
		writeError(w, http.StatusTooManyRequests, "message rate limit exceeded")
		return
	}

	var req struct {
		FriendID string `json:"friend_id"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FriendID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	roomName := room.PairRoom(userID, req.FriendID)
	rec, err := h.saveMessage(r.Context(), roomName, userID, req.FriendID, req.Message)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics.MessagesTotal.WithLabelValues("private").Inc()
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: rec})
}

// handleChatHistory returns the most recent messages of a room, newest first.
func (h *Handler) handleChatHistory(w http.ResponseWriter, r *http.Request, userID string) {
	h.listHistory(w, r, r.URL.Query().Get("room"))
}

// handlePrivateHistory returns the most recent messages of a pairwise room.
// Only a participant of the pair may read it.
func (h *Handler) handlePrivateHistory(w http.ResponseWriter, r *http.Request, userID string) {
	roomName := r.URL.Query().Get("room")
	if !isParticipant(roomName, userID) {
		writeError(w, http.StatusForbidden, "not a participant of this room")
		return
	}
	h.listHistory(w, r, roomName)
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request, roomName string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if roomName == "" {
		writeError(w, http.StatusBadRequest, "missing room")
		return
	}

	limit := history.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	// An optional since parameter (RFC 3339) backfills everything after a
	// long disconnect instead of just the latest page.
	var msgs []history.Message
	var err error
	if v := r.URL.Query().Get("since"); v != "" {
		since, perr := time.Parse(time.RFC3339, v)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		msgs, err = h.history.ListSince(r.Context(), roomName, since)
		// ListSince returns oldest first; flip to match the newest-first
		// contract of this endpoint.
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
	} else {
		msgs, err = h.history.ListRoom(r.Context(), roomName, limit)
	}
	if err != nil {
		log.Printf("api: history query for %q failed: %v", roomName, err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}

	records := make([]protocol.MessageRecord, 0, len(msgs))
	for _, m := range msgs {
		records = append(records, recordFromMessage(m))
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: records})
}

// handleLocation stores the user's position in the presence index.
func (h *Handler) handleLocation(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.allow(r, userID, ratelimit.RuleLocation) {
		writeError(w, http.StatusTooManyRequests, "location rate limit exceeded")
		return
	}

	var loc protocol.Coordinates
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sample := geo.Sample{
		Latitude:       loc.Latitude,
		Longitude:      loc.Longitude,
		AccuracyMeters: loc.AccuracyMeters,
		CapturedAt:     time.Now(),
	}
	if !sample.Valid() {
		writeError(w, http.StatusBadRequest, "invalid coordinates")
		return
	}

	if err := h.presence.UpdateLocation(r.Context(), userID, loc.Latitude, loc.Longitude); err != nil {
		log.Printf("api: location update for user %s failed: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "location update failed")
		return
	}

	metrics.LocationUpdatesTotal.Inc()
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

// handleNearby answers a proximity query against the GEO index, centered on
// the caller's last stored position.
func (h *Handler) handleNearby(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	radius := 5000.0
	if v := r.URL.Query().Get("radius"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			radius = f
		}
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entry, err := h.presence.Get(r.Context(), userID)
	if err != nil || entry == nil || !entry.HasLocation {
		writeError(w, http.StatusConflict, "no known position for user")
		return
	}

	found, err := h.presence.Nearby(r.Context(), entry.Latitude, entry.Longitude, radius, limit)
	if err != nil {
		log.Printf("api: nearby query for user %s failed: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "nearby query failed")
		return
	}

	users := make([]protocol.NearbyUser, 0, len(found))
	for _, e := range found {
		if e.UserID == userID {
			continue
		}
		users = append(users, protocol.NearbyUser{
			UserID:         e.UserID,
			Location:       protocol.Coordinates{Latitude: e.Latitude, Longitude: e.Longitude},
			DistanceMeters: e.DistanceMeters,
		})
	}

	metrics.NearbyQueriesTotal.Inc()
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: users})
}

// saveMessage validates and persists one message, returning the wire record.
func (h *Handler) saveMessage(ctx context.Context, roomName, senderID, recipientID, body string) (protocol.MessageRecord, error) {
	msg := &history.Message{
		ID:          uuid.New().String(),
		Room:        roomName,
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
		SentAt:      time.Now(),
	}
	if err := h.history.Save(ctx, msg); err != nil {
		return protocol.MessageRecord{}, err
	}
	return recordFromMessage(*msg), nil
}

// allow applies a rate limit rule for the user, failing open when the
// limiter is unavailable.
func (h *Handler) allow(r *http.Request, userID string, rule ratelimit.Rule) bool {
	if h.limiter == nil {
		return true
	}
	ok, err := h.limiter.Allow(r.Context(), userID, rule)
	if err != nil {
		return true
	}
	return ok
}

// isParticipant reports whether userID is one of the two members encoded in
// a pairwise private room name. User IDs may themselves contain underscores,
// so the name is not split blindly; instead the candidate peer is cut from
// either end and the room name is rebuilt with PairRoom, which also verifies
// the canonical member ordering.
func isParticipant(roomName, userID string) bool {
	if !room.IsPrivate(roomName) {
		return false
	}
	pair := strings.TrimPrefix(roomName, room.PrivatePrefix)
	if peer, ok := strings.CutPrefix(pair, userID+"_"); ok {
		if room.PairRoom(userID, peer) == roomName {
			return true
		}
	}
	if peer, ok := strings.CutSuffix(pair, "_"+userID); ok {
		if room.PairRoom(peer, userID) == roomName {
			return true
		}
	}
	return false
}

func recordFromMessage(m history.Message) protocol.MessageRecord {
	return protocol.MessageRecord{
		ID:          m.ID,
		SenderID:    m.SenderID,
		Body:        m.Body,
		Room:        m.Room,
		RecipientID: m.RecipientID,
		Timestamp:   m.SentAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Message: msg})
}
