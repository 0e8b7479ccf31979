package conversation

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-budget-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-budget-go/pkg/utilities"
)

// Handler serves the chat endpoints. Both routes sit behind auth.Gate.
type Handler struct {
	engine *Engine
	logger *zap.SugaredLogger
}

func NewHandler(engine *Engine, logger *zap.SugaredLogger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

type beginResponse struct {
	Response       string `json:"response"`
	ConversationID int64  `json:"conversationId"`
}

type respondRequest struct {
	ConversationID *float64 `json:"conversationId"`
	Message        *string  `json:"message"`
}

type respondResponse struct {
	Response string `json:"response"`
	Finished bool   `json:"finished,omitempty"`
}

// Begin opens a conversation for the logged-in user.
func (h *Handler) Begin(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "You must be logged in to do that")
		return
	}
	id := h.engine.Create(u.ID, u.Username)
	h.logger.Debugw("conversation started", "conversation_id", id, "user_id", u.ID)
	utilities.WriteJSON(w, http.StatusOK, beginResponse{Response: Greeting(u.Username), ConversationID: id})
}

// Response feeds one answer into an existing conversation.
func (h *Handler) Response(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "You must be logged in to do that")
		return
	}

	var req respondRequest
	// a body that is not JSON reads the same as one missing both fields
	_ = json.NewDecoder(r.Body).Decode(&req)

	id, valid := conversationID(req.ConversationID)
	if !valid {
		utilities.WriteError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}
	if req.Message == nil || *req.Message == "" {
		utilities.WriteError(w, http.StatusBadRequest, "Invalid message")
		return
	}

	reply, err := h.engine.Respond(id, u.ID, *req.Message)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			utilities.WriteError(w, http.StatusBadRequest, "Invalid conversation")
			return
		}
		h.logger.Errorw("conversation respond failed", "conversation_id", id, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Sorry, something went wrong.")
		return
	}
	if reply.Finished {
		h.logger.Infow("conversation finished", "conversation_id", id, "user_id", u.ID)
	}
	utilities.WriteJSON(w, http.StatusOK, respondResponse{Response: reply.Text, Finished: reply.Finished})
}

// conversationID accepts any finite JSON number. Fractional or out-of-range
// values pass this check and are then simply unknown to the engine.
func conversationID(v *float64) (int64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	f := *v
	if f != math.Trunc(f) || f < 0 || f >= math.MaxInt64 {
		return -1, true
	}
	return int64(f), true
}
