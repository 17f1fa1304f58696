package gcal

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopslot/shopslot/libs/auth"
	"github.com/shopslot/shopslot/libs/httpx"
	"golang.org/x/oauth2"
)

const stateTTL = 10 * time.Minute

// ConnectHandler links a user's Google account: /calendar/connect hands out a
// consent URL whose state names the caller, /oauth2callback redeems it.
type ConnectHandler struct {
	oauth       *oauth2.Config
	tokens      TokenStore
	stateSecret string
	logger      *slog.Logger
}

func NewConnectHandler(oauth *oauth2.Config, tokens TokenStore, stateSecret string, logger *slog.Logger) *ConnectHandler {
	return &ConnectHandler{oauth: oauth, tokens: tokens, stateSecret: stateSecret, logger: logger}
}

func (h *ConnectHandler) Register(mux *http.ServeMux) {
	mux.Handle("GET /calendar/connect", httpx.RequireActor(http.HandlerFunc(h.Connect)))
	mux.HandleFunc("GET /oauth2callback", h.Callback)
}

func (h *ConnectHandler) Connect(w http.ResponseWriter, r *http.Request) {
	actor, _ := httpx.ActorFromContext(r.Context())
	state, err := auth.SignState(actor.UserID, h.stateSecret, stateTTL)
	if err != nil {
		h.logger.Error("sign oauth state failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	url := h.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"auth_url": url})
}

func (h *ConnectHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		httpx.WriteError(w, http.StatusBadRequest, "consent_denied", e)
		return
	}
	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", "authorization code required")
		return
	}
	userID, err := auth.VerifyState(q.Get("state"), h.stateSecret)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_state", "invalid or expired state")
		return
	}
	tok, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("oauth code exchange failed", "err", err, "user_id", userID)
		httpx.WriteError(w, http.StatusBadGateway, "exchange_failed", "failed to exchange authorization code")
		return
	}
	if err := h.tokens.SaveToken(r.Context(), userID, tok); err != nil {
		h.logger.Error("save calendar token failed", "err", err, "user_id", userID)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	h.logger.Info("calendar connected", "user_id", userID)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"connected": true, "user_id": userID})
}
