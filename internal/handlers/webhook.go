package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hamlaty/contest-backend/internal/logger"
	"github.com/hamlaty/contest-backend/internal/middleware"
	"github.com/hamlaty/contest-backend/internal/services"
	"github.com/hamlaty/contest-backend/internal/types"
)

type WebhookHandler struct {
	log        *logger.Logger
	signatures services.SignatureService
	messenger  services.MessengerService
	comments   services.CommentIngestService
}

func NewWebhookHandler(log *logger.Logger, signatures services.SignatureService, messenger services.MessengerService, comments services.CommentIngestService) *WebhookHandler {
	handlerLog := log.With("handler", "WebhookHandler")
	return &WebhookHandler{log: handlerLog, signatures: signatures, messenger: messenger, comments: comments}
}

// Verify answers the platform's GET subscription handshake.
func (h *WebhookHandler) Verify(c *gin.Context) {
	challenge, err := h.signatures.HandleChallenge(
		c.Query("hub.mode"),
		c.Query("hub.verify_token"),
		c.Query("hub.challenge"),
	)
	if err != nil {
		h.log.Warn("Webhook handshake rejected", "error", err)
		c.String(http.StatusForbidden, "forbidden")
		return
	}
	c.String(http.StatusOK, challenge)
}

// Receive processes one signed webhook batch. Ignored or unmatched events
// are normal outcomes: the platform gets 200 either way, only edge checks
// produce error statuses.
func (h *WebhookHandler) Receive(c *gin.Context) {
	rawValue, ok := c.Get(middleware.RawBodyKey)
	if !ok {
		RespondError(c, http.StatusInternalServerError, "missing_verified_body", nil)
		return
	}
	raw, _ := rawValue.([]byte)

	var payload types.WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	if payload.Object != "page" {
		RespondOK(c, gin.H{"ok": true})
		return
	}

	ctx := c.Request.Context()
	for _, entry := range payload.Entry {
		for _, event := range entry.Messaging {
			if err := h.messenger.HandleEvent(ctx, entry.ID, event); err != nil {
				h.log.Error("Messenger event failed, continuing batch", "page_id", entry.ID, "error", err)
			}
		}
		for _, change := range entry.Changes {
			if err := h.comments.HandleChange(ctx, entry.ID, change); err != nil {
				h.log.Error("Feed change failed, continuing batch", "page_id", entry.ID, "error", err)
			}
		}
	}

	RespondOK(c, gin.H{"ok": true})
}
