package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hamlaty/contest-backend/internal/logger"
	"github.com/hamlaty/contest-backend/internal/services"
)

// RawBodyKey is where the verified raw request body is stashed for
// handlers. Verification runs on these exact bytes before anything parses
// them.
const RawBodyKey = "verified_raw_body"

type SignatureMiddleware struct {
	log        *logger.Logger
	signatures services.SignatureService
}

func NewSignatureMiddleware(log *logger.Logger, signatures services.SignatureService) *SignatureMiddleware {
	middlewareLog := log.With("middleware", "SignatureMiddleware")
	return &SignatureMiddleware{log: middlewareLog, signatures: signatures}
}

func (sm *SignatureMiddleware) RequireSignature() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		header := c.GetHeader("X-Hub-Signature-256")
		if err := sm.signatures.VerifySignature(raw, header); err != nil {
			sm.log.Warn("Webhook signature rejected", "path", c.FullPath(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		c.Set(RawBodyKey, raw)
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		c.Next()
	}
}
