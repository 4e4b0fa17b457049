package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/hamlaty/contest-backend/internal/logger"
	pkgerrors "github.com/hamlaty/contest-backend/internal/pkg/errors"
)

// SignatureService authenticates inbound webhooks: the GET subscribe
// handshake and the HMAC-SHA256 signature over the raw POST body. Signature
// checks must run before any JSON parsing of the body.
type SignatureService interface {
	HandleChallenge(mode, verifyToken, challenge string) (string, error)
	VerifySignature(rawBody []byte, signatureHeader string) error
}

type signatureService struct {
	log         *logger.Logger
	appSecret   string
	verifyToken string
}

func NewSignatureService(log *logger.Logger, appSecret, verifyToken string) (SignatureService, error) {
	if strings.TrimSpace(appSecret) == "" {
		return nil, fmt.Errorf("app secret required")
	}
	if strings.TrimSpace(verifyToken) == "" {
		return nil, fmt.Errorf("verify token required")
	}
	serviceLog := log.With("service", "SignatureService")
	return &signatureService{log: serviceLog, appSecret: appSecret, verifyToken: verifyToken}, nil
}

func (ss *signatureService) HandleChallenge(mode, verifyToken, challenge string) (string, error) {
	if mode != "subscribe" {
		return "", fmt.Errorf("unexpected hub.mode %q: %w", mode, pkgerrors.ErrUnauthorized)
	}
	if subtleEqual([]byte(verifyToken), []byte(ss.verifyToken)) {
		return challenge, nil
	}
	return "", fmt.Errorf("verify token mismatch: %w", pkgerrors.ErrUnauthorized)
}

func (ss *signatureService) VerifySignature(rawBody []byte, signatureHeader string) error {
	header := strings.TrimSpace(signatureHeader)
	if !strings.HasPrefix(header, "sha256=") {
		return fmt.Errorf("missing or malformed signature header: %w", pkgerrors.ErrUnauthorized)
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(header, "sha256="))
	if err != nil {
		return fmt.Errorf("signature header is not hex: %w", pkgerrors.ErrUnauthorized)
	}

	mac := hmac.New(sha256.New, []byte(ss.appSecret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	if !hmac.Equal(provided, expected) {
		return fmt.Errorf("signature mismatch: %w", pkgerrors.ErrUnauthorized)
	}
	return nil
}

func subtleEqual(a, b []byte) bool {
	return hmac.Equal(a, b)
}
