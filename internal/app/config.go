package app

import (
	"strings"

	"github.com/hamlaty/contest-backend/internal/logger"
	"github.com/hamlaty/contest-backend/internal/services"
	"github.com/hamlaty/contest-backend/internal/utils"
)

type Config struct {
	AppSecret          string
	VerifyToken        string
	TokenCipherKeyHex  string
	AuditCap           int
	MaxAttachmentBytes int64
	AllowOrigins       []string
	Messenger          services.MessengerConfig
}

func LoadConfig(log *logger.Logger) Config {
	appSecret := utils.GetEnv("WEBHOOK_APP_SECRET", "", log)
	verifyToken := utils.GetEnv("WEBHOOK_VERIFY_TOKEN", "", log)
	cipherKey := utils.GetEnv("PAGE_TOKEN_CIPHER_KEY", "", log)
	auditCap := utils.GetEnvAsInt("AUDIT_LOG_CAP", 50, log)
	maxAttachmentMB := utils.GetEnvAsInt("MAX_ATTACHMENT_MB", 25, log)

	var origins []string
	if raw := utils.GetEnv("CORS_ALLOW_ORIGINS", "", log); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if o := strings.TrimSpace(origin); o != "" {
				origins = append(origins, o)
			}
		}
	}

	return Config{
		AppSecret:          appSecret,
		VerifyToken:        verifyToken,
		TokenCipherKeyHex:  cipherKey,
		AuditCap:           auditCap,
		MaxAttachmentBytes: int64(maxAttachmentMB) << 20,
		AllowOrigins:       origins,
		Messenger: services.MessengerConfig{
			CompletionText:          utils.GetEnv("MESSENGER_COMPLETION_TEXT", "", log),
			AlreadyParticipatedText: utils.GetEnv("MESSENGER_ALREADY_PARTICIPATED_TEXT", "", log),
			DetailsButtonTitle:      utils.GetEnv("MESSENGER_DETAILS_BUTTON_TITLE", "", log),
			DetailsBaseURL:          utils.GetEnv("MESSENGER_DETAILS_BASE_URL", "", log),
		},
	}
}
