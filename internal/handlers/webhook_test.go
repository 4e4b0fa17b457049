package handlers_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hamlaty/contest-backend/internal/clients/graph"
	"github.com/hamlaty/contest-backend/internal/handlers"
	"github.com/hamlaty/contest-backend/internal/logger"
	"github.com/hamlaty/contest-backend/internal/middleware"
	"github.com/hamlaty/contest-backend/internal/repos"
	"github.com/hamlaty/contest-backend/internal/server"
	"github.com/hamlaty/contest-backend/internal/services"
	"github.com/hamlaty/contest-backend/internal/types"
)

const (
	testAppSecret   = "test-app-secret"
	testVerifyToken = "test-verify-token"
	testCipherKey   = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
)

type nullGraphClient struct{}

func (nullGraphClient) SendText(ctx context.Context, accessToken, psid, text string) error {
	return nil
}

func (nullGraphClient) SendQuickReplies(ctx context.Context, accessToken, psid, text string, replies []graph.QuickReply) error {
	return nil
}

func (nullGraphClient) SendButtonLink(ctx context.Context, accessToken, psid, text, buttonTitle, buttonURL string) error {
	return nil
}

func (nullGraphClient) FetchCommentDetail(ctx context.Context, accessToken, commentID string) (*graph.CommentDetail, error) {
	return nil, fmt.Errorf("unavailable")
}

type webhookFixture struct {
	db      *gorm.DB
	router  *gin.Engine
	contest *types.Contest
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&types.Contest{},
		&types.Task{},
		&types.MCQOption{},
		&types.PageLink{},
		&types.CommentSourceConfig{},
		&types.Thread{},
		&types.Entry{},
		&types.CommentEntry{},
		&types.AuditEvent{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	signatures, err := services.NewSignatureService(log, testAppSecret, testVerifyToken)
	if err != nil {
		t.Fatalf("NewSignatureService: %v", err)
	}
	cipher, err := services.NewTokenCipher(testCipherKey)
	if err != nil {
		t.Fatalf("NewTokenCipher: %v", err)
	}
	sealed, err := cipher.Seal("page-token")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	contest := &types.Contest{Slug: "summer-raffle", Title: "Summer Raffle"}
	if err := db.Create(contest).Error; err != nil {
		t.Fatalf("create contest: %v", err)
	}
	if err := db.Create(&types.PageLink{PageID: "page-1", ContestID: contest.ID, SealedAccessToken: sealed}).Error; err != nil {
		t.Fatalf("create page link: %v", err)
	}

	contestRepo := repos.NewContestRepo(db, log)
	taskRepo := repos.NewTaskRepo(db, log)
	pageLinks := repos.NewPageLinkRepo(db, log)
	sequencer := services.NewTaskSequencer(log, taskRepo)
	auditRepo := repos.NewAuditEventRepo(db, log)

	messenger := services.NewMessengerService(
		log,
		services.MessengerConfig{},
		contestRepo,
		pageLinks,
		sequencer,
		taskRepo,
		repos.NewThreadRepo(db, log),
		repos.NewEntryRepo(db, log),
		cipher,
		nullGraphClient{},
	)
	comments := services.NewCommentIngestService(
		log,
		repos.NewCommentSourceConfigRepo(db, log),
		repos.NewCommentEntryRepo(db, log),
		pageLinks,
		taskRepo,
		cipher,
		nullGraphClient{},
		services.NewAttachmentOffloader(log, nil, 0),
		services.NewCommentClassifier(log),
		services.NewAuditService(log, auditRepo, 50),
		nil,
	)

	handler := handlers.NewWebhookHandler(log, signatures, messenger, comments)
	router := server.NewRouter(server.RouterConfig{
		WebhookHandler:      handler,
		SignatureMiddleware: middleware.NewSignatureMiddleware(log, signatures),
	})

	return &webhookFixture{db: db, router: router, contest: contest}
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testAppSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (f *webhookFixture) post(t *testing.T, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookVerify_Handshake(t *testing.T) {
	f := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token="+testVerifyToken+"&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "12345" {
		t.Fatalf("body = %q, want the echoed challenge", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestWebhookReceive_RejectsBadSignatures(t *testing.T) {
	f := newWebhookFixture(t)
	body := []byte(`{"object":"page","entry":[]}`)

	if rec := f.post(t, body, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned status = %d, want 401", rec.Code)
	}

	// Signature computed over different bytes than the ones delivered.
	altered := []byte(`{"object":"page","entry":[{"id":"evil"}]}`)
	if rec := f.post(t, altered, sign(body)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("altered-body status = %d, want 401", rec.Code)
	}
}

func TestWebhookReceive_RejectsInvalidJSON(t *testing.T) {
	f := newWebhookFixture(t)
	body := []byte(`{not json`)
	if rec := f.post(t, body, sign(body)); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookReceive_IgnoresNonPageObjects(t *testing.T) {
	f := newWebhookFixture(t)
	body := []byte(`{"object":"instagram","entry":[{"id":"page-1"}]}`)
	if rec := f.post(t, body, sign(body)); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestWebhookReceive_MessengerFlowThroughHTTP(t *testing.T) {
	f := newWebhookFixture(t)
	task := &types.Task{ContestID: f.contest.ID, Kind: types.TaskKindAnswerText, Title: "Favorite color?"}
	if err := f.db.Create(task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}

	referral := []byte(`{"object":"page","entry":[{"id":"page-1","messaging":[
		{"sender":{"id":"user-1"},"referral":{"ref":"summer-raffle","source":"SHORTLINK","type":"OPEN_THREAD"}}
	]}]}`)
	if rec := f.post(t, referral, sign(referral)); rec.Code != http.StatusOK {
		t.Fatalf("referral status = %d, want 200", rec.Code)
	}
	var threads int64
	if err := f.db.Model(&types.Thread{}).Count(&threads).Error; err != nil {
		t.Fatalf("count threads: %v", err)
	}
	if threads != 1 {
		t.Fatalf("threads = %d, want 1", threads)
	}

	answer := []byte(`{"object":"page","entry":[{"id":"page-1","messaging":[
		{"sender":{"id":"user-1"},"message":{"mid":"m1","text":"red"}}
	]}]}`)
	if rec := f.post(t, answer, sign(answer)); rec.Code != http.StatusOK {
		t.Fatalf("answer status = %d, want 200", rec.Code)
	}
	var entry types.Entry
	if err := f.db.Where("task_id = ? AND external_user_id = ?", task.ID, "user-1").First(&entry).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if entry.AnswerText == nil || *entry.AnswerText != "red" {
		t.Fatalf("answer = %v, want red", entry.AnswerText)
	}
}

func TestWebhookReceive_FeedChangeThroughHTTP(t *testing.T) {
	f := newWebhookFixture(t)
	if err := f.db.Create(&types.CommentSourceConfig{
		ContestID: f.contest.ID,
		PageID:    "page-1",
		PostID:    "post-1",
		IsActive:  true,
		InputMode: types.CommentInputModeText,
	}).Error; err != nil {
		t.Fatalf("create source config: %v", err)
	}

	change := []byte(`{"object":"page","entry":[{"id":"page-1","changes":[
		{"field":"feed","value":{"item":"comment","verb":"add","post_id":"post-1",
		 "comment_id":"comment-1","message":"my answer","from":{"id":"user-1","name":"User"}}}
	]}]}`)
	rec := f.post(t, change, sign(change))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var row types.CommentEntry
	if err := f.db.Where("comment_id = ?", "comment-1").First(&row).Error; err != nil {
		t.Fatalf("load comment entry: %v", err)
	}
	if row.Status != types.CommentEntryStatusPending {
		t.Fatalf("status = %q, want PENDING", row.Status)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
