package services

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hamlaty/contest-backend/internal/clients/graph"
	"github.com/hamlaty/contest-backend/internal/logger"
	"github.com/hamlaty/contest-backend/internal/types"
)

const testCipherKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// A second pooled connection would see its own empty :memory: database.
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
	return db
}

// fakeGraphClient records outbound sends and serves a canned comment detail.
type fakeGraphClient struct {
	sent        []sentMessage
	detail      *graph.CommentDetail
	detailErr   error
	sendErr     error
	detailCalls int
}

type sentMessage struct {
	PSID         string
	Text         string
	QuickReplies []graph.QuickReply
	ButtonTitle  string
	ButtonURL    string
}

func (f *fakeGraphClient) SendText(ctx context.Context, accessToken, psid, text string) error {
	f.sent = append(f.sent, sentMessage{PSID: psid, Text: text})
	return f.sendErr
}

func (f *fakeGraphClient) SendQuickReplies(ctx context.Context, accessToken, psid, text string, replies []graph.QuickReply) error {
	f.sent = append(f.sent, sentMessage{PSID: psid, Text: text, QuickReplies: replies})
	return f.sendErr
}

func (f *fakeGraphClient) SendButtonLink(ctx context.Context, accessToken, psid, text, buttonTitle, buttonURL string) error {
	f.sent = append(f.sent, sentMessage{PSID: psid, Text: text, ButtonTitle: buttonTitle, ButtonURL: buttonURL})
	return f.sendErr
}

func (f *fakeGraphClient) FetchCommentDetail(ctx context.Context, accessToken, commentID string) (*graph.CommentDetail, error) {
	f.detailCalls++
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	if f.detail != nil {
		return f.detail, nil
	}
	return nil, fmt.Errorf("no detail configured")
}

func (f *fakeGraphClient) lastSent(t *testing.T) sentMessage {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatalf("expected at least one outbound send")
	}
	return f.sent[len(f.sent)-1]
}

// fakeOffloader returns a fixed result without touching the network.
type fakeOffloader struct {
	result OffloadResult
	calls  int
}

func (f *fakeOffloader) Offload(ctx context.Context, keyPrefix, commentID, mediaURL string) OffloadResult {
	f.calls = f.calls + 1
	return f.result
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }
