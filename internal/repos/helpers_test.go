package repos

import (
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hamlaty/contest-backend/internal/logger"
	"github.com/hamlaty/contest-backend/internal/types"
)

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

func createContest(t *testing.T, db *gorm.DB, slug string) *types.Contest {
	t.Helper()
	contest := &types.Contest{Slug: slug, Title: slug}
	if err := db.Create(contest).Error; err != nil {
		t.Fatalf("create contest: %v", err)
	}
	return contest
}

func intPtr(n int) *int { return &n }
