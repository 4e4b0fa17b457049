package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/hamlaty/contest-backend/internal/clients/graph"
	"github.com/hamlaty/contest-backend/internal/repos"
	"github.com/hamlaty/contest-backend/internal/types"
)

type commentsFixture struct {
	db        *gorm.DB
	svc       CommentIngestService
	graph     *fakeGraphClient
	offloader *fakeOffloader
	contest   *types.Contest
	audits    repos.AuditEventRepo
}

func newCommentsFixture(t *testing.T) *commentsFixture {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger()

	cipher, err := NewTokenCipher(testCipherKeyHex)
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
	link := &types.PageLink{PageID: "page-1", ContestID: contest.ID, SealedAccessToken: sealed}
	if err := db.Create(link).Error; err != nil {
		t.Fatalf("create page link: %v", err)
	}

	graphClient := &fakeGraphClient{detailErr: errTestUnavailable}
	offloader := &fakeOffloader{result: OffloadResult{State: OffloadSkipped, Reason: "no media url"}}
	audits := repos.NewAuditEventRepo(db, log)

	svc := NewCommentIngestService(
		log,
		repos.NewCommentSourceConfigRepo(db, log),
		repos.NewCommentEntryRepo(db, log),
		repos.NewPageLinkRepo(db, log),
		repos.NewTaskRepo(db, log),
		cipher,
		graphClient,
		offloader,
		NewCommentClassifier(log),
		NewAuditService(log, audits, 50),
		nil,
	)

	return &commentsFixture{
		db:        db,
		svc:       svc,
		graph:     graphClient,
		offloader: offloader,
		contest:   contest,
		audits:    audits,
	}
}

var errTestUnavailable = &testError{"graph unavailable"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

var graphDetailFixture = graph.CommentDetail{
	Message:     "fetched text",
	FromID:      "user-1",
	FromName:    "Fetched Name",
	CreatedTime: time.Unix(1720000500, 0),
}

func (f *commentsFixture) addSource(t *testing.T, mutate func(cfg *types.CommentSourceConfig)) *types.CommentSourceConfig {
	t.Helper()
	cfg := &types.CommentSourceConfig{
		ContestID: f.contest.ID,
		PageID:    "page-1",
		PostID:    "post-1",
		IsActive:  true,
		InputMode: types.CommentInputModeText,
	}
	if mutate != nil {
		mutate(cfg)
	}
	wantActive := cfg.IsActive
	if err := f.db.Create(cfg).Error; err != nil {
		t.Fatalf("create source config: %v", err)
	}
	if !wantActive {
		// GORM's create callback replaces a zero-valued field with its
		// `default:true` tag value (and writes it back to the struct), so
		// false must be persisted with an explicit update.
		if err := f.db.Model(cfg).Update("is_active", false).Error; err != nil {
			t.Fatalf("deactivate source config: %v", err)
		}
		cfg.IsActive = false
	}
	return cfg
}

func commentChange(commentID, userID, message string) types.ChangeEvent {
	value := types.ChangeValue{
		Item:        "comment",
		Verb:        "add",
		PostID:      "post-1",
		CommentID:   commentID,
		Message:     message,
		CreatedTime: 1720000000,
	}
	value.From.ID = userID
	value.From.Name = "Test User"
	return types.ChangeEvent{Field: "feed", Value: value}
}

func (f *commentsFixture) rows(t *testing.T) []types.CommentEntry {
	t.Helper()
	var rows []types.CommentEntry
	if err := f.db.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load comment entries: %v", err)
	}
	return rows
}

func TestComments_DuplicateRedeliveryWritesOneRow(t *testing.T) {
	f := newCommentsFixture(t)
	ctx := context.Background()
	f.addSource(t, nil)

	change := commentChange("comment-1", "user-1", "my answer")
	if err := f.svc.HandleChange(ctx, "page-1", change); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := f.svc.HandleChange(ctx, "page-1", change); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	rows := f.rows(t)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.Status != types.CommentEntryStatusPending {
		t.Fatalf("status = %q, want PENDING", row.Status)
	}
	if row.AnswerText == nil || *row.AnswerText != "my answer" {
		t.Fatalf("answer = %v", row.AnswerText)
	}
	if row.ExternalCommentCreatedAt == nil {
		t.Fatalf("inline created_time must survive enrichment degrade")
	}
}

func TestComments_OverQuotaPersistsDisqualified(t *testing.T) {
	f := newCommentsFixture(t)
	ctx := context.Background()
	f.addSource(t, nil) // default: one answer per user

	if err := f.svc.HandleChange(ctx, "page-1", commentChange("comment-1", "user-1", "first")); err != nil {
		t.Fatalf("first comment: %v", err)
	}
	if err := f.svc.HandleChange(ctx, "page-1", commentChange("comment-2", "user-1", "second")); err != nil {
		t.Fatalf("second comment: %v", err)
	}

	rows := f.rows(t)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 (over-quota comments persist)", len(rows))
	}
	byComment := map[string]types.CommentEntry{}
	for _, r := range rows {
		byComment[r.CommentID] = r
	}
	if byComment["comment-1"].Status != types.CommentEntryStatusPending {
		t.Fatalf("first comment status = %q, want PENDING", byComment["comment-1"].Status)
	}
	if byComment["comment-2"].Status != types.CommentEntryStatusDisqualified {
		t.Fatalf("second comment status = %q, want DISQUALIFIED", byComment["comment-2"].Status)
	}
}

func TestComments_MultipleAnswersHonorsConfiguredQuota(t *testing.T) {
	f := newCommentsFixture(t)
	ctx := context.Background()
	f.addSource(t, func(cfg *types.CommentSourceConfig) {
		cfg.AllowMultipleAnswers = true
		cfg.MaxAnswersPerUser = 2
	})

	for i, id := range []string{"c1", "c2", "c3"} {
		if err := f.svc.HandleChange(ctx, "page-1", commentChange(id, "user-1", "answer")); err != nil {
			t.Fatalf("comment %d: %v", i, err)
		}
	}
	rows := f.rows(t)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	disqualified := 0
	for _, r := range rows {
		if r.Status == types.CommentEntryStatusDisqualified {
			disqualified++
		}
	}
	if disqualified != 1 {
		t.Fatalf("disqualified = %d, want exactly the third comment", disqualified)
	}
}

func TestComments_MCQViaLinkedTask(t *testing.T) {
	f := newCommentsFixture(t)
	ctx := context.Background()

	task := &types.Task{ContestID: f.contest.ID, Kind: types.TaskKindMCQ, Title: "Pick"}
	if err := f.db.Create(task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	options := []types.MCQOption{
		{TaskID: task.ID, Label: "Red", Position: 0},
		{TaskID: task.ID, Label: "Blue", Position: 1, IsCorrect: true},
	}
	for i := range options {
		if err := f.db.Create(&options[i]).Error; err != nil {
			t.Fatalf("create option: %v", err)
		}
	}
	f.addSource(t, func(cfg *types.CommentSourceConfig) {
		cfg.InputMode = types.CommentInputModeMCQ
		cfg.TaskID = &task.ID
	})

	// "٢" is the second displayed option.
	if err := f.svc.HandleChange(ctx, "page-1", commentChange("comment-1", "user-1", "٢")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	rows := f.rows(t)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.Status != types.CommentEntryStatusPending {
		t.Fatalf("status = %q, want PENDING", row.Status)
	}
	if row.MCQOptionID == nil || *row.MCQOptionID != options[1].ID {
		t.Fatalf("mcq option = %v, want second option", row.MCQOptionID)
	}
	if row.IsCorrect == nil || !*row.IsCorrect {
		t.Fatalf("is_correct not recorded")
	}
	if row.TaskID == nil || *row.TaskID != task.ID {
		t.Fatalf("task id not recorded")
	}
}

func TestComments_MCQViaAllowedOptions(t *testing.T) {
	f := newCommentsFixture(t)
	ctx := context.Background()
	f.addSource(t, func(cfg *types.CommentSourceConfig) {
		cfg.InputMode = types.CommentInputModeMCQ
		cfg.AllowedOptions = datatypes.JSON(`["Red","Blue"]`)
	})

	if err := f.svc.HandleChange(ctx, "page-1", commentChange("comment-1", "user-1", "blue")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	rows := f.rows(t)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.Status != types.CommentEntryStatusPending {
		t.Fatalf("status = %q, want PENDING", row.Status)
	}
	if row.AnswerText == nil || *row.AnswerText != "Blue" {
		t.Fatalf("answer = %v, want canonical label", row.AnswerText)
	}
	if row.MCQOptionID != nil {
		t.Fatalf("label-only options carry no option id")
	}
}

func TestComments_NoSourceConfigIgnored(t *testing.T) {
	f := newCommentsFixture(t)
	ctx := context.Background()

	if err := f.svc.HandleChange(ctx, "page-1", commentChange("comment-1", "user-1", "hello")); err != nil {
		t.Fatalf("expected missing config to be a silent skip, got %v", err)
	}
	if rows := f.rows(t); len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}
}

func TestComments_InactiveSourceIgnored(t *testing.T) {
	f := newCommentsFixture(t)
	ctx := context.Background()
	f.addSource(t, func(cfg *types.CommentSourceConfig) {
		cfg.IsActive = false
	})

	if err := f.svc.HandleChange(ctx, "page-1", commentChange("comment-1", "user-1", "hello")); err != nil {
		t.Fatalf("inactive config should be a silent skip, got %v", err)
	}
	if rows := f.rows(t); len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}
}

func TestComments_ReplyFiltering(t *testing.T) {
	f := newCommentsFixture(t)
	ctx := context.Background()
	f.addSource(t, nil) // replies disabled by default

	change := commentChange("comment-2", "user-1", "me too")
	change.Value.ParentID = "comment-1"
	if err := f.svc.HandleChange(ctx, "page-1", change); err != nil {
		t.Fatalf("reply on reply-disabled source: %v", err)
	}
	if rows := f.rows(t); len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}
}

func TestComments_ReplyAllowedRecordsParent(t *testing.T) {
	f := newCommentsFixture(t)
	ctx := context.Background()
	f.addSource(t, func(cfg *types.CommentSourceConfig) {
		cfg.AllowReplies = true
	})

	change := commentChange("comment-2", "user-1", "me too")
	change.Value.ParentID = "comment-1"
	if err := f.svc.HandleChange(ctx, "page-1", change); err != nil {
		t.Fatalf("handle reply: %v", err)
	}
	rows := f.rows(t)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].ParentCommentID == nil || *rows[0].ParentCommentID != "comment-1" {
		t.Fatalf("parent comment id not recorded")
	}
}

func TestComments_MediaOnlyWithOffload(t *testing.T) {
	f := newCommentsFixture(t)
	ctx := context.Background()
	f.addSource(t, func(cfg *types.CommentSourceConfig) {
		cfg.InputMode = types.CommentInputModeMediaOnly
	})
	f.offloader.result = OffloadResult{
		State: OffloadSucceeded,
		Key:   "comments/x/post-1/comment-1.jpg",
		URL:   "https://cdn.example.com/comments/x/post-1/comment-1.jpg",
		Size:  1234,
		Hash:  "abc123",
		ETag:  "etag-1",
	}

	change := commentChange("comment-1", "user-1", "")
	change.Value.Photo = "https://platform.example.com/photo.jpg"
	if err := f.svc.HandleChange(ctx, "page-1", change); err != nil {
		t.Fatalf("handle: %v", err)
	}

	rows := f.rows(t)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.Status != types.CommentEntryStatusPending {
		t.Fatalf("status = %q, want PENDING", row.Status)
	}
	if row.AttachmentKey == nil || row.AttachmentURL == nil || row.AttachmentHash == nil || row.AttachmentSize == nil {
		t.Fatalf("attachment metadata missing: %+v", row)
	}
	if f.offloader.calls != 1 {
		t.Fatalf("offloader calls = %d, want 1", f.offloader.calls)
	}
}

func TestComments_MediaOnlyDegradedOffloadDisqualifies(t *testing.T) {
	f := newCommentsFixture(t)
	ctx := context.Background()
	f.addSource(t, func(cfg *types.CommentSourceConfig) {
		cfg.InputMode = types.CommentInputModeMediaOnly
	})
	f.offloader.result = OffloadResult{State: OffloadDegraded, Reason: "download failed"}

	change := commentChange("comment-1", "user-1", "")
	change.Value.Photo = "https://platform.example.com/photo.jpg"
	if err := f.svc.HandleChange(ctx, "page-1", change); err != nil {
		t.Fatalf("handle: %v", err)
	}

	rows := f.rows(t)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1 (degraded offload still records the comment)", len(rows))
	}
	row := rows[0]
	if row.Status != types.CommentEntryStatusDisqualified {
		t.Fatalf("status = %q, want DISQUALIFIED", row.Status)
	}
	if row.AttachmentKey != nil {
		t.Fatalf("degraded offload must not record attachment metadata")
	}
}

func TestComments_EnrichmentPrefersFetchedDetail(t *testing.T) {
	f := newCommentsFixture(t)
	ctx := context.Background()
	f.addSource(t, nil)
	f.graph.detailErr = nil
	f.graph.detail = &graphDetailFixture

	if err := f.svc.HandleChange(ctx, "page-1", commentChange("comment-1", "user-1", "inline text")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	rows := f.rows(t)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.MessageText == nil || *row.MessageText != "fetched text" {
		t.Fatalf("message = %v, want fetched detail to win", row.MessageText)
	}
	if row.ExternalUserName == nil || *row.ExternalUserName != "Fetched Name" {
		t.Fatalf("user name = %v, want fetched name", row.ExternalUserName)
	}
}

func TestComments_AuditTrailMasksUser(t *testing.T) {
	f := newCommentsFixture(t)
	ctx := context.Background()
	f.addSource(t, nil)

	if err := f.svc.HandleChange(ctx, "page-1", commentChange("comment-1", "user-secret-id", "hello")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	events, err := f.audits.ListNewest(ctx, nil, 10)
	if err != nil {
		t.Fatalf("list audit events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("audit events = %d, want 1", len(events))
	}
	event := events[0]
	if event.EventType != "comment_ingested" {
		t.Fatalf("event type = %q", event.EventType)
	}
	payload := string(event.Payload)
	if strings.Contains(payload, "user-secret-id") {
		t.Fatalf("audit payload leaks the raw external user id: %s", payload)
	}
	if !strings.Contains(payload, MaskUserID("user-secret-id")) {
		t.Fatalf("audit payload missing masked user id: %s", payload)
	}
}

func TestComments_NonCommentChangesIgnored(t *testing.T) {
	f := newCommentsFixture(t)
	ctx := context.Background()
	f.addSource(t, nil)

	cases := []struct {
		name   string
		mutate func(c *types.ChangeEvent)
	}{
		{name: "wrong_field", mutate: func(c *types.ChangeEvent) { c.Field = "mention" }},
		{name: "wrong_item", mutate: func(c *types.ChangeEvent) { c.Value.Item = "post" }},
		{name: "wrong_verb", mutate: func(c *types.ChangeEvent) { c.Value.Verb = "remove" }},
		{name: "missing_comment_id", mutate: func(c *types.ChangeEvent) { c.Value.CommentID = "" }},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			change := commentChange(uuid.NewString(), "user-1", "hello")
			tc.mutate(&change)
			if err := f.svc.HandleChange(ctx, "page-1", change); err != nil {
				t.Fatalf("case %d: %v", i, err)
			}
		})
	}
	if rows := f.rows(t); len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}
}
