package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hamlaty/contest-backend/internal/clients/graph"
	"github.com/hamlaty/contest-backend/internal/clients/redis"
	"github.com/hamlaty/contest-backend/internal/logger"
	pkgerrors "github.com/hamlaty/contest-backend/internal/pkg/errors"
	"github.com/hamlaty/contest-backend/internal/repos"
	"github.com/hamlaty/contest-backend/internal/types"
)

// CommentIngestService processes one feed change event end to end: dedup,
// source lookup, quota, best-effort enrichment and offload, classification,
// idempotent insert, audit. Events are independent; a bad one is skipped
// and never aborts its batch.
type CommentIngestService interface {
	HandleChange(ctx context.Context, pageID string, change types.ChangeEvent) error
}

type commentIngestService struct {
	log         *logger.Logger
	sources     repos.CommentSourceConfigRepo
	comments    repos.CommentEntryRepo
	pageLinks   repos.PageLinkRepo
	taskRepo    repos.TaskRepo
	cipher      TokenCipher
	graphClient graph.Client
	offloader   AttachmentOffloader
	classifier  CommentClassifier
	audit       AuditService
	dedup       redis.DedupCache
}

func NewCommentIngestService(
	log *logger.Logger,
	sources repos.CommentSourceConfigRepo,
	comments repos.CommentEntryRepo,
	pageLinks repos.PageLinkRepo,
	taskRepo repos.TaskRepo,
	cipher TokenCipher,
	graphClient graph.Client,
	offloader AttachmentOffloader,
	classifier CommentClassifier,
	audit AuditService,
	dedup redis.DedupCache,
) CommentIngestService {
	serviceLog := log.With("service", "CommentIngestService")
	return &commentIngestService{
		log:         serviceLog,
		sources:     sources,
		comments:    comments,
		pageLinks:   pageLinks,
		taskRepo:    taskRepo,
		cipher:      cipher,
		graphClient: graphClient,
		offloader:   offloader,
		classifier:  classifier,
		audit:       audit,
		dedup:       dedup,
	}
}

func (cs *commentIngestService) HandleChange(ctx context.Context, pageID string, change types.ChangeEvent) error {
	value := change.Value
	if change.Field != "feed" || value.Item != "comment" || value.Verb != "add" {
		return nil
	}
	if value.CommentID == "" || value.PostID == "" {
		return nil
	}

	// Idempotency gate: redis is a fast path only, the comment_id unique
	// index stays authoritative.
	if cs.dedup != nil && cs.dedup.Seen(ctx, value.CommentID) {
		cs.log.Debug("Duplicate comment delivery (cache), skipping", "comment_id", value.CommentID)
		return nil
	}
	exists, err := cs.comments.ExistsByCommentID(ctx, nil, value.CommentID)
	if err != nil {
		return fmt.Errorf("dedup check: %w", err)
	}
	if exists {
		if cs.dedup != nil {
			cs.dedup.Mark(ctx, value.CommentID)
		}
		cs.log.Debug("Duplicate comment delivery, skipping", "comment_id", value.CommentID)
		return nil
	}

	cfg, err := cs.sources.GetActiveByPagePost(ctx, nil, pageID, value.PostID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			cs.log.Debug("No active source config for post, ignoring", "page_id", pageID, "post_id", value.PostID)
			return nil
		}
		return fmt.Errorf("load source config: %w", err)
	}

	if value.ParentID != "" && !cfg.AllowReplies {
		cs.log.Debug("Reply comment on reply-disabled source, ignoring", "comment_id", value.CommentID)
		return nil
	}

	maxAnswers := cfg.MaxAnswersPerUser
	if !cfg.AllowMultipleAnswers || maxAnswers <= 0 {
		maxAnswers = 1
	}
	prior, err := cs.comments.CountByContestPostUser(ctx, nil, cfg.ContestID, value.PostID, value.From.ID)
	if err != nil {
		return fmt.Errorf("quota count: %w", err)
	}
	quotaExceeded := prior >= int64(maxAnswers)

	detail := cs.enrich(ctx, pageID, value)

	offload := OffloadResult{State: OffloadSkipped, Reason: "no media url"}
	if detail.attachmentURL != "" && cs.offloader != nil {
		prefix := fmt.Sprintf("comments/%s/%s", cfg.ContestID, value.PostID)
		offload = cs.offloader.Offload(ctx, prefix, value.CommentID, detail.attachmentURL)
	}

	var classification Classification
	if quotaExceeded {
		// Over-quota comments are preserved, not dropped; they just never
		// reach the classifier.
		classification = Classification{Status: types.CommentEntryStatusDisqualified}
	} else {
		options, optErr := cs.resolveOptions(ctx, cfg)
		if optErr != nil {
			return optErr
		}
		classification = cs.classifier.Classify(cfg, options, detail.message, offload.Succeeded())
	}

	entry := cs.buildEntry(cfg, pageID, value, detail, offload, classification)
	inserted, err := cs.comments.InsertIgnore(ctx, nil, entry)
	if err != nil {
		return fmt.Errorf("insert comment entry: %w", err)
	}
	if cs.dedup != nil {
		cs.dedup.Mark(ctx, value.CommentID)
	}
	if !inserted {
		cs.log.Debug("Comment raced a duplicate insert, no-op", "comment_id", value.CommentID)
		return nil
	}

	cs.audit.Record(ctx, nil, "comment", pageID, "comment_ingested", map[string]any{
		"post_id":        value.PostID,
		"comment_id":     value.CommentID,
		"user":           MaskUserID(value.From.ID),
		"status":         string(entry.Status),
		"quota_exceeded": quotaExceeded,
		"offload":        string(offload.State),
	})
	return nil
}

// commentDetail is the merged view of inline webhook fields and the
// best-effort Graph detail fetch.
type commentDetail struct {
	message       string
	userName      string
	createdAt     *time.Time
	attachmentURL string
}

func (cs *commentIngestService) enrich(ctx context.Context, pageID string, value types.ChangeValue) commentDetail {
	detail := commentDetail{
		message:       strings.TrimSpace(value.Message),
		userName:      strings.TrimSpace(value.From.Name),
		attachmentURL: firstNonEmpty(value.Photo, value.Video),
	}
	if value.CreatedTime > 0 {
		t := time.Unix(value.CreatedTime, 0).UTC()
		detail.createdAt = &t
	}

	if cs.graphClient == nil {
		return detail
	}
	link, err := cs.pageLinks.GetByPageID(ctx, nil, pageID)
	if err != nil {
		cs.log.Debug("No page link for detail fetch, using inline fields", "page_id", pageID)
		return detail
	}
	token, err := cs.cipher.Open(link.SealedAccessToken)
	if err != nil {
		cs.log.Warn("Could not open page access token, using inline fields", "page_id", pageID, "error", err)
		return detail
	}

	fetched, err := cs.graphClient.FetchCommentDetail(ctx, token, value.CommentID)
	if err != nil {
		cs.log.Warn("Comment detail fetch degraded to inline fields", "comment_id", value.CommentID, "error", err)
		return detail
	}
	if m := strings.TrimSpace(fetched.Message); m != "" {
		detail.message = m
	}
	if n := strings.TrimSpace(fetched.FromName); n != "" {
		detail.userName = n
	}
	if !fetched.CreatedTime.IsZero() {
		t := fetched.CreatedTime.UTC()
		detail.createdAt = &t
	}
	if u := strings.TrimSpace(fetched.AttachmentURL); u != "" {
		detail.attachmentURL = u
	}
	return detail
}

func (cs *commentIngestService) resolveOptions(ctx context.Context, cfg *types.CommentSourceConfig) ([]ClassifierOption, error) {
	if cfg.InputMode != types.CommentInputModeMCQ {
		return nil, nil
	}
	if cfg.TaskID != nil {
		task, err := cs.taskRepo.GetByID(ctx, nil, *cfg.TaskID)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrNotFound) {
				cs.log.Warn("Source config points at missing task", "task_id", *cfg.TaskID)
				return nil, nil
			}
			return nil, fmt.Errorf("load linked task: %w", err)
		}
		options := make([]ClassifierOption, 0, len(task.Options))
		for i := range task.Options {
			opt := task.Options[i]
			isCorrect := opt.IsCorrect
			options = append(options, ClassifierOption{ID: &opt.ID, Label: opt.Label, IsCorrect: &isCorrect})
		}
		return options, nil
	}

	var labels []string
	if len(cfg.AllowedOptions) > 0 {
		if err := json.Unmarshal(cfg.AllowedOptions, &labels); err != nil {
			cs.log.Warn("Allowed options are not a string array", "error", err)
		}
	}
	options := make([]ClassifierOption, 0, len(labels))
	for _, label := range labels {
		options = append(options, ClassifierOption{Label: label})
	}
	return options, nil
}

func (cs *commentIngestService) buildEntry(cfg *types.CommentSourceConfig, pageID string, value types.ChangeValue, detail commentDetail, offload OffloadResult, classification Classification) *types.CommentEntry {
	raw, err := json.Marshal(value)
	if err != nil {
		raw = []byte(`{}`)
	}

	entry := &types.CommentEntry{
		ContestID:      cfg.ContestID,
		PageID:         pageID,
		PostID:         value.PostID,
		CommentID:      value.CommentID,
		ExternalUserID: value.From.ID,
		TaskID:         cfg.TaskID,
		Status:         classification.Status,
		AnswerText:     classification.AnswerText,
		MCQOptionID:    classification.MCQOptionID,
		IsCorrect:      classification.IsCorrect,
		RawEvent:       raw,
	}
	if value.ParentID != "" {
		parent := value.ParentID
		entry.ParentCommentID = &parent
	}
	if detail.message != "" {
		msg := detail.message
		entry.MessageText = &msg
	}
	if detail.userName != "" {
		name := detail.userName
		entry.ExternalUserName = &name
	}
	entry.ExternalCommentCreatedAt = detail.createdAt
	if offload.Succeeded() {
		entry.AttachmentKey = &offload.Key
		entry.AttachmentURL = &offload.URL
		entry.AttachmentHash = &offload.Hash
		entry.AttachmentSize = &offload.Size
		if offload.ETag != "" {
			entry.AttachmentETag = &offload.ETag
		}
	}
	return entry
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
