package services

import (
	"strings"

	"github.com/google/uuid"

	"github.com/hamlaty/contest-backend/internal/logger"
	"github.com/hamlaty/contest-backend/internal/normalization"
	"github.com/hamlaty/contest-backend/internal/types"
)

// ClassifierOption is one answer candidate in display order. ID and
// IsCorrect are set when the candidate comes from a linked task's MCQ
// options; label-only candidates come from the source config.
type ClassifierOption struct {
	ID        *uuid.UUID
	Label     string
	IsCorrect *bool
}

type Classification struct {
	Status      types.CommentEntryStatus
	AnswerText  *string
	MCQOptionID *uuid.UUID
	IsCorrect   *bool
}

// CommentClassifier maps one comment's text/media against a source config's
// expected answer shape. A non-match is a terminal DISQUALIFIED outcome, not
// an error.
type CommentClassifier interface {
	Classify(cfg *types.CommentSourceConfig, options []ClassifierOption, message string, hasAttachment bool) Classification
}

type commentClassifier struct {
	log *logger.Logger
}

func NewCommentClassifier(log *logger.Logger) CommentClassifier {
	serviceLog := log.With("service", "CommentClassifier")
	return &commentClassifier{log: serviceLog}
}

func (cc *commentClassifier) Classify(cfg *types.CommentSourceConfig, options []ClassifierOption, message string, hasAttachment bool) Classification {
	message = strings.TrimSpace(message)

	switch cfg.InputMode {
	case types.CommentInputModeMCQ:
		return cc.classifyMCQ(options, message)
	case types.CommentInputModeText:
		if message == "" {
			return disqualified()
		}
		return pendingText(message)
	case types.CommentInputModeMediaOnly:
		if !hasAttachment {
			return disqualified()
		}
		// answer_text stays null for media answers.
		return Classification{Status: types.CommentEntryStatusPending}
	case types.CommentInputModeTextOrMedia:
		if cfg.RequireText && message == "" {
			return disqualified()
		}
		if message == "" && !hasAttachment {
			return disqualified()
		}
		if message == "" {
			return Classification{Status: types.CommentEntryStatusPending}
		}
		return pendingText(message)
	default:
		cc.log.Warn("Unknown comment input mode", "input_mode", string(cfg.InputMode))
		return disqualified()
	}
}

func (cc *commentClassifier) classifyMCQ(options []ClassifierOption, message string) Classification {
	if len(options) == 0 || message == "" {
		return disqualified()
	}

	// A short token naming a 1-based position wins over label matching:
	// "2", "٢", "b" and "ب" all select the second displayed option.
	if idx, ok := normalization.OrdinalIndex(message); ok && idx >= 1 && idx <= len(options) {
		return matched(options[idx-1])
	}

	foldedMsg := normalization.Fold(message)
	compactMsg := normalization.Compact(message)
	if foldedMsg == "" {
		return disqualified()
	}

	for _, opt := range options {
		if normalization.Fold(opt.Label) == foldedMsg {
			return matched(opt)
		}
	}
	for _, opt := range options {
		if compact := normalization.Compact(opt.Label); compact != "" && compact == compactMsg {
			return matched(opt)
		}
	}
	// Containment is last and only for labels long enough that a substring
	// hit is meaningful.
	for _, opt := range options {
		compact := normalization.Compact(opt.Label)
		if len([]rune(compact)) >= 3 && strings.Contains(compactMsg, compact) {
			return matched(opt)
		}
	}
	return disqualified()
}

func matched(opt ClassifierOption) Classification {
	label := opt.Label
	return Classification{
		Status:      types.CommentEntryStatusPending,
		AnswerText:  &label,
		MCQOptionID: opt.ID,
		IsCorrect:   opt.IsCorrect,
	}
}

func pendingText(message string) Classification {
	return Classification{Status: types.CommentEntryStatusPending, AnswerText: &message}
}

func disqualified() Classification {
	return Classification{Status: types.CommentEntryStatusDisqualified}
}
