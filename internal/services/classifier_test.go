package services

import (
	"testing"

	"github.com/google/uuid"

	"github.com/hamlaty/contest-backend/internal/types"
)

func mcqOptions() []ClassifierOption {
	redID := uuid.New()
	blueID := uuid.New()
	yes := true
	no := false
	return []ClassifierOption{
		{ID: &redID, Label: "Red", IsCorrect: &no},
		{ID: &blueID, Label: "أزرق", IsCorrect: &yes},
	}
}

func TestClassify_MCQOrdinalsAndLabels(t *testing.T) {
	classifier := NewCommentClassifier(newTestLogger())
	options := mcqOptions()
	cfg := &types.CommentSourceConfig{InputMode: types.CommentInputModeMCQ}

	cases := []struct {
		name    string
		message string
		wantIdx int
	}{
		{name: "digit_one", message: "1", wantIdx: 0},
		{name: "letter_a_lower", message: "a", wantIdx: 0},
		{name: "letter_a_upper", message: "A", wantIdx: 0},
		{name: "label_exact", message: "Red", wantIdx: 0},
		{name: "label_case_and_punct", message: "red!!", wantIdx: 0},
		{name: "digit_two", message: "2", wantIdx: 1},
		{name: "arabic_digit_two", message: "٢", wantIdx: 1},
		{name: "letter_b", message: "B", wantIdx: 1},
		{name: "abjad_ba", message: "ب", wantIdx: 1},
		{name: "arabic_label", message: "أزرق", wantIdx: 1},
		{name: "arabic_label_variant", message: "ازرق", wantIdx: 1},
		{name: "label_in_sentence", message: "اختار أزرق طبعا", wantIdx: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifier.Classify(cfg, options, tc.message, false)
			if got.Status != types.CommentEntryStatusPending {
				t.Fatalf("status = %q, want PENDING", got.Status)
			}
			want := options[tc.wantIdx]
			if got.MCQOptionID == nil || *got.MCQOptionID != *want.ID {
				t.Fatalf("option id mismatch for %q", tc.message)
			}
			if got.AnswerText == nil || *got.AnswerText != want.Label {
				t.Fatalf("answer text = %v, want %q", got.AnswerText, want.Label)
			}
			if got.IsCorrect == nil || *got.IsCorrect != *want.IsCorrect {
				t.Fatalf("is_correct mismatch for %q", tc.message)
			}
		})
	}
}

func TestClassify_MCQDisqualifies(t *testing.T) {
	classifier := NewCommentClassifier(newTestLogger())
	cfg := &types.CommentSourceConfig{InputMode: types.CommentInputModeMCQ}
	options := mcqOptions()

	cases := []struct {
		name    string
		options []ClassifierOption
		message string
	}{
		{name: "no_match", options: options, message: "green"},
		{name: "ordinal_out_of_range", options: options, message: "3"},
		{name: "empty_message", options: options, message: ""},
		{name: "punctuation_only", options: options, message: "???"},
		{name: "no_options", options: nil, message: "1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifier.Classify(cfg, tc.options, tc.message, false)
			if got.Status != types.CommentEntryStatusDisqualified {
				t.Fatalf("status = %q, want DISQUALIFIED", got.Status)
			}
			if got.MCQOptionID != nil || got.AnswerText != nil {
				t.Fatalf("disqualified classification must carry no answer")
			}
		})
	}
}

func TestClassify_TextMode(t *testing.T) {
	classifier := NewCommentClassifier(newTestLogger())
	cfg := &types.CommentSourceConfig{InputMode: types.CommentInputModeText}

	got := classifier.Classify(cfg, nil, "  my answer  ", false)
	if got.Status != types.CommentEntryStatusPending {
		t.Fatalf("status = %q, want PENDING", got.Status)
	}
	if got.AnswerText == nil || *got.AnswerText != "my answer" {
		t.Fatalf("answer text = %v, want trimmed message", got.AnswerText)
	}

	if got := classifier.Classify(cfg, nil, "   ", true); got.Status != types.CommentEntryStatusDisqualified {
		t.Fatalf("empty text must disqualify even with media")
	}
}

func TestClassify_MediaOnly(t *testing.T) {
	classifier := NewCommentClassifier(newTestLogger())
	cfg := &types.CommentSourceConfig{InputMode: types.CommentInputModeMediaOnly}

	got := classifier.Classify(cfg, nil, "nice photo", true)
	if got.Status != types.CommentEntryStatusPending {
		t.Fatalf("status = %q, want PENDING", got.Status)
	}
	if got.AnswerText != nil {
		t.Fatalf("media answers carry no answer text, got %q", *got.AnswerText)
	}

	if got := classifier.Classify(cfg, nil, "text but no media", false); got.Status != types.CommentEntryStatusDisqualified {
		t.Fatalf("missing attachment must disqualify")
	}
}

func TestClassify_TextOrMedia(t *testing.T) {
	classifier := NewCommentClassifier(newTestLogger())

	cases := []struct {
		name          string
		requireText   bool
		message       string
		hasAttachment bool
		wantStatus    types.CommentEntryStatus
		wantText      *string
	}{
		{name: "text_only", message: "hello", wantStatus: types.CommentEntryStatusPending, wantText: strPtr("hello")},
		{name: "media_only", hasAttachment: true, wantStatus: types.CommentEntryStatusPending},
		{name: "neither", wantStatus: types.CommentEntryStatusDisqualified},
		{name: "require_text_media_only", requireText: true, hasAttachment: true, wantStatus: types.CommentEntryStatusDisqualified},
		{name: "require_text_both", requireText: true, message: "hi", hasAttachment: true, wantStatus: types.CommentEntryStatusPending, wantText: strPtr("hi")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &types.CommentSourceConfig{InputMode: types.CommentInputModeTextOrMedia, RequireText: tc.requireText}
			got := classifier.Classify(cfg, nil, tc.message, tc.hasAttachment)
			if got.Status != tc.wantStatus {
				t.Fatalf("status = %q, want %q", got.Status, tc.wantStatus)
			}
			if tc.wantText == nil && got.AnswerText != nil {
				t.Fatalf("unexpected answer text %q", *got.AnswerText)
			}
			if tc.wantText != nil && (got.AnswerText == nil || *got.AnswerText != *tc.wantText) {
				t.Fatalf("answer text = %v, want %q", got.AnswerText, *tc.wantText)
			}
		})
	}
}
