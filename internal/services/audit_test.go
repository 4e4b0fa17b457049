package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/hamlaty/contest-backend/internal/repos"
)

func TestAuditService_CapsTrailingLog(t *testing.T) {
	db := newTestDB(t)
	log := newTestLogger()
	auditRepo := repos.NewAuditEventRepo(db, log)
	svc := NewAuditService(log, auditRepo, 50)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		svc.Record(ctx, nil, "comment", "page-1", "comment_ingested", map[string]any{"n": i})
	}

	events, err := auditRepo.ListNewest(ctx, nil, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 50 {
		t.Fatalf("events = %d, want 50", len(events))
	}
	// The newest rows survive; the first ten are evicted.
	for _, event := range events {
		for i := 0; i < 10; i++ {
			if string(event.Payload) == fmt.Sprintf(`{"n":%d}`, i) {
				t.Fatalf("evicted row %d still present", i)
			}
		}
	}
}

func TestMaskUserID(t *testing.T) {
	masked := MaskUserID("external-user-1")
	if !strings.HasPrefix(masked, "u:") {
		t.Fatalf("masked id = %q, want u: prefix", masked)
	}
	if strings.Contains(masked, "external-user-1") {
		t.Fatalf("masked id leaks the raw value")
	}
	if masked != MaskUserID("external-user-1") {
		t.Fatalf("masking must be deterministic")
	}
	if masked == MaskUserID("external-user-2") {
		t.Fatalf("distinct users must mask differently")
	}
	if MaskUserID("") != "" {
		t.Fatalf("empty id masks to empty")
	}
}
