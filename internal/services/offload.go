package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hamlaty/contest-backend/internal/clients/gcs"
	"github.com/hamlaty/contest-backend/internal/logger"
)

type OffloadState string

const (
	// OffloadSucceeded: the object is durably stored and the result carries
	// its key, URL, hash and size.
	OffloadSucceeded OffloadState = "succeeded"
	// OffloadDegraded: download or upload failed; the comment is still
	// recorded, without hosted attachment metadata.
	OffloadDegraded OffloadState = "degraded"
	// OffloadSkipped: nothing to offload (no media URL, or no storage
	// backend configured).
	OffloadSkipped OffloadState = "skipped"
)

type OffloadResult struct {
	State  OffloadState
	Reason string
	Key    string
	URL    string
	ETag   string
	Size   int64
	Hash   string
}

func (r OffloadResult) Succeeded() bool { return r.State == OffloadSucceeded }

// AttachmentOffloader copies a platform-hosted media URL into durable object
// storage, computing a content hash while streaming.
type AttachmentOffloader interface {
	Offload(ctx context.Context, keyPrefix, commentID, mediaURL string) OffloadResult
}

type attachmentOffloader struct {
	log          *logger.Logger
	bucket       gcs.BucketService
	httpClient   *http.Client
	maxSizeBytes int64
}

func NewAttachmentOffloader(log *logger.Logger, bucket gcs.BucketService, maxSizeBytes int64) AttachmentOffloader {
	serviceLog := log.With("service", "AttachmentOffloader")
	if maxSizeBytes <= 0 {
		maxSizeBytes = 25 << 20
	}
	return &attachmentOffloader{
		log:          serviceLog,
		bucket:       bucket,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
		maxSizeBytes: maxSizeBytes,
	}
}

func (ao *attachmentOffloader) Offload(ctx context.Context, keyPrefix, commentID, mediaURL string) OffloadResult {
	mediaURL = strings.TrimSpace(mediaURL)
	if mediaURL == "" {
		return OffloadResult{State: OffloadSkipped, Reason: "no media url"}
	}
	if ao.bucket == nil {
		return OffloadResult{State: OffloadSkipped, Reason: "object storage not configured"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return ao.degraded(commentID, fmt.Errorf("build download request: %w", err))
	}
	resp, err := ao.httpClient.Do(req)
	if err != nil {
		return ao.degraded(commentID, fmt.Errorf("download media: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ao.degraded(commentID, fmt.Errorf("download media: status=%d", resp.StatusCode))
	}

	key := strings.TrimRight(keyPrefix, "/") + "/" + commentID + extForMediaURL(mediaURL, resp.Header.Get("Content-Type"))

	hasher := sha256.New()
	counted := &countingReader{r: io.TeeReader(io.LimitReader(resp.Body, ao.maxSizeBytes+1), hasher)}
	if err := ao.bucket.Upload(ctx, key, counted); err != nil {
		return ao.degraded(commentID, fmt.Errorf("upload to storage: %w", err))
	}
	if counted.n > ao.maxSizeBytes {
		return ao.degraded(commentID, fmt.Errorf("media exceeds size cap of %d bytes", ao.maxSizeBytes))
	}

	result := OffloadResult{
		State: OffloadSucceeded,
		Key:   key,
		URL:   ao.bucket.PublicURL(key),
		Size:  counted.n,
		Hash:  hex.EncodeToString(hasher.Sum(nil)),
	}
	if attrs, err := ao.bucket.ObjectAttrs(ctx, key); err == nil {
		result.ETag = attrs.ETag
	} else {
		ao.log.Debug("Stored object attrs unavailable", "key", key, "error", err)
	}
	return result
}

func (ao *attachmentOffloader) degraded(commentID string, err error) OffloadResult {
	ao.log.Warn("Attachment offload degraded", "comment_id", commentID, "error", err)
	return OffloadResult{State: OffloadDegraded, Reason: err.Error()}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func extForMediaURL(mediaURL, contentType string) string {
	if parsed, err := url.Parse(mediaURL); err == nil {
		if ext := strings.ToLower(path.Ext(parsed.Path)); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	switch {
	case strings.HasPrefix(contentType, "image/png"):
		return ".png"
	case strings.HasPrefix(contentType, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(contentType, "image/gif"):
		return ".gif"
	case strings.HasPrefix(contentType, "image/webp"):
		return ".webp"
	case strings.HasPrefix(contentType, "video/mp4"):
		return ".mp4"
	default:
		return ""
	}
}
