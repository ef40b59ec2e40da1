package exports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"crescoflow/internal/adapters/storage"
	"crescoflow/internal/leads/domain"
)

const exportFolder = "exports"

// Publisher uploads CSV exports and hands out presigned download links.
type Publisher struct {
	store  storage.StorageService
	bucket string
	now    func() time.Time
}

func NewPublisher(store storage.StorageService, bucket string) *Publisher {
	return &Publisher{store: store, bucket: bucket, now: time.Now}
}

// FileName is the download name of an export made at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("crescoflow_leads_%s.csv", t.UTC().Format("20060102T150405"))
}

// Publish writes leads as CSV to the export bucket.
func (p *Publisher) Publish(ctx context.Context, leads []domain.Lead) (*storage.PresignedURL, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, leads); err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	now := p.now()
	folder := exportFolder + "/" + now.UTC().Format("2006-01-02")
	key, err := p.store.UploadFile(ctx, p.bucket, folder, FileName(now), ContentType, &buf, int64(buf.Len()))
	if err != nil {
		return nil, err
	}
	return p.store.GenerateDownloadURL(ctx, p.bucket, key)
}
