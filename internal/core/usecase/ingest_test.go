package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
)

type ingestRepoFake struct {
	created *domain.Document
	err     error
}

func (f *ingestRepoFake) Create(ctx context.Context, doc *domain.Document) error {
	if f.err != nil {
		return f.err
	}
	f.created = doc
	return nil
}

func (f *ingestRepoFake) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return nil, errors.New("not used")
}

func (f *ingestRepoFake) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	return nil
}

func (f *ingestRepoFake) SetChunkCount(ctx context.Context, id string, chunkCount int) error {
	return nil
}

type ingestStorageFake struct {
	savedKey string
	saved    []byte
	err      error
}

func (f *ingestStorageFake) Save(ctx context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	f.savedKey = key
	b, _ := io.ReadAll(data)
	f.saved = b
	return nil
}

func (f *ingestStorageFake) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, errors.New("not used")
}

type ingestQueueFake struct {
	published []string
	err       error
}

func (f *ingestQueueFake) PublishDocumentIngested(ctx context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *ingestQueueFake) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	return errors.New("not used")
}

func TestIngestUploadSuccess(t *testing.T) {
	repo := &ingestRepoFake{}
	storage := &ingestStorageFake{}
	queue := &ingestQueueFake{}
	svc := NewIngestDocumentService(repo, storage, queue)

	doc, err := svc.Upload(context.Background(), "report 2024.pdf", "application/pdf", bytes.NewBufferString("pdf-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID == "" {
		t.Fatal("expected a generated document id")
	}
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("expected status uploaded, got %s", doc.Status)
	}
	if repo.created == nil || repo.created.ID != doc.ID {
		t.Fatal("document metadata was not persisted")
	}
	if !strings.HasPrefix(storage.savedKey, doc.ID+"_") || !strings.HasSuffix(storage.savedKey, "report_2024.pdf") {
		t.Fatalf("unexpected storage key: %q", storage.savedKey)
	}
	if string(storage.saved) != "pdf-bytes" {
		t.Fatalf("unexpected stored payload: %q", storage.saved)
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("expected one ingestion event for %q, got %v", doc.ID, queue.published)
	}
}

func TestIngestUploadStorageFailureSkipsMetadata(t *testing.T) {
	repo := &ingestRepoFake{}
	storage := &ingestStorageFake{err: errors.New("disk full")}
	svc := NewIngestDocumentService(repo, storage, &ingestQueueFake{})

	if _, err := svc.Upload(context.Background(), "a.txt", "text/plain", bytes.NewBufferString("x")); err == nil {
		t.Fatal("expected error")
	}
	if repo.created != nil {
		t.Fatal("metadata must not be created when the file was not stored")
	}
}

func TestIngestUploadRepoFailure(t *testing.T) {
	svc := NewIngestDocumentService(&ingestRepoFake{err: errors.New("db down")}, &ingestStorageFake{}, &ingestQueueFake{})

	if _, err := svc.Upload(context.Background(), "a.txt", "text/plain", bytes.NewBufferString("x")); err == nil {
		t.Fatal("expected error")
	}
}

func TestIngestUploadQueueFailure(t *testing.T) {
	svc := NewIngestDocumentService(&ingestRepoFake{}, &ingestStorageFake{}, &ingestQueueFake{err: errors.New("nats down")})

	if _, err := svc.Upload(context.Background(), "a.txt", "text/plain", bytes.NewBufferString("x")); err == nil {
		t.Fatal("expected error")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"my report (final).pdf", "my_report__final_.pdf"},
		{"../../etc/passwd", "passwd"},
		{"простой.txt", "_______.txt"},
		{"clean-name_1.csv", "clean-name_1.csv"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
