package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/go-file-vault/internal/domain"
	"github.com/go-file-vault/internal/pkg/id"
)

const (
	defaultContentType = "application/octet-stream"
	maxExtLength       = 16
)

type UploadInput struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64 // declared size; negative when unknown
}

type Service interface {
	Upload(ctx context.Context, owner domain.Identity, input UploadInput) (*domain.File, error)
	List(ctx context.Context, owner domain.Identity) ([]domain.File, error)
	Download(ctx context.Context, owner domain.Identity, fileID string) (io.ReadCloser, *domain.File, error)
	Delete(ctx context.Context, owner domain.Identity, fileID string) error
	Info(ctx context.Context, owner domain.Identity, fileID string) (*domain.File, error)
}

type fileStore interface {
	Create(ctx context.Context, f *domain.File) error
	GetOwned(ctx context.Context, fileID, ownerID string) (*domain.File, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.File, error)
	DeleteOwned(ctx context.Context, fileID, ownerID string) (*domain.File, error)
}

type blobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type service struct {
	files   fileStore
	blobs   blobStore
	maxSize int64
	now     func() time.Time
}

type ServiceDeps struct {
	FileRepo  fileStore
	BlobStore blobStore
	MaxSize   int64            // defaults to domain.DefaultMaxUploadSize
	Now       func() time.Time // defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	s := &service{files: deps.FileRepo, blobs: deps.BlobStore, maxSize: deps.MaxSize, now: deps.Now}
	if s.maxSize <= 0 {
		s.maxSize = domain.DefaultMaxUploadSize
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Upload writes the blob first and the ledger row second. When the row cannot be written
// the blob is removed again so no unreferenced bytes are left behind.
func (s *service) Upload(ctx context.Context, owner domain.Identity, input UploadInput) (*domain.File, error) {
	if input.Reader == nil {
		return nil, fmt.Errorf("file is required: %w", domain.ErrBadRequest)
	}
	if input.Size > s.maxSize {
		return nil, domain.ErrFileTooLarge
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	fileID := id.NewAt(now)
	original := originalName(input.Filename)
	key := fileID + extension(original)
	contentType := input.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	body := &capReader{r: input.Reader, limit: s.maxSize}
	loc, err := s.blobs.Put(ctx, key, body, input.Size, contentType)
	if err != nil {
		if errors.Is(err, domain.ErrFileTooLarge) {
			return nil, domain.ErrFileTooLarge
		}
		return nil, fmt.Errorf("store blob: %w", err)
	}

	f := &domain.File{
		FileID:       fileID,
		OwnerUserID:  owner.UserID,
		StoredName:   key,
		OriginalName: original,
		Size:         body.n,
		ContentType:  contentType,
		StoredPath:   loc,
		UploadedAt:   now,
	}
	if err := s.files.Create(ctx, f); err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil && !errors.Is(delErr, domain.ErrNotFound) {
			slog.Error("failed to remove orphaned blob", "key", key, "err", delErr)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrMetadataWriteFailed, err)
	}
	return f, nil
}

func (s *service) List(ctx context.Context, owner domain.Identity) ([]domain.File, error) {
	return s.files.ListByOwner(ctx, owner.UserID)
}

// Download resolves the owner's record and opens its blob. A record whose blob has
// gone missing is reported as not found.
func (s *service) Download(ctx context.Context, owner domain.Identity, fileID string) (io.ReadCloser, *domain.File, error) {
	f, err := s.files.GetOwned(ctx, fileID, owner.UserID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(ctx, f.StoredName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Warn("file record has no blob", "file_id", f.FileID, "key", f.StoredName)
			return nil, nil, domain.ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("open blob: %w", err)
	}
	return rc, f, nil
}

// Delete removes the ledger row, then the blob. A blob that is already gone counts as
// deleted; any other blob failure is logged since the record no longer exists.
func (s *service) Delete(ctx context.Context, owner domain.Identity, fileID string) error {
	f, err := s.files.DeleteOwned(ctx, fileID, owner.UserID)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(context.WithoutCancel(ctx), f.StoredName); err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Error("failed to remove blob after deleting record", "file_id", f.FileID, "key", f.StoredName, "err", err)
	}
	return nil
}

func (s *service) Info(ctx context.Context, owner domain.Identity, fileID string) (*domain.File, error) {
	return s.files.GetOwned(ctx, fileID, owner.UserID)
}

// capReader fails with domain.ErrFileTooLarge once more than limit bytes have been read.
type capReader struct {
	r     io.Reader
	limit int64
	n     int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if room := c.limit - c.n + 1; int64(len(p)) > room {
		p = p[:room]
	}
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.n > c.limit {
		return 0, domain.ErrFileTooLarge
	}
	return n, err
}

// originalName drops any client-side directory components.
func originalName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

// extension returns the lowercased extension of name when it is short and alphanumeric.
func extension(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if len(ext) < 2 || len(ext) > maxExtLength {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
