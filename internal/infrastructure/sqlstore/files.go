package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-file-vault/internal/domain"
	"github.com/jmoiron/sqlx"
)

type fileRow struct {
	ID           string `db:"id"`
	OwnerUserID  string `db:"owner_user_id"`
	StoredName   string `db:"stored_name"`
	OriginalName string `db:"original_name"`
	ByteSize     int64  `db:"byte_size"`
	ContentType  string `db:"content_type"`
	StoredPath   string `db:"stored_path"`
	UploadedAt   int64  `db:"uploaded_at"`
}

func (r fileRow) toDomain() domain.File {
	return domain.File{
		FileID:       r.ID,
		OwnerUserID:  r.OwnerUserID,
		StoredName:   r.StoredName,
		OriginalName: r.OriginalName,
		Size:         r.ByteSize,
		ContentType:  r.ContentType,
		StoredPath:   r.StoredPath,
		UploadedAt:   time.UnixMilli(r.UploadedAt).UTC(),
	}
}

const fileColumns = `id, owner_user_id, stored_name, original_name, byte_size, content_type, stored_path, uploaded_at`

// FileRepo is the file ledger. Every read and delete is filtered by owner.
type FileRepo struct {
	db *sqlx.DB
}

func NewFileRepo(db *sqlx.DB) *FileRepo {
	return &FileRepo{db: db}
}

func (r *FileRepo) Create(ctx context.Context, f *domain.File) error {
	query := r.db.Rebind(`INSERT INTO files (` + fileColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		f.FileID, f.OwnerUserID, f.StoredName, f.OriginalName,
		f.Size, f.ContentType, f.StoredPath, f.UploadedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// GetOwned returns the file only when ownerID owns it.
func (r *FileRepo) GetOwned(ctx context.Context, fileID, ownerID string) (*domain.File, error) {
	var row fileRow
	query := r.db.Rebind(`SELECT ` + fileColumns + ` FROM files WHERE id = ? AND owner_user_id = ?`)
	err := r.db.GetContext(ctx, &row, query, fileID, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select file: %w", err)
	}
	f := row.toDomain()
	return &f, nil
}

// ListByOwner returns the owner's files, newest first.
func (r *FileRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.File, error) {
	var rows []fileRow
	query := r.db.Rebind(`SELECT ` + fileColumns + ` FROM files WHERE owner_user_id = ? ORDER BY uploaded_at DESC, id DESC`)
	if err := r.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	files := make([]domain.File, 0, len(rows))
	for _, row := range rows {
		files = append(files, row.toDomain())
	}
	return files, nil
}

// DeleteOwned removes the row in a single compare-and-delete statement and returns it,
// so of two concurrent deletes only one observes the record.
func (r *FileRepo) DeleteOwned(ctx context.Context, fileID, ownerID string) (*domain.File, error) {
	var row fileRow
	query := r.db.Rebind(`DELETE FROM files WHERE id = ? AND owner_user_id = ? RETURNING ` + fileColumns)
	err := r.db.QueryRowxContext(ctx, query, fileID, ownerID).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete file: %w", err)
	}
	f := row.toDomain()
	return &f, nil
}
