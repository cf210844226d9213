package domain

import "time"

// DefaultMaxUploadSize is the largest accepted upload, in bytes (100MB).
const DefaultMaxUploadSize int64 = 100 << 20

// File is the ledger entry for one stored blob. StoredName is the blob key;
// StoredPath is the location reported by the blob store when it was written.
type File struct {
	FileID       string    `json:"id" dynamodbav:"file_id"`
	OwnerUserID  string    `json:"owner_user_id" dynamodbav:"owner_user_id"`
	StoredName   string    `json:"stored_name" dynamodbav:"stored_name"`
	OriginalName string    `json:"original_name" dynamodbav:"original_name"`
	Size         int64     `json:"size" dynamodbav:"byte_size"`
	ContentType  string    `json:"content_type" dynamodbav:"content_type"`
	StoredPath   string    `json:"-" dynamodbav:"stored_path"`
	UploadedAt   time.Time `json:"uploaded_at" dynamodbav:"-"`
}
