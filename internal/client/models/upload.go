package models

// UploadStatus is the transient state of a file inside the current session.
type UploadStatus string

const (
	UploadStatusPending   UploadStatus = "pending"
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusSuccess   UploadStatus = "success"
	UploadStatusError     UploadStatus = "error"
)

// UploadProgress is an in-memory progress entry. It is never persisted; the
// FileRecord stays the source of truth across restarts.
type UploadProgress struct {
	FileID   string
	Progress int
	Status   UploadStatus
	Error    string
}

// UploadStats aggregates the progress list by status.
type UploadStats struct {
	Total     int
	Success   int
	Error     int
	Pending   int
	Uploading int
}

// UploadReceipt is the JSON body returned by the upload endpoint on success.
// Every field is optional on the wire; Success and Size are pointers so an
// absent value can be told apart from false or 0.
type UploadReceipt struct {
	Success  *bool  `json:"success,omitempty"`
	Message  string `json:"message,omitempty"`
	Filename string `json:"filename,omitempty"`
	Size     *int64 `json:"size,omitempty"`
	Type     string `json:"type,omitempty"`
	Key      string `json:"key,omitempty"`
	Checksum string `json:"checksum,omitempty"`
}

// Rejected reports whether the endpoint explicitly answered success=false.
func (r *UploadReceipt) Rejected() bool {
	return r.Success != nil && !*r.Success
}
