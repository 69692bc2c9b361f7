package models

// StorageStats is a snapshot over all stored records.
type StorageStats struct {
	TotalFiles    int
	TotalBytes    int64
	PendingCount  int
	UploadedCount int
}

// QuotaInfo reports how much space the local store may still use.
// All fields are zero when the host cannot tell.
type QuotaInfo struct {
	UsageBytes     int64
	QuotaBytes     int64
	AvailableBytes int64
}
