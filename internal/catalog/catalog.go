// Package catalog defines the domain types stored in the photodex catalog.
package catalog

// Session represents one import invocation.
type Session struct {
	ID          int64 `json:"session_id"`
	FolderCount int   `json:"folder_count"`
	ImageCount  int   `json:"image_count"`
	CreatedAt   int64 `json:"created_at"` // unix seconds
}

// Image represents one distinct photo in the catalog. ContentHash is
// computed over orientation-normalized bytes and is unique across the
// whole catalog; PerceptualHash is stored for future near-duplicate
// lookups and carries no uniqueness guarantee.
type Image struct {
	ID                 int64  `json:"image_id"`
	SessionID          int64  `json:"session_id"`
	RelativePath       string `json:"relative_path"` // relative to the catalog root, forward slashes
	SubFolder          string `json:"sub_folder"`    // first path segment, "" for root-level files
	Filename           string `json:"filename"`
	ContentHash        []byte `json:"-"`               // 32-byte sha256 of normalized bytes
	PerceptualHash     int64  `json:"perceptual_hash"` // 64-bit DCT hash, stored signed
	Width              int    `json:"width"`           // after orientation normalization
	Height             int    `json:"height"`
	OrientationApplied bool   `json:"orientation_applied"`
	HasFaces           bool   `json:"has_faces"` // set later by the detection workload
	Thumbnail          []byte `json:"-"`
	SizeBytes          int64  `json:"size_bytes"` // original file size
	ProcessedAt        int64  `json:"processed_at"`
}

// MetadataEntry is one key/value tag extracted from an image file.
type MetadataEntry struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Source string `json:"source"` // tag namespace, e.g. "exif"
}
