package store

import (
	"strings"
	"time"
)

// JobStatus represents the lifecycle of an import job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

var allJobStatuses = []JobStatus{
	JobPending,
	JobRunning,
	JobCompleted,
	JobFailed,
	JobCancelled,
}

var jobStatusSet = func() map[JobStatus]struct{} {
	set := make(map[JobStatus]struct{}, len(allJobStatuses))
	for _, status := range allJobStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllJobStatuses returns the ordered list of known job statuses.
func AllJobStatuses() []JobStatus {
	cp := make([]JobStatus, len(allJobStatuses))
	copy(cp, allJobStatuses)
	return cp
}

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := jobStatusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status can never change again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// JobKind distinguishes job types; only URL imports exist today.
const JobKindImport = "import"

// JobParams holds the caller-supplied import parameters.
type JobParams struct {
	SourceURL       string `json:"source_url"`
	LibraryID       int64  `json:"library_id,omitempty"`
	RequestedFormat string `json:"requested_format,omitempty"`
	Auto            bool   `json:"auto"`
}

// JobResult records the single outcome of a completed job.
type JobResult struct {
	EntryID     int64 `json:"entry_id,omitempty"`
	InboxItemID int64 `json:"inbox_item_id,omitempty"`
}

// Job represents one tracked import attempt persisted in SQLite.
type Job struct {
	ID              int64
	Kind            string
	Status          JobStatus
	Progress        float64
	Stage           string
	Params          JobParams
	Result          JobResult
	ErrorMessage    string
	CancelRequested bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// EntryFileType classifies a physical artifact owned by an entry.
type EntryFileType string

const (
	FileVideo     EntryFileType = "video"
	FileAudio     EntryFileType = "audio"
	FileThumbnail EntryFileType = "thumbnail"
	FileSubtitle  EntryFileType = "subtitle"
)

// Entry is a committed library item.
type Entry struct {
	ID          int64
	JobID       int64
	SourceURL   string
	LibraryID   int64
	Subfolder   string
	Title       string
	Description string
	Duration    float64
	Platform    string
	Uploader    string
	Favorite    bool
	Rating      int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EntryFile is one physical artifact owned by an entry.
type EntryFile struct {
	ID          int64
	EntryID     int64
	Path        string
	Fingerprint string
	Type        EntryFileType
	Container   string
	Size        int64
	Duration    float64
	Bitrate     int64
	Width       int
	Height      int
	Available   bool
}

// InboxType classifies why an import landed in the review inbox.
type InboxType string

const (
	InboxDuplicate     InboxType = "duplicate"
	InboxLowConfidence InboxType = "low_confidence"
	InboxFailed        InboxType = "failed"
	InboxNeedsReview   InboxType = "needs_review"
)

var inboxTypeSet = map[InboxType]struct{}{
	InboxDuplicate:     {},
	InboxLowConfidence: {},
	InboxFailed:        {},
	InboxNeedsReview:   {},
}

// ParseInboxType converts a string into a known InboxType.
func ParseInboxType(value string) (InboxType, bool) {
	normalized := InboxType(strings.ToLower(strings.TrimSpace(value)))
	_, ok := inboxTypeSet[normalized]
	return normalized, ok
}

// TechnicalInfo carries facts extracted from the downloaded artifact.
type TechnicalInfo struct {
	Container  string  `json:"container,omitempty"`
	VideoCodec string  `json:"video_codec,omitempty"`
	AudioCodec string  `json:"audio_codec,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	Size       int64   `json:"size,omitempty"`
	Bitrate    int64   `json:"bitrate,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
}

// Candidate is the structured entry-candidate data stored on an inbox item.
// It must round-trip through JSON without loss.
type Candidate struct {
	SourceURL       string         `json:"source_url"`
	RequestedFormat string         `json:"requested_format,omitempty"`
	Title           string         `json:"title,omitempty"`
	Description     string         `json:"description,omitempty"`
	Platform        string         `json:"platform,omitempty"`
	Uploader        string         `json:"uploader,omitempty"`
	ThumbnailURL    string         `json:"thumbnail_url,omitempty"`
	TempPath        string         `json:"temp_path,omitempty"`
	Fingerprint     string         `json:"fingerprint,omitempty"`
	Technical       *TechnicalInfo `json:"technical,omitempty"`
}

// SuggestedTag is a classification-proposed tag with provenance.
type SuggestedTag struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence,omitempty"`
	Provenance string  `json:"provenance,omitempty"`
}

// SuggestedProperty is a classification-proposed key/value fact.
type SuggestedProperty struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence,omitempty"`
	Provenance string  `json:"provenance,omitempty"`
}

// Suggestion is the classification payload proposed for a candidate.
type Suggestion struct {
	LibraryID   int64               `json:"library_id,omitempty"`
	Subfolder   string              `json:"subfolder,omitempty"`
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Tags        []SuggestedTag      `json:"tags,omitempty"`
	Properties  []SuggestedProperty `json:"properties,omitempty"`
}

// InboxItem is a pending-review record for an import that did not auto-commit.
type InboxItem struct {
	ID           int64
	JobID        int64
	Type         InboxType
	Candidate    Candidate
	Suggestion   Suggestion
	Confidence   *float64
	ErrorMessage string
	Reviewed     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Provenance markers for tag and property associations.
const (
	ProvenanceModel   = "model"
	ProvenanceCatalog = "catalog"
	ProvenanceUser    = "user"
)

// Tag is a reusable label attached to entries.
type Tag struct {
	ID   int64
	Name string
}

// EntryTag is one tag association with its provenance and confidence.
type EntryTag struct {
	EntryID    int64
	TagID      int64
	Provenance string
	Confidence float64
}

// EntryProperty is one key/value fact attached to an entry.
type EntryProperty struct {
	EntryID    int64
	Key        string
	Value      string
	Provenance string
	Confidence float64
}

// JobStats summarizes job counts per status.
type JobStats struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
	Cancelled int
}
