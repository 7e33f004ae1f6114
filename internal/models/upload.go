package models

// Category is the content category assigned to an upload.
type Category string

const (
	CategoryText    Category = "text"
	CategoryAudio   Category = "audio"
	CategoryVideo   Category = "video"
	CategoryTabular Category = "tabular"
)

// Classification is the category and size ceiling assigned to an upload
// before any processing begins. Derived once, never mutated.
type Classification struct {
	Category Category `json:"category"`
	MaxBytes int64    `json:"max_bytes"`
}

// RawUpload is one uploaded file: the original filename plus its bytes.
// The pipeline owns it for the duration of one job and never mutates it.
type RawUpload struct {
	Filename string
	Data     []byte
}

// Size returns the upload size in bytes.
func (u *RawUpload) Size() int64 { return int64(len(u.Data)) }

// MediaSegment is a time-bounded slice of a longer media file. Segments of
// one source are disjoint in time; only the final one may be shorter than
// the segmentation window. Segment files are transient and removed once
// transcribed.
type MediaSegment struct {
	Index    int     `json:"index"`
	Path     string  `json:"path"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}
