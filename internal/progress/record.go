package progress

import "time"

// Status is the reported state of a model download. It is an open string so
// producers can report states the registry does not know about; only the
// reserved values below carry streaming semantics.
type Status string

const (
	StatusDownloading Status = "downloading"
	StatusExtracting  Status = "extracting"
	StatusComplete    Status = "complete"
	StatusError       Status = "error"
)

// Active reports whether the download is still in flight.
func (s Status) Active() bool {
	return s == StatusDownloading || s == StatusExtracting
}

// Terminal reports whether the download has finished, successfully or not.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Record is the latest known progress of one named model download. Field
// names on the wire match the original reporting format.
type Record struct {
	Name      string    `json:"model_name"`
	Current   int64     `json:"current"`
	Total     int64     `json:"total"`
	Percent   float64   `json:"progress"`
	Filename  string    `json:"filename,omitempty"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"timestamp"`
}

// percentOf derives the completion percentage. A non-positive total means the
// expected size is unknown and yields 0.
func percentOf(current, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(current) / float64(total) * 100
}
