package downloads

import "time"

// Status is the current state of a product fetch.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusExtracting  Status = "extracting"
	StatusComplete    Status = "complete"
	StatusError       Status = "error"
	StatusCancelled   Status = "cancelled"
)

// Progress reports one fetch. ID is the job that owns it.
type Progress struct {
	ID              string  `json:"id"`
	URL             string  `json:"url"`
	Status          Status  `json:"status"`
	Message         string  `json:"message"`
	BytesDownloaded int64   `json:"bytes_downloaded"`
	TotalBytes      int64   `json:"total_bytes"`
	Percent         float64 `json:"percent"`
	Speed           int64   `json:"speed"` // bytes/sec
	Product         string  `json:"product,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// ProgressCallback receives fetch and unpack progress.
type ProgressCallback func(Progress)

// ByteProgressCallback receives the bytes written so far and the expected
// total, which is 0 when unknown.
type ByteProgressCallback func(downloaded, total int64)

// speedMeter smooths the download rate with an exponential moving average.
// It is only called from the download goroutine.
type speedMeter struct {
	last  time.Time
	bytes int64
	rate  float64
}

const speedSmoothing = 0.3

func newSpeedMeter() *speedMeter { return &speedMeter{last: time.Now()} }

// observe records the running byte count and returns the smoothed rate in
// bytes per second. Samples closer than 100ms apart are folded into the next.
func (s *speedMeter) observe(total int64) int64 {
	now := time.Now()
	elapsed := now.Sub(s.last).Seconds()
	if elapsed < 0.1 {
		return int64(s.rate)
	}
	sample := float64(total-s.bytes) / elapsed
	if s.rate == 0 {
		s.rate = sample
	} else {
		s.rate += speedSmoothing * (sample - s.rate)
	}
	s.last, s.bytes = now, total
	return int64(s.rate)
}
