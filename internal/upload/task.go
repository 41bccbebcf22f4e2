package upload

import "time"

// Status is the lifecycle state of an upload task.
type Status int

const (
	Idle Status = iota
	Uploading
	Processing
	Done
	Cancelled
	Failed
)

func (s Status) String() string {
	switch s {
	case Uploading:
		return "uploading"
	case Processing:
		return "processing"
	case Done:
		return "done"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Active reports whether the task still owns a request or server job.
func (s Status) Active() bool {
	return s == Uploading || s == Processing
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == Done || s == Cancelled || s == Failed
}

// Task is a snapshot of one subject's upload.
type Task struct {
	SubjectID  string
	FileName   string
	Status     Status
	Percent    float64 // server-side processing, 0-100
	BytesSent  int64
	BytesTotal int64
	Preview    string // empty once the task leaves Uploading/Processing
	Err        error
	StartedAt  time.Time
	UpdatedAt  time.Time
}

// Fraction returns overall progress in [0,1]: bytes sent while uploading,
// server progress while processing.
func (t Task) Fraction() float64 {
	switch t.Status {
	case Uploading:
		if t.BytesTotal <= 0 {
			return 0
		}
		return clamp(float64(t.BytesSent)/float64(t.BytesTotal), 0, 1)
	case Processing:
		return clamp(t.Percent/100, 0, 1)
	case Done:
		return 1
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
