package domain

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusComposing   Status = "composing"
	StatusEncoding    Status = "encoding"
	StatusPublishing  Status = "publishing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusExpired     Status = "expired"
)

// statusRank orders statuses along the pipeline. Transitions must be
// forward-only, except that failed is reachable from any non-terminal state.
var statusRank = map[Status]int{
	StatusQueued:      0,
	StatusDownloading: 1,
	StatusComposing:   2,
	StatusEncoding:    3,
	StatusPublishing:  4,
	StatusCompleted:   5,
	StatusFailed:      5,
	StatusExpired:     6,
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

type TransitionStyle string

const (
	TransitionCut   TransitionStyle = "cut"
	TransitionFade  TransitionStyle = "fade"
	TransitionSlide TransitionStyle = "slide"
)

func ParseTransitionStyle(s string) (TransitionStyle, error) {
	switch TransitionStyle(s) {
	case TransitionCut, TransitionFade, TransitionSlide:
		return TransitionStyle(s), nil
	}
	return "", NewError(KindValidation, "unknown transition style: %q", s)
}

// Parameters is the immutable request snapshot attached to a job at creation.
type Parameters struct {
	VideoURL        string
	CustomerName    string
	IntroClip       string
	OutroClip       string
	TransitionStyle TransitionStyle
	WatermarkAsset  string
	OverlayText     bool
	EncodingPreset  string
}

type Job struct {
	ID     string
	Params Parameters

	Status   Status
	Progress float64
	Message  string

	// Exactly one of ResultLocation/Err is set, and only in a terminal state.
	ResultLocation string
	Err            *Error

	// Retry bookkeeping. A failed run that still has attempts left is put
	// back to queued with NextAttemptAt in the future; the dispatcher's
	// requeue loop picks it up once eligible, so no worker slot is held
	// during backoff.
	Attempts      int
	NextAttemptAt time.Time

	// CancelRequested is advisory. The pipeline checks it between stages
	// and stops at the next boundary.
	CancelRequested bool

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Transition moves the job to a later pipeline status. Backward moves and
// moves out of a terminal state are rejected; failed is allowed from any
// non-terminal status.
func (j *Job) Transition(to Status) error {
	if j.Status.Terminal() {
		return fmt.Errorf("job %s is already %s", j.ID, j.Status)
	}
	if to == StatusFailed {
		j.Status = StatusFailed
		return nil
	}
	if statusRank[to] < statusRank[j.Status] {
		return fmt.Errorf("job %s: backward transition %s -> %s", j.ID, j.Status, to)
	}
	j.Status = to
	return nil
}

// SetProgress advances progress and replaces the activity message.
// Progress never moves backward; a lower value is ignored.
func (j *Job) SetProgress(p float64, message string) {
	if p > 1.0 {
		p = 1.0
	}
	if p > j.Progress {
		j.Progress = p
	}
	j.Message = message
}

// Complete records the terminal success state. It is a no-op when the job is
// already terminal, so a duplicate delivery never rewrites the result.
func (j *Job) Complete(resultLocation string, now time.Time) {
	if j.Status.Terminal() {
		return
	}
	j.Status = StatusCompleted
	j.SetProgress(1.0, "video processing completed")
	j.ResultLocation = resultLocation
	j.CompletedAt = &now
}

// Fail records the terminal failure state. Like Complete, it writes at most
// once.
func (j *Job) Fail(jobErr *Error, now time.Time) {
	if j.Status.Terminal() {
		return
	}
	j.Status = StatusFailed
	j.Message = "video processing failed"
	j.Err = jobErr
	j.CompletedAt = &now
}

// Clone returns an independent copy so that readers never share mutable
// state with the store's canonical record.
func (j *Job) Clone() *Job {
	c := *j
	if j.Err != nil {
		e := *j.Err
		c.Err = &e
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
