package models

import (
	"time"
)

type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusDownloading JobStatus = "downloading"
	StatusComposing   JobStatus = "composing"
	StatusEncoding    JobStatus = "encoding"
	StatusPublishing  JobStatus = "publishing"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusExpired     JobStatus = "expired"
)

func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

// Job is the API-side read model of a job record. The worker owns all
// mutations; this service only creates records and renders them.
type Job struct {
	ID              string
	VideoURL        string
	CustomerName    string
	IntroClip       string
	OutroClip       string
	TransitionStyle string
	WatermarkAsset  string
	OverlayText     bool
	EncodingPreset  string
	Status          JobStatus
	Progress        float64
	Message         string
	ResultLocation  string
	ErrorKind       string
	ErrorMessage    string
	CancelRequested bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}
