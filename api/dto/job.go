package dto

import "errors"

var ErrJobNotFound = errors.New("job not found")
var ErrJobNotCompleted = errors.New("job not completed")

type ProcessRequest struct {
	VideoURL        string `json:"video_url"`
	CustomerName    string `json:"customer_name"`
	IntroClip       string `json:"intro_clip,omitempty"`
	OutroClip       string `json:"outro_clip,omitempty"`
	TransitionStyle string `json:"transition_style,omitempty"`
	WatermarkAsset  string `json:"watermark_asset,omitempty"`
	OverlayText     bool   `json:"overlay_text,omitempty"`
	EncodingPreset  string `json:"encoding_preset,omitempty"`
}

type ProcessResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type StatusResponse struct {
	JobID       string  `json:"job_id"`
	Status      string  `json:"status"`
	Progress    float64 `json:"progress"`
	Message     string  `json:"message"`
	ResultURL   string  `json:"result_url,omitempty"`
	ErrorKind   string  `json:"error_kind,omitempty"`
	Error       string  `json:"error,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

type ResultResponse struct {
	JobID       string  `json:"job_id"`
	Status      string  `json:"status"`
	DownloadURL string  `json:"download_url"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}
