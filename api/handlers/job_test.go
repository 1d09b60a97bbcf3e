package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"

	"videoEditor/api/dto"
	"videoEditor/api/validation"
)

type mockJobService struct {
	createFn func(ctx context.Context, traceID string, req *dto.ProcessRequest) (*dto.ProcessResponse, error)
	statusFn func(ctx context.Context, jobID string) (*dto.StatusResponse, error)
	resultFn func(ctx context.Context, jobID string) (*dto.ResultResponse, error)
	cancelFn func(ctx context.Context, jobID string) error
}

func (m *mockJobService) CreateJob(ctx context.Context, traceID string, req *dto.ProcessRequest) (*dto.ProcessResponse, error) {
	return m.createFn(ctx, traceID, req)
}

func (m *mockJobService) GetStatus(ctx context.Context, jobID string) (*dto.StatusResponse, error) {
	return m.statusFn(ctx, jobID)
}

func (m *mockJobService) GetResult(ctx context.Context, jobID string) (*dto.ResultResponse, error) {
	return m.resultFn(ctx, jobID)
}

func (m *mockJobService) Cancel(ctx context.Context, jobID string) error {
	return m.cancelFn(ctx, jobID)
}

func TestJobHandler_Process_Accepted(t *testing.T) {
	svc := &mockJobService{
		createFn: func(ctx context.Context, traceID string, req *dto.ProcessRequest) (*dto.ProcessResponse, error) {
			return &dto.ProcessResponse{
				JobID:   "job-123",
				Status:  "queued",
				Message: "video processing job queued",
			}, nil
		},
	}
	h := NewJobHandler(svc, zaptest.NewLogger(t))

	body, _ := json.Marshal(dto.ProcessRequest{
		VideoURL:     "https://example.com/v.mp4",
		CustomerName: "Acme",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/process", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.Process(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp dto.ProcessResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Decode response: %v", err)
	}
	if resp.JobID != "job-123" || resp.Status != "queued" {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestJobHandler_Process_ValidationError(t *testing.T) {
	svc := &mockJobService{
		createFn: func(ctx context.Context, traceID string, req *dto.ProcessRequest) (*dto.ProcessResponse, error) {
			return nil, &validation.Error{Field: "transition_style", Message: `unknown style "bounce"`}
		},
	}
	h := NewJobHandler(svc, zaptest.NewLogger(t))

	body, _ := json.Marshal(dto.ProcessRequest{
		VideoURL:        "https://example.com/v.mp4",
		CustomerName:    "Acme",
		TransitionStyle: "bounce",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/process", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.Process(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	var resp dto.ErrorResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Code != "validation" {
		t.Errorf("Expected validation code, got %q", resp.Code)
	}
}

func TestJobHandler_Process_MalformedBody(t *testing.T) {
	svc := &mockJobService{}
	h := NewJobHandler(svc, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	h.Process(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}

func TestJobHandler_Status(t *testing.T) {
	svc := &mockJobService{
		statusFn: func(ctx context.Context, jobID string) (*dto.StatusResponse, error) {
			if jobID != "job-123" {
				return nil, dto.ErrJobNotFound
			}
			return &dto.StatusResponse{
				JobID:    jobID,
				Status:   "encoding",
				Progress: 0.6,
				Message:  "encoding final video",
			}, nil
		},
	}
	h := NewJobHandler(svc, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/job-123", nil)
	w := httptest.NewRecorder()
	h.Status(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp dto.StatusResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Status != "encoding" || resp.Progress != 0.6 {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestJobHandler_Status_NotFound(t *testing.T) {
	svc := &mockJobService{
		statusFn: func(ctx context.Context, jobID string) (*dto.StatusResponse, error) {
			return nil, dto.ErrJobNotFound
		},
	}
	h := NewJobHandler(svc, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/missing", nil)
	w := httptest.NewRecorder()
	h.Status(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
}

func TestJobHandler_Status_MissingID(t *testing.T) {
	h := NewJobHandler(&mockJobService{}, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/", nil)
	w := httptest.NewRecorder()
	h.Status(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}

func TestJobHandler_Result(t *testing.T) {
	svc := &mockJobService{
		resultFn: func(ctx context.Context, jobID string) (*dto.ResultResponse, error) {
			return &dto.ResultResponse{
				JobID:       jobID,
				Status:      "completed",
				DownloadURL: "/api/v1/download/job-123_final.mp4",
			}, nil
		},
	}
	h := NewJobHandler(svc, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/result/job-123", nil)
	w := httptest.NewRecorder()
	h.Result(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp dto.ResultResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.DownloadURL == "" {
		t.Error("Expected download URL in response")
	}
}

func TestJobHandler_Result_NotCompleted(t *testing.T) {
	svc := &mockJobService{
		resultFn: func(ctx context.Context, jobID string) (*dto.ResultResponse, error) {
			return nil, dto.ErrJobNotCompleted
		},
	}
	h := NewJobHandler(svc, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/result/job-123", nil)
	w := httptest.NewRecorder()
	h.Result(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}

func TestJobHandler_Cancel(t *testing.T) {
	var cancelled string
	svc := &mockJobService{
		cancelFn: func(ctx context.Context, jobID string) error {
			cancelled = jobID
			return nil
		},
	}
	h := NewJobHandler(svc, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/job/job-123", nil)
	w := httptest.NewRecorder()
	h.Cancel(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if cancelled != "job-123" {
		t.Errorf("Expected cancel for job-123, got %q", cancelled)
	}
}

func TestJobHandler_Cancel_NotFound(t *testing.T) {
	svc := &mockJobService{
		cancelFn: func(ctx context.Context, jobID string) error {
			return dto.ErrJobNotFound
		},
	}
	h := NewJobHandler(svc, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/job/missing", nil)
	w := httptest.NewRecorder()
	h.Cancel(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
}

func TestJobHandler_InternalError(t *testing.T) {
	svc := &mockJobService{
		statusFn: func(ctx context.Context, jobID string) (*dto.StatusResponse, error) {
			return nil, errors.New("database unavailable")
		},
	}
	h := NewJobHandler(svc, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/job-123", nil)
	w := httptest.NewRecorder()
	h.Status(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}
}
