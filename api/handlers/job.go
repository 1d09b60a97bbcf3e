package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"videoEditor/api/dto"
	"videoEditor/api/middleware"
	"videoEditor/api/validation"
)

// JobService is the slice of the service layer the handlers need.
type JobService interface {
	CreateJob(ctx context.Context, traceID string, req *dto.ProcessRequest) (*dto.ProcessResponse, error)
	GetStatus(ctx context.Context, jobID string) (*dto.StatusResponse, error)
	GetResult(ctx context.Context, jobID string) (*dto.ResultResponse, error)
	Cancel(ctx context.Context, jobID string) error
}

type JobHandler struct {
	service JobService
	logger  *zap.Logger
}

func NewJobHandler(service JobService, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		service: service,
		logger:  logger,
	}
}

func (h *JobHandler) Process(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	var req dto.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleError(w, "Invalid request body", err, traceID, http.StatusBadRequest, "")
		return
	}

	resp, err := h.service.CreateJob(r.Context(), traceID, &req)
	if err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			h.handleError(w, "Invalid request: "+verr.Error(), err, traceID, http.StatusBadRequest, "validation")
			return
		}
		h.handleError(w, "Failed to create job", err, traceID, http.StatusInternalServerError, "")
		return
	}

	h.logger.Info("job accepted",
		zap.String("trace_id", traceID),
		zap.String("job_id", resp.JobID),
	)

	h.respondJSON(w, http.StatusAccepted, resp)
}

func (h *JobHandler) Status(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	jobID := strings.TrimPrefix(r.URL.Path, "/api/v1/status/")
	if jobID == "" {
		h.handleError(w, "Job ID is required", nil, traceID, http.StatusBadRequest, "")
		return
	}

	resp, err := h.service.GetStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, dto.ErrJobNotFound) {
			h.handleError(w, "Job not found", err, traceID, http.StatusNotFound, "")
			return
		}
		h.handleError(w, "Failed to get job status", err, traceID, http.StatusInternalServerError, "")
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *JobHandler) Result(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	jobID := strings.TrimPrefix(r.URL.Path, "/api/v1/result/")
	if jobID == "" {
		h.handleError(w, "Job ID is required", nil, traceID, http.StatusBadRequest, "")
		return
	}

	resp, err := h.service.GetResult(r.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, dto.ErrJobNotFound):
			h.handleError(w, "Job not found", err, traceID, http.StatusNotFound, "")
		case errors.Is(err, dto.ErrJobNotCompleted):
			h.handleError(w, "Job is not completed", err, traceID, http.StatusBadRequest, "")
		default:
			h.handleError(w, "Failed to get job result", err, traceID, http.StatusInternalServerError, "")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	jobID := strings.TrimPrefix(r.URL.Path, "/api/v1/job/")
	if jobID == "" {
		h.handleError(w, "Job ID is required", nil, traceID, http.StatusBadRequest, "")
		return
	}

	if err := h.service.Cancel(r.Context(), jobID); err != nil {
		if errors.Is(err, dto.ErrJobNotFound) {
			h.handleError(w, "Job not found", err, traceID, http.StatusNotFound, "")
			return
		}
		h.handleError(w, "Failed to cancel job", err, traceID, http.StatusInternalServerError, "")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"job_id":  jobID,
		"message": "cancellation requested",
	})
}

func (h *JobHandler) handleError(w http.ResponseWriter, message string, err error, traceID string, status int, code string) {
	h.logger.Error(message,
		zap.String("trace_id", traceID),
		zap.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Code:    code,
		TraceID: traceID,
	})
}

func (h *JobHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
