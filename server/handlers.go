package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"slices"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
)

// Error kinds reported before the pipeline runs.
const (
	kindInvalidRequest = "invalid_request"
	kindInvalidImage   = "invalid_image"
	kindTooLarge       = "request_too_large"
)

// Detection is one detection in a response.
type Detection struct {
	BBox  images.Box `json:"bbox"`
	Class int        `json:"class_idx"`
	Label string     `json:"label"`
	Score float32    `json:"score"`
}

// Dimensions is a width and height pair.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DetectResponse is the body of a successful detection request.
type DetectResponse struct {
	Detections []Detection `json:"detections"`
	LatencyMs  string      `json:"latency_ms"`
	Input      Dimensions  `json:"input"`
	Image      Dimensions  `json:"image"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorBody.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	cfg, err := overrides(s.pipeline.Config(), r)
	if err != nil {
		sendError(w, http.StatusBadRequest, ErrorBody{Kind: string(inference.FaultConfig), Message: err.Error()})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	data, err := readImage(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, http.StatusRequestEntityTooLarge, ErrorBody{Kind: kindTooLarge, Message: err.Error()})
			return
		}
		sendError(w, http.StatusBadRequest, ErrorBody{Kind: kindInvalidRequest, Message: err.Error()})
		return
	}

	img, err := images.Decode(bytes.NewReader(data))
	if err != nil {
		sendError(w, http.StatusBadRequest, ErrorBody{Kind: kindInvalidImage, Message: err.Error()})
		return
	}

	src := images.FromImage(img, nil)

	ctx := r.Context()
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	result, err := s.pipeline.InferWith(ctx, src, cfg)
	if err != nil {
		s.sendFault(w, err)
		return
	}

	resp := DetectResponse{
		Detections: make([]Detection, 0, len(result.Candidates)),
		LatencyMs:  result.LatencyMs(),
		Input:      Dimensions{Width: result.Width, Height: result.Height},
		Image:      Dimensions{Width: src.Width(), Height: src.Height()},
	}
	for _, c := range result.Candidates {
		resp.Detections = append(resp.Detections, Detection{
			BBox:  c.Box,
			Class: c.Class,
			Label: cfg.Label(c.Class),
			Score: c.Score,
		})
	}
	sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, s.pipeline.Stats().Snapshot())
}

// statusFor maps a fault kind to its HTTP status.
func statusFor(kind inference.FaultKind) int {
	switch kind {
	case inference.FaultConfig:
		return http.StatusBadRequest
	case inference.FaultImageAccess:
		return http.StatusUnprocessableEntity
	case inference.FaultEngine, inference.FaultShapeMismatch:
		return http.StatusBadGateway
	case inference.FaultCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) sendFault(w http.ResponseWriter, err error) {
	var fault *inference.Fault
	if !errors.As(err, &fault) {
		s.logger.Error("pipeline returned a non-fault error", zap.Error(err))
		sendError(w, http.StatusInternalServerError, ErrorBody{Kind: "internal", Message: err.Error()})
		return
	}
	sendError(w, statusFor(fault.Kind), ErrorBody{
		Kind:    string(fault.Kind),
		Stage:   string(fault.Stage),
		Message: fault.Error(),
	})
}

// overrides applies the confidence, iou, clamp and max_detections query
// parameters to base.
func overrides(base inference.Config, r *http.Request) (inference.Config, error) {
	cfg := base
	cfg.Classes = slices.Clone(base.Classes)
	q := r.URL.Query()

	parseFloat := func(name string, dst *float32) error {
		v := q.Get(name)
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("invalid %s %q", name, v)
		}
		*dst = float32(f)
		return nil
	}
	if err := parseFloat("confidence", &cfg.ConfidenceThreshold); err != nil {
		return cfg, err
	}
	if err := parseFloat("iou", &cfg.IoUThreshold); err != nil {
		return cfg, err
	}
	if v := q.Get("clamp"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid clamp %q", v)
		}
		cfg.ClampToImage = b
	}
	if v := q.Get("max_detections"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid max_detections %q", v)
		}
		cfg.MaxDetections = n
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// readImage returns the encoded image of a raw, JSON ({"image": base64})
// or multipart ("file" field) request body.
func readImage(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var data []byte
	var err error
	switch mediaType {
	case "application/json":
		var req struct {
			Image string `json:"image"`
		}
		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errors.Wrap(err, "failed to decode request")
		}
		if data, err = base64.StdEncoding.DecodeString(req.Image); err != nil {
			return nil, errors.Wrap(err, "failed to decode base64 image")
		}
	case "multipart/form-data":
		file, _, ferr := r.FormFile("file")
		if ferr != nil {
			return nil, ferr
		}
		defer file.Close()
		data, err = io.ReadAll(file)
	default:
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("request body is empty")
	}
	return data, nil
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, status int, body ErrorBody) {
	sendJSON(w, status, ErrorResponse{Error: body})
}
