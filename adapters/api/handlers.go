package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"delayrisk/app"
	apperrors "delayrisk/internal/errors"
	"delayrisk/internal/features"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"run_id": s.predictor.RunID().String(),
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleSchema(c *gin.Context) {
	sch := s.predictor.Schema()
	c.JSON(http.StatusOK, SchemaResponse{
		FeatureColumns: sch.FeatureColumns(),
		LabelColumn:    sch.LabelColumn(),
		DropColumns:    sch.DropColumns(),
		ClipRules:      sch.ClipRules(),
		Fingerprint:    sch.Fingerprint().String(),
		RunID:          s.predictor.RunID().String(),
	})
}

func (s *Server) handlePredict(c *gin.Context) {
	var record map[string]any
	if err := decodeJSON(c.Request.Body, &record); err != nil {
		s.badRequest(c, err)
		return
	}
	if record == nil {
		s.badRequest(c, errors.New("request body must be a JSON object"))
		return
	}

	p, err := s.predictor.Predict(c.Request.Context(), features.Record(record))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PredictResponse{Probability: p, Display: app.FormatProbability(p)})
}

func (s *Server) handlePredictBatch(c *gin.Context) {
	var req BatchRequest
	if err := decodeJSON(c.Request.Body, &req); err != nil {
		s.badRequest(c, err)
		return
	}
	if req.Records == nil {
		s.badRequest(c, errors.New(`request body must contain a "records" array`))
		return
	}
	if s.config.MaxBatchSize > 0 && len(req.Records) > s.config.MaxBatchSize {
		s.badRequest(c, fmt.Errorf("batch of %d records exceeds the limit of %d", len(req.Records), s.config.MaxBatchSize))
		return
	}

	records := make([]features.Record, len(req.Records))
	for i, r := range req.Records {
		if r == nil {
			idx := i
			c.JSON(http.StatusBadRequest, ContractErrorResponse{
				Error: fmt.Sprintf("record %d must be a JSON object", i),
				Code:  apperrors.CodeInvalidInput,
				Index: &idx,
			})
			return
		}
		records[i] = features.Record(r)
	}

	probs, err := s.predictor.PredictBatch(c.Request.Context(), records)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := BatchResponse{Predictions: make([]PredictResponse, len(probs))}
	for i, p := range probs {
		out.Predictions[i] = PredictResponse{Probability: p, Display: app.FormatProbability(p)}
	}
	c.JSON(http.StatusOK, out)
}

// decodeJSON reads exactly one JSON value into v, keeping numbers as
// json.Number so integers and floats reach the validator unchanged.
func decodeJSON(body io.Reader, v any) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("empty request body")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("request body must be a JSON object, got %s", typeErr.Value)
		}
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

func (s *Server) badRequest(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error(), Code: apperrors.CodeInvalidInput})
		return
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: apperrors.CodeInvalidInput})
}

func (s *Server) writeError(c *gin.Context, err error) {
	if verr, ok := features.AsValidationError(err); ok {
		resp := ContractErrorResponse{
			Error:   err.Error(),
			Code:    apperrors.CodeDataContract,
			Extra:   nonNil(verr.Extra),
			Missing: nonNil(verr.Missing),
			Invalid: verr.Invalid,
		}
		if resp.Invalid == nil {
			resp.Invalid = []features.InvalidValue{}
		}
		var rerr *app.RecordError
		if errors.As(err, &rerr) {
			idx := rerr.Index
			resp.Index = &idx
		}
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}

	code := apperrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apperrors.CodeDataContract:
		status = http.StatusUnprocessableEntity
	case apperrors.CodeInvalidInput:
		status = http.StatusBadRequest
	}
	if c.Request.Context().Err() != nil {
		status = http.StatusServiceUnavailable
	}
	s.logger.Error("predict failed: %v", err)
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
