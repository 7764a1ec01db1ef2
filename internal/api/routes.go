package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/liminalqa/liminal/internal/api/middleware"
	"github.com/liminalqa/liminal/internal/errs"
	"github.com/liminalqa/liminal/internal/ids"
	"github.com/liminalqa/liminal/internal/ingest"
	"github.com/liminalqa/liminal/internal/report"
)

// serviceVersion is reported on GET /health. Bumped by release tooling,
// not by hand.
const serviceVersion = "0.1.0"

// setupRoutes registers every route the service exposes against mux.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metricsHandler())
	mux.HandleFunc("POST /ingest/run", s.handleIngestRun)
	mux.HandleFunc("POST /ingest/tests", s.handleIngestTests)
	mux.HandleFunc("POST /ingest/signals", s.handleIngestSignals)
	mux.HandleFunc("POST /ingest/artifacts", s.handleIngestArtifacts)
	mux.HandleFunc("POST /ingest/batch", s.handleIngestBatch)
	mux.HandleFunc("POST /ingest/batch/async", s.handleIngestBatchAsync)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /report/{run_id}", s.handleReport)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, healthResponse{
		Status:  "ok",
		Service: "liminal",
		Version: serviceVersion,
	})
}

func (s *Server) handleIngestRun(w http.ResponseWriter, r *http.Request) {
	var dto RunDTO
	if !s.decodeJSON(w, r, &dto) {
		return
	}

	in, err := dto.toInput()
	if err != nil {
		s.writeProblem(w, r, BadRequest("invalid run: "+err.Error()))

		return
	}

	if _, err := s.ingest.PersistRun(in); err != nil {
		s.writeErr(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, simpleResponse{OK: true, Message: "run persisted"})
}

func (s *Server) handleIngestTests(w http.ResponseWriter, r *http.Request) {
	var req TestsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	runID, err := ids.Parse(req.RunID)
	if err != nil {
		s.writeProblem(w, r, BadRequest("invalid run_id: "+err.Error()))

		return
	}

	inputs := make([]ingest.TestInput, 0, len(req.Tests))

	for _, t := range req.Tests {
		in, err := t.toInput()
		if err != nil {
			s.writeProblem(w, r, BadRequest("invalid test: "+err.Error()))

			return
		}

		inputs = append(inputs, in)
	}

	_, count, err := s.ingest.PersistTests(runID, inputs)
	if err != nil {
		s.writeErr(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, countResponse{OK: true, Count: count})
}

func (s *Server) handleIngestSignals(w http.ResponseWriter, r *http.Request) {
	var req SignalsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	runID, err := ids.Parse(req.RunID)
	if err != nil {
		s.writeProblem(w, r, BadRequest("invalid run_id: "+err.Error()))

		return
	}

	inputs := make([]ingest.SignalInput, 0, len(req.Signals))

	for _, sig := range req.Signals {
		in, err := sig.toInput()
		if err != nil {
			s.writeProblem(w, r, BadRequest("invalid signal: "+err.Error()))

			return
		}

		inputs = append(inputs, in)
	}

	count, err := s.ingest.PersistSignals(runID, inputs)
	if err != nil {
		s.writeErr(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, countResponse{OK: true, Count: count})
}

func (s *Server) handleIngestArtifacts(w http.ResponseWriter, r *http.Request) {
	var req ArtifactsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	runID, err := ids.Parse(req.RunID)
	if err != nil {
		s.writeProblem(w, r, BadRequest("invalid run_id: "+err.Error()))

		return
	}

	inputs := make([]ingest.ArtifactInput, 0, len(req.Artifacts))

	for _, art := range req.Artifacts {
		in, err := art.toInput()
		if err != nil {
			s.writeProblem(w, r, BadRequest("invalid artifact: "+err.Error()))

			return
		}

		inputs = append(inputs, in)
	}

	count, err := s.ingest.PersistArtifacts(runID, inputs)
	if err != nil {
		s.writeErr(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, countResponse{OK: true, Count: count})
}

func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	in, err := req.toInput()
	if err != nil {
		s.writeProblem(w, r, BadRequest("invalid batch: "+err.Error()))

		return
	}

	result, err := s.ingest.Batch(in)
	if err != nil {
		problem := NewProblemDetail(statusForErr(err), "Batch Ingest Failed", err.Error())

		s.writeJSON(w, r, problem.Status, batchFailureResponse{
			ProblemDetail: problem.WithInstance(r.URL.Path).WithCorrelationID(middleware.GetCorrelationID(r.Context())),
			PartialCounts: toCountsDTO(result.Counts),
		})

		return
	}

	s.writeJSON(w, r, http.StatusOK, batchResponse{
		OK:        true,
		Message:   "batch ingested",
		Counts:    toCountsDTO(result.Counts),
		TestIDMap: toTestIDMapDTO(result.TestIDMap),
	})
}

// handleIngestBatchAsync implements the optional async batch transport:
// it validates the batch envelope exactly as the
// synchronous route does, then enqueues the raw bytes onto the
// internal/asyncingest topic keyed by run_id, returning immediately
// instead of waiting for the replay. Disabled (503) when no
// LIMINAL_KAFKA_BROKERS was configured at startup.
func (s *Server) handleIngestBatchAsync(w http.ResponseWriter, r *http.Request) {
	if s.asyncPublisher == nil {
		s.writeProblem(w, r, ServiceUnavailable("async batch transport is not configured"))

		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeProblem(w, r, BadRequest("failed to read request body: "+err.Error()))

		return
	}

	var req BatchRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.writeProblem(w, r, BadRequest("malformed JSON body: "+err.Error()))

		return
	}

	if _, err := req.toInput(); err != nil {
		s.writeProblem(w, r, BadRequest("invalid batch: "+err.Error()))

		return
	}

	if err := s.asyncPublisher.Publish(r.Context(), req.Run.ID, payload); err != nil {
		s.writeErr(w, r, errs.Storage(err))

		return
	}

	s.writeJSON(w, r, http.StatusAccepted, asyncBatchResponse{
		OK:      true,
		Message: "batch enqueued",
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	builder, err := req.toBuilder()
	if err != nil {
		s.writeProblem(w, r, BadRequest("invalid filter: "+err.Error()))

		return
	}

	result, err := builder.Execute(s.store)
	if err != nil {
		s.writeErr(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, QueryResponse{Facts: result.Facts, Total: result.Total})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	runID, err := ids.Parse(r.PathValue("run_id"))
	if err != nil {
		s.writeProblem(w, r, BadRequest("invalid run_id: "+err.Error()))

		return
	}

	reflection, err := report.Query(s.store, runID)
	if err != nil {
		s.writeErr(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, reflection)
}

// decodeJSON decodes the request body into v, writing a 400 problem
// response and returning false on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeProblem(w, r, BadRequest("malformed JSON body: "+err.Error()))

		return false
	}

	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "path", r.URL.Path, "error", err)
	}
}

func (s *Server) writeProblem(w http.ResponseWriter, r *http.Request, problem *ProblemDetail) {
	WriteErrorResponse(w, r, s.logger, problem)
}

// writeErr maps a domain error's errs.Kind to its HTTP status and
// writes it as an RFC 7807 problem.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	s.writeProblem(w, r, NewProblemDetail(statusForErr(err), "Request Failed", err.Error()))
}

// statusForErr maps an errs.Kind to an HTTP status: Validation/NotFound
// as 4xx, Storage/Serialization as 5xx, Timeout as 504, Unauthorized as
// 401.
func statusForErr(err error) int {
	switch errs.GetKind(err) {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindUnauthorized:
		return http.StatusUnauthorized
	case errs.KindTimeout:
		return http.StatusGatewayTimeout
	case errs.KindSerialization, errs.KindStorage, errs.KindUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

