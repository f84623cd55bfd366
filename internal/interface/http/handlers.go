package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Moeed-Tahir/perfect-connect/config"
	"github.com/Moeed-Tahir/perfect-connect/internal/application/command"
	"github.com/Moeed-Tahir/perfect-connect/internal/application/query"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
	"github.com/Moeed-Tahir/perfect-connect/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth is the liveness check: the process answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	startedAt := s.startedAt
	s.mu.RUnlock()

	body := map[string]interface{}{"status": "ok"}
	if !startedAt.IsZero() {
		body["uptime"] = time.Since(startedAt).Round(time.Second).String()
	}
	writeJSON(w, http.StatusOK, body)
}

// handleReady is the readiness check: every dependency answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// INTEREST HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type toggleInterestRequest struct {
	LikerID  string `json:"liker_id"`
	LikeeID  string `json:"likee_id"`
	Program  string `json:"program"`
	Category string `json:"category"`
}

type toggleInterestResponse struct {
	Liked             bool                      `json:"liked"`
	Matched           bool                      `json:"matched"`
	PairKey           string                    `json:"pair_key"`
	Report            *social.CommonalityReport `json:"report,omitempty"`
	ConnectionRetired bool                      `json:"connection_retired"`

	// ConnectionPending is set when the edge is committed but the connection
	// write failed; reconciliation will converge it.
	ConnectionPending bool `json:"connection_pending,omitempty"`
}

func (s *Server) handleToggleInterest(w http.ResponseWriter, r *http.Request) {
	var req toggleInterestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.deps.ToggleInterest.Handle(r.Context(), command.ToggleInterestCommand{
		LikerID:       req.LikerID,
		LikeeID:       req.LikeeID,
		Program:       req.Program,
		Category:      req.Category,
		CorrelationID: logger.CorrelationID(r.Context()),
	})

	status := http.StatusOK
	if err != nil {
		if !command.IsPartialApply(err) || result == nil {
			writeError(w, r, err)
			return
		}
		log := logger.FromContext(r.Context())
		log.Warn().Err(err).Msg("interest committed with pending connection write")
		status = http.StatusAccepted
	}

	writeJSON(w, status, toggleInterestResponse{
		Liked:             result.Liked,
		Matched:           result.Matched,
		PairKey:           result.PairKey.String(),
		Report:            result.Report,
		ConnectionRetired: result.ConnectionRetired,
		ConnectionPending: status == http.StatusAccepted,
	})
}

func (s *Server) handleListInterests(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.deps.ListInterests.Handle(r.Context(), query.ListInterestsQuery{
		LikerID:  chi.URLParam(r, "id"),
		Program:  r.URL.Query().Get("program"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHasPendingInterest(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.HasPendingInterest.Handle(r.Context(), query.HasPendingInterestQuery{
		ParticipantID: chi.URLParam(r, "id"),
		Program:       r.URL.Query().Get("program"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetConnections(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetConnections.Handle(r.Context(), query.GetConnectionsQuery{
		ParticipantID: chi.URLParam(r, "id"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetCommonalities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := s.deps.GetCommonalities.Handle(r.Context(), query.GetCommonalitiesQuery{
		ParticipantA: q.Get("a"),
		ParticipantB: q.Get("b"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDiscoverCandidates(w http.ResponseWriter, r *http.Request) {
	viewerID := chi.URLParam(r, "id")
	if s.deps.Features != nil && !s.deps.Features.IsEnabled(config.FeatureDiscovery, &config.FeatureContext{ParticipantID: viewerID}) {
		writeErrorBody(w, http.StatusForbidden, "feature_disabled", "candidate discovery is not enabled for this participant")
		return
	}

	page, pageSize, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	result, err := s.deps.DiscoverCandidates.Handle(r.Context(), query.DiscoverCandidatesQuery{
		ViewerID: viewerID,
		Program:  q.Get("program"),
		Role:     q.Get("role"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// PARTICIPANT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type upsertParticipantRequest struct {
	DisplayName string                        `json:"display_name"`
	Host        *participant.HostProfile      `json:"host,omitempty"`
	Candidate   *participant.CandidateProfile `json:"candidate,omitempty"`
}

func (s *Server) handleUpsertParticipant(w http.ResponseWriter, r *http.Request) {
	var req upsertParticipantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.deps.UpsertParticipant.Handle(r.Context(), command.UpsertParticipantCommand{
		ID:          chi.URLParam(r, "id"),
		DisplayName: req.DisplayName,
		Host:        req.Host,
		Candidate:   req.Candidate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, result.Participant)
}

type programPauseResponse struct {
	ParticipantID string   `json:"participant_id"`
	Program       string   `json:"program"`
	Paused        bool     `json:"paused"`
	Roles         []string `json:"roles"`
}

func (s *Server) handleSetProgramPause(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		program := chi.URLParam(r, "program")

		result, err := s.deps.SetProgramPause.Handle(r.Context(), command.SetProgramPauseCommand{
			ParticipantID: id,
			Role:          r.URL.Query().Get("role"),
			Program:       program,
			Paused:        paused,
			CorrelationID: logger.CorrelationID(r.Context()),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		roles := make([]string, 0, len(result.Roles))
		for _, role := range result.Roles {
			roles = append(roles, role.String())
		}
		writeJSON(w, http.StatusOK, programPauseResponse{
			ParticipantID: id,
			Program:       program,
			Paused:        paused,
			Roles:         roles,
		})
	}
}

func (s *Server) handleBlock(unblock bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.deps.BlockParticipant.Handle(r.Context(), command.BlockParticipantCommand{
			BlockerID: chi.URLParam(r, "id"),
			TargetID:  chi.URLParam(r, "target"),
			Unblock:   unblock,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type reconcileResponse struct {
	DryRun       bool   `json:"dry_run"`
	PairsScanned int    `json:"pairs_scanned"`
	Repaired     int    `json:"repaired"`
	Refreshed    int    `json:"refreshed"`
	Retired      int    `json:"retired"`
	Failed       int    `json:"failed"`
	Skipped      bool   `json:"skipped"`
	Duration     string `json:"duration"`
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reconcile == nil {
		writeErrorBody(w, http.StatusServiceUnavailable, "reconcile_unavailable", "reconciliation is not configured")
		return
	}

	q := r.URL.Query()
	dryRun := q.Get("dry_run") == "true"
	batchSize, err := intParam(q.Get("batch_size"), "batch_size")
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.deps.Reconcile.Handle(r.Context(), command.ReconcileConnectionsCommand{
		BatchSize:     batchSize,
		DryRun:        dryRun,
		CorrelationID: logger.CorrelationID(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, reconcileResponse{
		DryRun:       dryRun,
		PairsScanned: result.PairsScanned,
		Repaired:     result.Repaired,
		Refreshed:    result.Refreshed,
		Retired:      result.Retired,
		Failed:       result.Failed,
		Skipped:      result.Skipped,
		Duration:     result.Duration.String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PARAMETER HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func pagination(r *http.Request) (page, pageSize int, err error) {
	q := r.URL.Query()
	if page, err = intParam(q.Get("page"), "page"); err != nil {
		return 0, 0, err
	}
	if pageSize, err = intParam(q.Get("page_size"), "page_size"); err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}

// intParam parses an optional integer query parameter; empty means 0.
func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, shared.WrapError("http", "ParseQuery", shared.ErrValidation, name+" must be an integer", err)
	}
	return n, nil
}
