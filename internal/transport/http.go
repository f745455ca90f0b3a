package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/pai-unit/internal/completion"
	"github.com/p-n-ai/pai-unit/internal/content"
	"github.com/p-n-ai/pai-unit/internal/report"
)

var errUnknownUnit = errors.New("unknown unit")

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// UnitSummary describes a unit without its question definitions.
type UnitSummary struct {
	ID          string      `json:"id"`
	Version     string      `json:"version,omitempty"`
	Name        string      `json:"name"`
	Fingerprint string      `json:"fingerprint"`
	Containers  []EntityRef `json:"containers"`
	Paths       []EntityRef `json:"paths,omitempty"`
}

// EntityRef names a container or path by its entity id.
type EntityRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func (s *Server) handleUnits(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"units": s.units.UnitIDs()})
}

func (s *Server) handleUnit(w http.ResponseWriter, r *http.Request) {
	u, ok := s.units.GetUnit(r.PathValue("unit"))
	if !ok {
		writeError(w, http.StatusNotFound, "unit not found")
		return
	}

	langs := preferredLanguages(r)
	sum := UnitSummary{
		ID:          u.ID,
		Version:     u.Version,
		Fingerprint: u.Fingerprint,
		Containers:  []EntityRef{},
	}
	sum.Name, _ = u.Name.Resolve(langs...)
	for _, c := range u.Containers {
		ref := EntityRef{ID: c.ID}
		ref.Name, _ = c.Name.Resolve(langs...)
		sum.Containers = append(sum.Containers, ref)
	}
	for _, p := range allPaths(u) {
		ref := EntityRef{ID: p.ID}
		ref.Name, _ = p.Name.Resolve(langs...)
		sum.Paths = append(sum.Paths, ref)
	}
	writeJSON(w, http.StatusOK, sum)
}

func allPaths(u *content.Unit) []content.Path {
	paths := u.Paths
	if u.Help != nil {
		paths = append([]content.Path{*u.Help}, paths...)
	}
	return paths
}

// handleProgress returns the completion state of a learner who has an
// engine on this server.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r.PathValue("unit"), r.PathValue("learner"))
	if !ok {
		writeError(w, http.StatusNotFound, "no session for learner")
		return
	}
	sess.mu.Lock()
	snap := sess.eng.Snapshot()
	sess.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string][]completion.Status{"entities": snap})
}

// handleExport writes the last finished attempt of ?questionnaire= as a
// spreadsheet. The questionnaire must allow review.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	unitID, learnerID := r.PathValue("unit"), r.PathValue("learner")
	qid := r.URL.Query().Get("questionnaire")
	if qid == "" {
		writeError(w, http.StatusBadRequest, "questionnaire is required")
		return
	}
	sess, ok := s.lookup(unitID, learnerID)
	if !ok {
		writeError(w, http.StatusNotFound, "no session for learner")
		return
	}

	attempt, err := sess.lastAttempt(qid)
	if err != nil {
		switch {
		case errors.Is(err, completion.ErrUnknownEntity):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusConflict, err.Error())
		}
		return
	}
	attempt.UnitID = unitID
	attempt.LearnerID = learnerID

	var buf bytes.Buffer
	if err := report.Write(&buf, attempt); err != nil {
		slog.Error("review export failed", "unit_id", unitID, "learner_id", learnerID, "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="review-%d.xlsx"`, attempt.Attempt))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (ss *session) lastAttempt(qid string) (report.Attempt, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	q, ok := ss.eng.Questionnaire(qid)
	if !ok {
		return report.Attempt{}, fmt.Errorf("%w: %s is not a questionnaire", completion.ErrUnknownEntity, qid)
	}
	last, ok := q.Last()
	if !ok {
		return report.Attempt{}, fmt.Errorf("%w: %s has no finished attempt", completion.ErrInvalidTransition, qid)
	}
	fb, err := last.Feedback(ss.langs...)
	if err != nil {
		return report.Attempt{}, err
	}
	items, err := last.Review(ss.langs...)
	if err != nil {
		return report.Attempt{}, err
	}
	return report.Attempt{
		QuestionnaireID: qid,
		Attempt:         last.Attempt,
		Feedback:        fb,
		Review:          items,
	}, nil
}

func writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, errUnknownUnit) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	slog.Error("engine creation failed", "error", err)
	writeError(w, http.StatusUnprocessableEntity, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
