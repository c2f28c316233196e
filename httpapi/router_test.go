package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Andrandra1na/AMER-SMA/aggregate"
	"github.com/Andrandra1na/AMER-SMA/jobs"
	"github.com/Andrandra1na/AMER-SMA/metrics"
	"github.com/Andrandra1na/AMER-SMA/scoring"
	"github.com/Andrandra1na/AMER-SMA/store"
	"github.com/Andrandra1na/AMER-SMA/timeline"
)

type fakeDispatcher struct {
	busy    map[int64]bool
	healthy bool
	queued  []int64
}

func (f *fakeDispatcher) Enqueue(id int64) (string, error) {
	if f.busy[id] {
		return "job-running", fmt.Errorf("%w %d", jobs.ErrInFlight, id)
	}
	f.queued = append(f.queued, id)
	return fmt.Sprintf("job-%d", id), nil
}
func (f *fakeDispatcher) InFlight(id int64) bool { return f.busy[id] }
func (f *fakeDispatcher) Healthy() bool          { return f.healthy }
func (f *fakeDispatcher) Stats() jobs.Stats      { return jobs.Stats{Capacity: 8, WorkerCount: 2} }

func setup(t *testing.T) (*gin.Engine, *store.Store, *fakeDispatcher) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st, err := store.Open(filepath.Join(t.TempDir(), "amer.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	d := &fakeDispatcher{busy: map[int64]bool{}, healthy: true}
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewRouter(st, d, metrics.New(), log).Engine(), st, d
}

func newSession(t *testing.T, st *store.Store) int64 {
	t.Helper()
	id, err := st.CreateSession(context.Background(), &store.Session{
		Candidate: "c-1",
		MediaPath: "data/uploads/c-1.webm",
		Events:    []timeline.Event{{QuestionID: 1, Timestamp: 0}},
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return id
}

func do(e *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestHealth(t *testing.T) {
	e, _, d := setup(t)
	if rr := do(e, http.MethodGet, "/ops/health"); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	d.healthy = false
	if rr := do(e, http.MethodGet, "/ops/health"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestAnalyzeEnqueuesOnce(t *testing.T) {
	e, st, d := setup(t)
	id := newSession(t, st)
	path := fmt.Sprintf("/sessions/%d/analyze", id)

	rr := do(e, http.MethodPost, path)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body)
	}
	if len(d.queued) != 1 || d.queued[0] != id {
		t.Fatalf("queued %v", d.queued)
	}

	d.busy[id] = true
	if rr := do(e, http.MethodPost, path); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if rr := do(e, http.MethodPost, "/sessions/999/analyze"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", rr.Code)
	}
	if rr := do(e, http.MethodPost, "/sessions/abc/analyze"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestReportOnlyWhenComplete(t *testing.T) {
	e, st, _ := setup(t)
	id := newSession(t, st)
	path := fmt.Sprintf("/sessions/%d/report", id)

	if rr := do(e, http.MethodGet, path); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before analysis, got %d", rr.Code)
	}

	ctx := context.Background()
	err := st.CommitRun(ctx, store.RunCommit{
		SessionID: id,
		RunID:     "run-1",
		Answers:   []store.AnswerAnalysis{{QuestionID: 1, Transcription: "hello", RelevanceScore: 0.7, GrammarScore: 1}},
		Metrics:   aggregate.SessionMetrics{DominantEmotion: "calm", EmotionScores: map[string]float64{"calm": 1}},
		Report:    store.Report{FinalScore: 71.5, WeightProfile: "default", Weights: scoring.DefaultWeights},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	rr := do(e, http.MethodGet, path)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body)
	}
	var body struct {
		Status  string                 `json:"status"`
		Report  store.Report           `json:"report"`
		Answers []store.AnswerAnalysis `json:"answers"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != string(store.StatusComplete) || body.Report.FinalScore != 71.5 || len(body.Answers) != 1 {
		t.Fatalf("body %+v", body)
	}

	if err := st.SetStatus(ctx, id, store.StatusFailed); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if rr := do(e, http.MethodGet, path); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after a failed rerun, got %d", rr.Code)
	}
}

func TestSessionAndMetrics(t *testing.T) {
	e, st, d := setup(t)
	id := newSession(t, st)
	d.busy[id] = true

	rr := do(e, http.MethodGet, fmt.Sprintf("/sessions/%d", id))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Session  store.Session `json:"session"`
		InFlight bool          `json:"in_flight"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Session.Status != store.StatusPending || !body.InFlight {
		t.Fatalf("body %+v", body)
	}

	rr = do(e, http.MethodGet, "/ops/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var m struct {
		Counters map[string]int64 `json:"counters"`
		Queue    jobs.Stats       `json:"queue"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if m.Queue.Capacity != 8 {
		t.Fatalf("metrics %+v", m)
	}
	if _, ok := m.Counters["runs_started"]; !ok {
		t.Fatalf("counters %+v", m.Counters)
	}
}
