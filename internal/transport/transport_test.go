package transport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-unit/internal/completion"
	"github.com/p-n-ai/pai-unit/internal/content"
	"github.com/p-n-ai/pai-unit/internal/engine"
	"github.com/p-n-ai/pai-unit/internal/notify"
	"github.com/p-n-ai/pai-unit/internal/report"
	"github.com/p-n-ai/pai-unit/internal/transport"
)

const (
	introBlock = "containers/intro/blocks/0"
	quizBlock  = "containers/quiz/blocks/0"
)

type units map[string]*content.Unit

func (u units) GetUnit(id string) (*content.Unit, bool) {
	x, ok := u[id]
	return x, ok
}

func (u units) UnitIDs() []string {
	ids := make([]string, 0, len(u))
	for id := range u {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func quizUnit() *content.Unit {
	one := 1.0
	qs := make([]content.Question, 3)
	for i := range qs {
		qs[i] = content.Question{Definition: content.QuestionDefinition{
			Description:             content.LanguageMap{"en": "Pick a"},
			InteractionType:         content.InteractionChoice,
			Score:                   &one,
			CorrectResponsesPattern: []string{"a"},
			Choices: []content.InteractionComponent{
				{ID: "a", Description: content.LanguageMap{"en": "A"}},
				{ID: "b", Description: content.LanguageMap{"en": "B"}},
			},
		}}
	}
	return &content.Unit{
		ID:          "algebra",
		Name:        content.LanguageMap{"en": "Algebra", "ms": "Algebra Asas"},
		Fingerprint: "abc123",
		Containers: []content.PathContainer{
			{ID: "containers/intro", Container: content.Container{Blocks: []content.Block{
				{Type: content.KindHTML, URL: "intro.html"},
			}}},
			{ID: "containers/quiz", Complete: true, Container: content.Container{Blocks: []content.Block{{
				Type:         content.KindQuestionnaire,
				DoneCriteria: content.CriteriaPassed,
				Review:       true,
				First: &content.Part{
					PassCriteria: &content.PassCriteria{Score: 3},
					Questions:    qs,
				},
			}}}},
		},
	}
}

func newTestServer(t *testing.T, sink notify.Sink) *httptest.Server {
	t.Helper()
	srv := transport.NewServer(units{"algebra": quizUnit()}, transport.Options{
		Engine: engine.Config{Sink: sink},
	})
	mux := http.NewServeMux()
	srv.Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server, learner string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?unit=algebra&learner=" + learner
	c, _, err := websocket.Dial(t.Context(), u, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { c.CloseNow() })
	return c
}

// readUntil reads envelopes until one of type typ arrives and returns it with
// the notifications seen before it.
func readUntil(t *testing.T, ctx context.Context, c *websocket.Conn, typ string) (transport.Envelope, []notify.Notification) {
	t.Helper()
	var seen []notify.Notification
	for {
		var env transport.Envelope
		if err := wsjson.Read(ctx, c, &env); err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if env.Type == typ {
			return env, seen
		}
		if env.Type == transport.TypeNotification {
			seen = append(seen, *env.Notification)
		}
	}
}

func send(t *testing.T, c *websocket.Conn, ev engine.Event) (engine.Result, []notify.Notification) {
	t.Helper()
	if err := wsjson.Write(t.Context(), c, ev); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	env, seen := readUntil(t, t.Context(), c, transport.TypeResult)
	if env.Result == nil {
		t.Fatal("result envelope without result")
	}
	return *env.Result, seen
}

func TestServeWS_PassQuizAndExport(t *testing.T) {
	sink := notify.NewMemorySink()
	ts := newTestServer(t, sink)
	c := dial(t, ts, "learner-1")

	snap, _ := readUntil(t, t.Context(), c, transport.TypeSnapshot)
	if len(snap.Snapshot) == 0 {
		t.Fatal("empty snapshot")
	}
	for _, st := range snap.Snapshot {
		if st.State != completion.NotVisible {
			t.Errorf("%s = %s, want not visible", st.EntityID, st.State)
		}
	}

	res, seen := send(t, c, engine.Event{TargetID: introBlock, Kind: engine.EventVisible})
	if !res.Accepted || len(res.Transitions) == 0 {
		t.Fatalf("visible result = %+v", res)
	}
	if len(seen) != len(res.Transitions) {
		t.Errorf("notifications = %d, want one per transition (%d)", len(seen), len(res.Transitions))
	}

	res, _ = send(t, c, engine.Event{TargetID: introBlock, Kind: engine.EventAttempt})
	if res.Accepted || res.Error == "" {
		t.Errorf("attempt on html = %+v, want rejection", res)
	}

	send(t, c, engine.Event{TargetID: quizBlock, Kind: engine.EventVisible})
	res, _ = send(t, c, engine.Event{TargetID: quizBlock, Kind: engine.EventAttempt})
	if res.Next == nil || res.Next.Total != 3 {
		t.Fatalf("next = %+v", res.Next)
	}
	for i := 0; i < 3; i++ {
		res, _ = send(t, c, engine.Event{
			TargetID: quizBlock,
			Kind:     engine.EventAnswer,
			Payload:  engine.Payload{Position: i, Response: "a"},
		})
	}
	if res.Feedback == nil || !res.Feedback.Passed {
		t.Fatalf("feedback = %+v, want passed", res.Feedback)
	}

	resp, err := http.Get(ts.URL + "/units/algebra/learners/learner-1")
	if err != nil {
		t.Fatalf("GET progress error = %v", err)
	}
	var progress struct {
		Entities []completion.Status `json:"entities"`
	}
	err = json.NewDecoder(resp.Body).Decode(&progress)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decoding progress: %v", err)
	}
	for _, st := range progress.Entities {
		if st.EntityID == completion.UnitID && st.State != completion.Done {
			t.Errorf("unit state = %s, want done", st.State)
		}
	}

	resp, err = http.Get(ts.URL + "/units/algebra/learners/learner-1/review.xlsx?questionnaire=" + url.QueryEscape(quizBlock))
	if err != nil {
		t.Fatalf("GET export error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	f, err := excelize.OpenReader(resp.Body)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(report.ResponsesSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 4 {
		t.Errorf("response rows = %d, want header plus 3", len(rows))
	}

	if len(sink.Notifications()) == 0 {
		t.Error("base sink received no notifications")
	}
	c.Close(websocket.StatusNormalClosure, "")
}

func TestServeWS_ConnectionsShareLearnerEngine(t *testing.T) {
	ts := newTestServer(t, nil)
	first := dial(t, ts, "learner-2")
	readUntil(t, t.Context(), first, transport.TypeSnapshot)
	send(t, first, engine.Event{TargetID: introBlock, Kind: engine.EventVisible})

	second := dial(t, ts, "learner-2")
	snap, _ := readUntil(t, t.Context(), second, transport.TypeSnapshot)
	visible := false
	for _, st := range snap.Snapshot {
		if st.EntityID == introBlock && st.State == completion.Done {
			visible = true
		}
	}
	if !visible {
		t.Error("second connection should see progress made on the first")
	}

	other := dial(t, ts, "learner-3")
	snap, _ = readUntil(t, t.Context(), other, transport.TypeSnapshot)
	for _, st := range snap.Snapshot {
		if st.State != completion.NotVisible {
			t.Errorf("other learner %s = %s, want not visible", st.EntityID, st.State)
		}
	}
}

func TestHTTP_Routes(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"list units", "/units", http.StatusOK},
		{"unit summary", "/units/algebra", http.StatusOK},
		{"unknown unit", "/units/geometry", http.StatusNotFound},
		{"ws without params", "/ws", http.StatusBadRequest},
		{"ws unknown unit", "/ws?unit=geometry&learner=x", http.StatusNotFound},
		{"progress without session", "/units/algebra/learners/ghost", http.StatusNotFound},
		{"export without questionnaire", "/units/algebra/learners/ghost/review.xlsx", http.StatusBadRequest},
		{"export without session", "/units/algebra/learners/ghost/review.xlsx?questionnaire=x", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s error = %v", tt.path, err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("GET %s status = %d, want %d", tt.path, resp.StatusCode, tt.status)
			}
		})
	}
}

func TestHTTP_UnitSummary(t *testing.T) {
	ts := newTestServer(t, nil)
	req, _ := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL+"/units/algebra?lang=ms", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	var sum transport.UnitSummary
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if sum.Name != "Algebra Asas" || sum.Fingerprint != "abc123" {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.Containers) != 2 || sum.Containers[1].ID != "containers/quiz" {
		t.Errorf("containers = %+v", sum.Containers)
	}
}

func TestHTTP_ExportConflictBeforeFinish(t *testing.T) {
	ts := newTestServer(t, nil)
	c := dial(t, ts, "learner-4")
	readUntil(t, t.Context(), c, transport.TypeSnapshot)
	send(t, c, engine.Event{TargetID: quizBlock, Kind: engine.EventVisible})
	send(t, c, engine.Event{TargetID: quizBlock, Kind: engine.EventAttempt})

	resp, err := http.Get(ts.URL + "/units/algebra/learners/learner-4/review.xlsx?questionnaire=" + url.QueryEscape(quizBlock))
	if err != nil {
		t.Fatalf("GET export error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/units/algebra/learners/learner-4/review.xlsx?questionnaire=" + url.QueryEscape(introBlock))
	if err != nil {
		t.Fatalf("GET export error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("non-questionnaire status = %d, want 404", resp.StatusCode)
	}
}
