package wsexecutor

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kaiju-coding/codejudge/evaluation"
	"github.com/kaiju-coding/codejudge/pkg/apperr"
	"go.uber.org/zap/zaptest"
)

type mockEvaluator struct {
	err error
}

func (m *mockEvaluator) EvaluateWithProgress(ctx context.Context, sub evaluation.Submission, progress evaluation.ProgressFunc) (*evaluation.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	rt := &evaluation.Result{SubmissionID: "sub_x", Feedback: "Excellent! All tests passed."}
	for i, tc := range sub.TestCases {
		r := evaluation.TestCaseResult{TestCaseID: tc.ID, Passed: true}
		progress(i, r)
		rt.TestResults = append(rt.TestResults, r)
	}
	return rt, nil
}

type frame struct {
	Type   string         `json:"type"`
	Index  *int           `json:"index"`
	Result map[string]any `json:"result"`
	Error  *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func dial(t *testing.T, ev Evaluator) *websocket.Conn {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(ev, zaptest.NewLogger(t)).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/evaluate"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestWSEvaluateStreamsProgress(t *testing.T) {
	conn := dial(t, &mockEvaluator{})
	err := conn.WriteJSON(map[string]any{
		"code":          "print(1)",
		"language":      "python",
		"assignment_id": "hw1",
		"test_cases": []map[string]any{
			{"id": "a", "input": "", "expected_output": "1"},
			{"id": "b", "input": "", "expected_output": "1"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	var frames []frame
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatal(err)
		}
		frames = append(frames, f)
		if f.Type != FrameProgress {
			break
		}
	}
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 2 progress and 1 result", len(frames))
	}
	for i, f := range frames[:2] {
		if f.Index == nil || *f.Index != i {
			t.Fatalf("frame %d index = %v", i, f.Index)
		}
	}
	last := frames[2]
	if last.Type != FrameResult || last.Result["submission_id"] != "sub_x" {
		t.Fatalf("last frame = %+v", last)
	}
}

func TestWSEvaluateError(t *testing.T) {
	conn := dial(t, &mockEvaluator{err: apperr.NotFound("No test cases found for assignment hw9")})
	conn.WriteJSON(map[string]any{"code": "x", "language": "rust", "assignment_id": "hw9"})
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	if f.Type != FrameError || f.Error == nil || f.Error.Type != "NOT_FOUND" {
		t.Fatalf("frame = %+v", f)
	}
}

func TestWSEvaluateInvalidRequest(t *testing.T) {
	conn := dial(t, &mockEvaluator{})
	conn.WriteJSON(map[string]any{"code": "x", "language": "python"})
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	if f.Type != FrameError || f.Error.Type != "VALIDATION_ERROR" {
		t.Fatalf("frame = %+v", f)
	}
}
