package restexecutor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/kaiju-coding/codejudge/auth"
	"github.com/kaiju-coding/codejudge/cmd/codejudge/model"
	"github.com/kaiju-coding/codejudge/evaluation"
	"github.com/kaiju-coding/codejudge/execution"
	"github.com/kaiju-coding/codejudge/language"
	"github.com/kaiju-coding/codejudge/pkg/apperr"
	"go.uber.org/zap/zaptest"
)

type mockExecutor struct {
	got     execution.Request
	outcome execution.Outcome
	err     error
}

func (m *mockExecutor) Execute(_ context.Context, req execution.Request) (execution.Outcome, error) {
	m.got = req
	return m.outcome, m.err
}

type mockEvaluator struct {
	got evaluation.Submission
	err error
}

func (m *mockEvaluator) Evaluate(_ context.Context, sub evaluation.Submission) (*evaluation.Result, error) {
	m.got = sub
	if m.err != nil {
		return nil, m.err
	}
	return &evaluation.Result{
		SubmissionID:  "sub_1",
		TotalPoints:   1,
		MaximumPoints: 1,
		Percentage:    100,
		Feedback:      evaluation.Feedback(1, 1, 100),
		TestResults:   []evaluation.TestCaseResult{{TestCaseID: "t1", Passed: true, PointsAwarded: 1, PointsPossible: 1}},
	}, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, ex execution.Executor, ev Evaluator, v auth.Verifier) *gin.Engine {
	logger := zaptest.NewLogger(t)
	r := gin.New()
	var routes gin.IRoutes = r
	if v != nil {
		routes = r.Group("/", Auth(v, logger))
	}
	New(ex, ev, []language.Language{language.CPP, language.Python}, logger).Register(routes)
	return r
}

func do(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorBody {
	t.Helper()
	var e model.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return e.Error
}

func TestHandleExecute(t *testing.T) {
	ex := &mockExecutor{outcome: execution.Outcome{
		Stdout:     "hello\n",
		Elapsed:    42 * time.Millisecond,
		Status:     execution.StatusSuccess,
		MemoryPeak: 2 << 20,
	}}
	r := newRouter(t, ex, &mockEvaluator{}, nil)
	w := do(r, http.MethodPost, "/execute", `{"code":"print('hello')","language":"python","input":"x","timeout_seconds":3}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ex.got.Language != language.Python || ex.got.Stdin != "x" || ex.got.Timeout != 3*time.Second {
		t.Fatalf("request = %+v", ex.got)
	}
	var resp struct {
		Result map[string]any `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"stdout":            "hello\n",
		"stderr":            "",
		"execution_time_ms": float64(42),
		"status":            "SUCCESS",
		"memory_usage_kb":   float64(2048),
	}
	for k, v := range want {
		if resp.Result[k] != v {
			t.Errorf("%s = %v, want %v", k, resp.Result[k], v)
		}
	}
}

func TestHandleExecuteErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		typ    string
		msg    string
	}{
		{"unknown language", `{"code":"x","language":"cobol"}`, nil, http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"malformed", `{"code":`, nil, http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"no language", `{"code":"x"}`, nil, http.StatusBadRequest, "VALIDATION_ERROR", "Language is required"},
		{"empty code", `{"code":"","language":"python"}`, apperr.Validation("Code cannot be empty"), http.StatusBadRequest, "VALIDATION_ERROR", "Code cannot be empty"},
		{"sandbox", `{"code":"x","language":"python"}`, apperr.Internal(context.DeadlineExceeded, "cgroup setup failed"), http.StatusInternalServerError, "INTERNAL_ERROR", apperr.InternalMessage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(t, &mockExecutor{err: tc.err}, &mockEvaluator{}, nil)
			w := do(r, http.MethodPost, "/execute", tc.body, nil)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
			e := decodeError(t, w)
			if e.Type != tc.typ || (tc.msg != "" && e.Message != tc.msg) {
				t.Fatalf("error = %+v", e)
			}
		})
	}
}

func TestHandleEvaluate(t *testing.T) {
	ev := &mockEvaluator{}
	r := newRouter(t, &mockExecutor{}, ev, nil)
	w := do(r, http.MethodPost, "/evaluate", `{"code":"x","language":"cpp","assignment_id":"hw1","test_cases":[{"id":"t1","input":"1","expected_output":"1","is_hidden":false}]}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ev.got.AssignmentID != "hw1" || len(ev.got.TestCases) != 1 || ev.got.Language != language.CPP {
		t.Fatalf("submission = %+v", ev.got)
	}
	var resp model.Response[evaluation.Result]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Result.SubmissionID != "sub_1" || resp.Result.Feedback != "Excellent! All tests passed." {
		t.Fatalf("result = %+v", resp.Result)
	}

	w = do(r, http.MethodPost, "/evaluate", `{"code":"x","language":"cpp"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing assignment id: status = %d", w.Code)
	}

	ev.err = apperr.NotFound("No test cases found for assignment hw2")
	w = do(r, http.MethodPost, "/evaluate", `{"code":"x","language":"cpp","assignment_id":"hw2"}`, nil)
	if w.Code != http.StatusNotFound || decodeError(t, w).Type != "NOT_FOUND" {
		t.Fatalf("not found: status = %d, body = %s", w.Code, w.Body.String())
	}

	ev.err = apperr.ExternalService(context.DeadlineExceeded, "Test case store unavailable")
	w = do(r, http.MethodPost, "/evaluate", `{"code":"x","language":"cpp","assignment_id":"hw2"}`, nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("store down: status = %d", w.Code)
	}
}

func TestHandleLanguages(t *testing.T) {
	r := newRouter(t, &mockExecutor{}, &mockEvaluator{}, nil)
	w := do(r, http.MethodGet, "/languages", "", nil)
	if w.Code != http.StatusOK || w.Body.String() != `{"languages":["cpp","python"]}` {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestAuthMiddleware(t *testing.T) {
	secret := []byte("s3cret")
	sign := func(exp time.Duration) string {
		now := time.Now()
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
			Role: auth.RoleStudent,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "student-7",
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(exp)),
			},
		}).SignedString(secret)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	ev := &mockEvaluator{}
	r := newRouter(t, &mockExecutor{}, ev, auth.NewJWTVerifier(secret))
	body := `{"code":"x","language":"python","assignment_id":"hw1"}`

	tests := []struct {
		name   string
		header map[string]string
		status int
		msg    string
	}{
		{"missing", nil, http.StatusUnauthorized, auth.MsgMissingHeader},
		{"format", map[string]string{"Authorization": "Token abc"}, http.StatusUnauthorized, auth.MsgInvalidFormat},
		{"expired", map[string]string{"Authorization": "Bearer " + sign(-time.Minute)}, http.StatusUnauthorized, auth.MsgTokenExpired},
		{"invalid", map[string]string{"Authorization": "Bearer abc.def.ghi"}, http.StatusUnauthorized, auth.MsgInvalidToken},
		{"valid", map[string]string{"Authorization": "Bearer " + sign(time.Hour)}, http.StatusOK, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/evaluate", body, tc.header)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tc.status, w.Body.String())
			}
			if tc.msg != "" {
				if e := decodeError(t, w); e.Type != "AUTHENTICATION_ERROR" || e.Message != tc.msg {
					t.Fatalf("error = %+v", e)
				}
			}
		})
	}
	if ev.got.Subject != "student-7" {
		t.Fatalf("subject = %q", ev.got.Subject)
	}

	w := do(r, http.MethodPost, "/evaluate?access_token="+sign(time.Hour), body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("query token: status = %d", w.Code)
	}
}
