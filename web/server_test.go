package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"healthbot/agent-app/config"
	"healthbot/agent-app/core"
	"healthbot/agent-app/lib"
	"healthbot/agent-app/services/chat_service"
	"healthbot/agent-app/store"
)

func init() {
	gin.SetMode(gin.TestMode)
	binding.Validator = lib.NewValidator()
}

type fakeRunner struct {
	output string
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, th *core.TaskHistory, input core.LLMInput, out io.Writer) (core.LLMOutput, error) {
	fmt.Fprint(out, f.output)
	th.Contents = append(th.Contents, core.NewContent("user", input.Text))
	th.Status = core.StatusCompleted
	return core.LLMOutput{Text: f.output}, f.err
}

func newTestRouter(runner *fakeRunner, calls *int) *gin.Engine {
	factory := func(ctx context.Context, creds chat_service.Credentials) (chat_service.Runner, error) {
		*calls++
		return runner, nil
	}
	svc := chat_service.NewService(factory, store.New(), nil, 0)
	return NewRouter(NewServer(svc, config.Default()))
}

func postForm(r http.Handler, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postJSON(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIndexRendersForm(t *testing.T) {
	var calls int
	r := newTestRouter(&fakeRunner{}, &calls)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"<h1>Healthcare Chatbot</h1>",
		"Enter PHI API Key",
		"Enter GROQ API Key",
		`value="How to treat influenza at home?"`,
		chat_service.MissingCredentialsWarning,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestSubmitWithoutKeysWarns(t *testing.T) {
	var calls int
	r := newTestRouter(&fakeRunner{output: "never"}, &calls)

	w := postForm(r, url.Values{"phi_api_key": {"phi"}, "question": {"flu?"}})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, chat_service.MissingCredentialsWarning) {
		t.Error("warning not shown")
	}
	if strings.Contains(body, "<pre><code>") || calls != 0 {
		t.Errorf("team was run without both keys (calls = %d)", calls)
	}
}

func TestSubmitRendersCleanOutput(t *testing.T) {
	var calls int
	runner := &fakeRunner{output: "\x1b[1;32mRest\x1b[0m & drink <fluids>\n"}
	r := newTestRouter(runner, &calls)

	w := postForm(r, url.Values{"phi_api_key": {"phi"}, "model_api_key": {"gsk"}, "question": {"flu?"}})

	body := w.Body.String()
	if !strings.Contains(body, "<pre><code>Rest &amp; drink &lt;fluids&gt;\n</code></pre>") {
		t.Errorf("output block not rendered:\n%s", body)
	}
	if strings.Contains(body, "\x1b") {
		t.Error("escape sequence reached the page")
	}
	if strings.Contains(body, chat_service.MissingCredentialsWarning) {
		t.Error("key warning shown with both keys set")
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}

func TestSubmitRendersError(t *testing.T) {
	var calls int
	runner := &fakeRunner{output: "partial", err: errors.New("rate limited")}
	r := newTestRouter(runner, &calls)

	w := postForm(r, url.Values{"phi_api_key": {"phi"}, "model_api_key": {"gsk"}, "question": {"flu?"}})

	body := w.Body.String()
	if !strings.Contains(body, `<div class="box error">An error occurred: rate limited</div>`) {
		t.Errorf("error box missing:\n%s", body)
	}
}

func TestSubmitMalformedFormRendersPage(t *testing.T) {
	var calls int
	r := newTestRouter(&fakeRunner{}, &calls)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("question=%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, `<div class="box error">An error occurred: `) || !strings.Contains(body, "<h1>Healthcare Chatbot</h1>") {
		t.Errorf("error not rendered on the page:\n%s", body)
	}
	if calls != 0 {
		t.Errorf("calls = %d", calls)
	}
}

func TestAskAPI(t *testing.T) {
	var calls int
	r := newTestRouter(&fakeRunner{output: "\x1b[33mhydrate\x1b[0m"}, &calls)

	w := postJSON(r, `{"phi_api_key":"phi","model_api_key":"gsk","question":"flu?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var sub chat_service.Submission
	if err := json.Unmarshal(w.Body.Bytes(), &sub); err != nil {
		t.Fatal(err)
	}
	if sub.Output != "hydrate" || sub.TaskId != 1 || sub.Status != core.StatusCompleted {
		t.Errorf("submission = %+v", sub)
	}
}

func TestAskAPIStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		runner *fakeRunner
		body   string
		want   int
	}{
		{"missing key", &fakeRunner{}, `{"phi_api_key":"phi","question":"flu?"}`, http.StatusBadRequest},
		{"malformed", &fakeRunner{}, `{"phi_api_key":`, http.StatusBadRequest},
		{"delegate error", &fakeRunner{err: errors.New("boom")}, `{"phi_api_key":"p","model_api_key":"m","question":"q"}`, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int
			w := postJSON(newTestRouter(tc.runner, &calls), tc.body)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tc.want, w.Body)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	var calls int
	r := newTestRouter(&fakeRunner{output: "ok"}, &calls)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set(platformKeyHeader, "phi")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status before ask = %d", w.Code)
	}

	postJSON(r, `{"phi_api_key":"phi","model_api_key":"gsk","question":"flu?"}`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var task core.TaskHistory
	if err := json.Unmarshal(w.Body.Bytes(), &task); err != nil {
		t.Fatal(err)
	}
	if task.TaskId != 1 || len(task.Contents) != 1 || task.Contents[0].Content != "flu?" {
		t.Errorf("task = %+v", task)
	}
}

func TestHealthAndCORS(t *testing.T) {
	var calls int
	r := newTestRouter(&fakeRunner{}, &calls)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://example.org")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("health = %d %s", w.Code, w.Body)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q", got)
	}
}
