package gemini

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"healthbot/agent-app/core"
)

const candidate = `{"candidates":[{"content":{"role":"model","parts":[{"text":%q}]}}]%s}`

func newTestServer(t *testing.T, bodies *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*bodies = append(*bodies, string(b))
		if strings.Contains(r.URL.Path, "streamGenerateContent") {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprintf(w, "data: "+candidate+"\n\n", "<response>Rest ", "")
			fmt.Fprintf(w, "data: "+candidate+"\n\n", "well</response>", `,"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":3,"totalTokenCount":7}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, candidate, "Drink fluids.", `,"usageMetadata":{"promptTokenCount":2,"candidatesTokenCount":1,"totalTokenCount":3}`)
	}))
}

func TestGenerate(t *testing.T) {
	var bodies []string
	srv := newTestServer(t, &bodies)
	defer srv.Close()

	g, err := NewGemini(context.Background(), "test-key", "", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	history := []core.ChatContent{core.NewContent("user", "hi"), core.NewContent("assistant", "hello")}
	out, err := g.Generate(context.Background(), "be brief", history, core.LLMInput{Text: "flu?"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Text != "Drink fluids." || out.Stats.TotalTokenCount != 3 {
		t.Errorf("out = %+v", out)
	}
	if len(bodies) != 1 || !strings.Contains(bodies[0], `"role":"model"`) || !strings.Contains(bodies[0], "be brief") {
		t.Errorf("request body = %v", bodies)
	}
}

func TestStream(t *testing.T) {
	var bodies []string
	srv := newTestServer(t, &bodies)
	defer srv.Close()

	g, err := NewGemini(context.Background(), "test-key", DefaultModel, WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	var chunks []string
	out, err := g.Stream(context.Background(), "", nil, core.LLMInput{Text: "flu?"}, func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(chunks) != 2 || out.Text != "<response>Rest well</response>" {
		t.Errorf("chunks = %q, out = %q", chunks, out.Text)
	}
	if out.Stats.TotalTokenCount != 7 {
		t.Errorf("stats = %+v", out.Stats)
	}
}
