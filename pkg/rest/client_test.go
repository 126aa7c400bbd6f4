package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/EgorLis/adaptgo/pkg/codec"
)

type call struct {
	Method string
	Path   string
	Auth   string
	Body   string
}

// fakeAPI — httptest-сервер с заготовленными ответами по "METHOD path".
type fakeAPI struct {
	Server *httptest.Server

	mu        sync.Mutex
	calls     []call
	responses map[string]fakeResponse
}

type fakeResponse struct {
	status int
	body   string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{responses: map[string]fakeResponse{}}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *fakeAPI) respond(method, path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[method+" "+path] = fakeResponse{status: status, body: body}
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, call{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Body: string(body)})
	resp, ok := f.responses[r.Method+" "+r.URL.Path]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Unknown route","code":0}`)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = io.WriteString(w, resp.body)
}

func (f *fakeAPI) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]call, len(f.calls))
	copy(cp, f.calls)
	return cp
}

type recordObserver struct {
	mu     sync.Mutex
	routes []string
	status []int
}

func (o *recordObserver) RequestDone(method, route string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.routes = append(o.routes, method+" "+route)
	o.status = append(o.status, status)
}

func TestGetDecodesAndSendsRawToken(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	api.respond("GET", "/channels/100", 200, `{"id":9007199254740993,"name":"general","guild_id":10}`)
	c := New(api.Server.URL, WithToken("secret-token"))

	var ch struct {
		ID      codec.Snowflake `json:"id"`
		Name    string          `json:"name"`
		GuildID codec.Snowflake `json:"guild_id"`
	}
	found, err := c.Get(context.Background(), "/channels/100", &ch)
	if err != nil || !found {
		t.Fatalf("Get = %v, %v", found, err)
	}
	if ch.ID != "9007199254740993" || ch.GuildID != "10" || ch.Name != "general" {
		t.Fatalf("decoded %+v", ch)
	}
	calls := api.Calls()
	if len(calls) != 1 || calls[0].Auth != "secret-token" {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := New(api.Server.URL)

	var out map[string]any
	found, err := c.Get(context.Background(), "/guilds/404", &out)
	if err != nil {
		t.Fatalf("404 must not be an error: %v", err)
	}
	if found || out != nil {
		t.Fatalf("found = %v, out = %v", found, out)
	}
}

func TestRemoteError(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	api.respond("GET", "/user/1", 401, `{"message":"Unauthorized","code":40001}`)
	api.respond("POST", "/guilds", 502, `<html>bad gateway</html>`)
	c := New(api.Server.URL)

	_, err := c.Get(context.Background(), "/user/1", &struct{}{})
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RemoteError, got %v", err)
	}
	if re.Status != 401 || re.Code != 40001 || re.Message != "Unauthorized" {
		t.Fatalf("RemoteError = %+v", re)
	}

	err = c.Post(context.Background(), "/guilds", map[string]string{"name": "x"}, nil)
	if !errors.As(err, &re) || re.Status != 502 || re.Message != "" {
		t.Fatalf("non-JSON error body: %v", err)
	}
	if IsNotFound(err) {
		t.Fatal("502 is not a not-found")
	}
}

func TestPostSendsJSONBody(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	api.respond("POST", "/channels/100/messages", 200, `{"id":"5","content":"hi","channel_id":"100"}`)
	c := New(api.Server.URL, WithToken("tok"))

	var msg struct {
		ID      codec.Snowflake `json:"id"`
		Content string          `json:"content"`
	}
	if err := c.Post(context.Background(), "/channels/100/messages", map[string]string{"content": "hi"}, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.ID != "5" || msg.Content != "hi" {
		t.Fatalf("decoded %+v", msg)
	}

	var sent map[string]string
	if err := json.Unmarshal([]byte(api.Calls()[0].Body), &sent); err != nil || sent["content"] != "hi" {
		t.Fatalf("sent body %q", api.Calls()[0].Body)
	}
}

func TestObserverGetsRoute(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	api.respond("GET", "/channels/100", 200, `{}`)
	obs := &recordObserver{}
	c := New(api.Server.URL, WithObserver(obs))

	if _, err := c.Get(context.Background(), "/channels/100", &struct{}{}); err != nil {
		t.Fatal(err)
	}
	if len(obs.routes) != 1 || obs.routes[0] != "GET /channels/{id}" || obs.status[0] != 200 {
		t.Fatalf("observer saw %v %v", obs.routes, obs.status)
	}
}

func TestRoute(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"/channels/123/messages": "/channels/{id}/messages",
		"/guilds":                "/guilds",
		"/user/@me?x=1":          "/user/@me",
		"/user/42":               "/user/{id}",
	}
	for in, want := range cases {
		if got := Route(in); got != want {
			t.Errorf("Route(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContextCancel(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := New(api.Server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Get(ctx, "/channels/1", &struct{}{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
