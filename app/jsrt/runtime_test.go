package jsrt

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEvalAndCall(t *testing.T) {
	r := New()

	if err := r.Eval(`function double(x) { return x * 2; }`); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !r.HasFunction("double") {
		t.Fatal("Expected function 'double' to exist")
	}
	if r.HasFunction("missing") {
		t.Error("Expected function 'missing' to not exist")
	}

	result, err := r.Call("double", 21)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := result.Export(); got != int64(42) && got != float64(42) {
		t.Errorf("Expected 42, got %v (%T)", got, got)
	}
}

func TestCallWithObject(t *testing.T) {
	r := New()

	if err := r.Eval(`function retitle(feed) { feed.title = "new"; return feed; }`); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	result, err := r.Call("retitle", map[string]interface{}{"title": "old"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	exported, ok := result.Export().(map[string]interface{})
	if !ok {
		t.Fatalf("Expected map result, got %T", result.Export())
	}
	if exported["title"] != "new" {
		t.Errorf("Expected title 'new', got %v", exported["title"])
	}
}

func TestNullAndUndefined(t *testing.T) {
	r := New()

	if err := r.Eval(`function nothing() {} function nullish() { return null; }`); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	v, err := r.Call("nothing")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !v.IsUndefined() {
		t.Error("Expected undefined return")
	}

	v, err = r.Call("nullish")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !v.IsNull() {
		t.Error("Expected null return")
	}
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("hello from upstream"))
	}))
	defer server.Close()

	r := New()
	if err := r.Eval(`function get(url) { var resp = fetch(url); return resp.ok ? resp.body : "status " + resp.status; }`); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	v, err := r.Call("get", server.URL)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := v.Export(); got != "hello from upstream" {
		t.Errorf("Expected upstream body, got %v", got)
	}
}

func TestFetchErrorThrows(t *testing.T) {
	r := New()
	if err := r.Eval(`function get(url) { try { fetch(url); return "no error"; } catch (e) { return "caught"; } }`); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	v, err := r.Call("get", "http://127.0.0.1:1/unreachable")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := v.Export(); got != "caught" {
		t.Errorf("Expected the script to catch the fetch error, got %v", got)
	}
}

func TestScriptError(t *testing.T) {
	r := New()

	if err := r.Eval(`throw new Error("boom")`); err == nil {
		t.Fatal("Expected error from throwing script")
	}

	if err := r.Eval(`function bad() { throw new Error("boom"); }`); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := r.Call("bad"); err == nil {
		t.Error("Expected error from throwing function")
	}
}
