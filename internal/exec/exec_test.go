package exec

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/codedeck/server/internal/db"
)

func newUpstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestRunSuccess(t *testing.T) {
	var gotLanguage, gotProgram, gotInput string
	upstream := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get("x-rapidapi-key") != "test-key" {
			t.Errorf("Missing API key header")
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("Failed to parse form: %v", err)
		}
		gotLanguage = r.PostFormValue("LanguageChoice")
		gotProgram = r.PostFormValue("Program")
		gotInput = r.PostFormValue("Input")
		w.Write([]byte(`{"Result":"42\n","Errors":""}`))
	})

	client := New(upstream.URL, "test-key", "test-host", nil)

	output, err := client.Run(context.Background(), "5", "print(42)", "stdin")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if output != "42\n" {
		t.Errorf("Expected output '42\\n', got '%s'", output)
	}
	if gotLanguage != "5" || gotProgram != "print(42)" || gotInput != "stdin" {
		t.Errorf("Upstream received wrong form: lang=%s program=%s input=%s",
			gotLanguage, gotProgram, gotInput)
	}
}

func TestRunCompileErrorsWin(t *testing.T) {
	upstream := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Result":"partial","Errors":"SyntaxError: invalid syntax"}`))
	})

	client := New(upstream.URL, "test-key", "", nil)

	output, err := client.Run(context.Background(), "5", "print(", "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if output != "SyntaxError: invalid syntax" {
		t.Errorf("Errors field should take precedence, got '%s'", output)
	}
}

func TestRunEmptyOutput(t *testing.T) {
	upstream := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Result":"","Errors":""}`))
	})

	client := New(upstream.URL, "test-key", "", nil)

	output, err := client.Run(context.Background(), "5", "pass", "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if output != "No output" {
		t.Errorf("Expected placeholder output, got '%s'", output)
	}
}

func TestRunUpstreamFailure(t *testing.T) {
	upstream := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	client := New(upstream.URL, "test-key", "", nil)

	if _, err := client.Run(context.Background(), "5", "print(1)", ""); err == nil {
		t.Error("Expected error for upstream failure")
	}
}

func TestRunNotConfigured(t *testing.T) {
	client := New("http://unused", "", "", nil)

	_, err := client.Run(context.Background(), "5", "print(1)", "")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestRunCachesResults(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "codedeck-exec-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	database, err := db.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer database.Close()

	calls := 0
	upstream := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"Result":"cached result","Errors":""}`))
	})

	client := New(upstream.URL, "test-key", "", database)

	for i := 0; i < 3; i++ {
		output, err := client.Run(context.Background(), "5", "print(1)", "")
		if err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
		if output != "cached result" {
			t.Errorf("Run %d: expected 'cached result', got '%s'", i, output)
		}
	}

	if calls != 1 {
		t.Errorf("Expected 1 upstream call with caching, got %d", calls)
	}

	// A different program misses the cache
	if _, err := client.Run(context.Background(), "5", "print(2)", ""); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected a second upstream call for new code, got %d", calls)
	}
}

func TestRunFailureNotCached(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "codedeck-exec-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	database, err := db.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer database.Close()

	fail := true
	upstream := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"Result":"ok","Errors":""}`))
	})

	client := New(upstream.URL, "test-key", "", database)

	if _, err := client.Run(context.Background(), "5", "print(1)", ""); err == nil {
		t.Fatal("Expected error while upstream is failing")
	}

	fail = false
	output, err := client.Run(context.Background(), "5", "print(1)", "")
	if err != nil {
		t.Fatalf("Run after recovery failed: %v", err)
	}
	if output != "ok" {
		t.Errorf("Failure must not be cached; expected 'ok', got '%s'", output)
	}
}
