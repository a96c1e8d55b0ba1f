package main

import (
	"bytes"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MalithGihan/redact-service/internal/engine/pdf"
	"github.com/MalithGihan/redact-service/internal/pdftest"
	"github.com/MalithGihan/redact-service/internal/redact"
	"github.com/MalithGihan/redact-service/internal/store"
	"github.com/MalithGihan/redact-service/internal/verify"
	"github.com/MalithGihan/redact-service/pkg/types"
)

func testRouter(t *testing.T) (http.Handler, string) {
	t.Helper()
	root := t.TempDir()
	st, err := store.New(root)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config{
		dataRoot:  root,
		matchMode: types.MatchSubstring,
		timeout:   30 * time.Second,
		maxUpload: 8 << 20,
	}
	logger := log.New(io.Discard, "", 0)
	pipe := &redact.Pipeline{Open: pdf.Open, Mode: cfg.matchMode, Log: logger}
	return buildRouter(cfg, st, pipe, logger), root
}

func multipartBody(t *testing.T, filename string, file []byte, fields map[string]string) (string, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(file)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return mw.FormDataContentType(), &buf
}

func postRedact(t *testing.T, h http.Handler, filename string, file []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	ctype, body := multipartBody(t, filename, file, fields)
	req := httptest.NewRequest(http.MethodPost, "/redact", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// stagedFiles lists everything currently under the transient store.
func stagedFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			out = append(out, path)
		}
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestHealth(t *testing.T) {
	h, _ := testRouter(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRedactHappyPath(t *testing.T) {
	h, root := testRouter(t)
	input := pdftest.Build(pdftest.Spec{
		Lines: []string{
			"This is a confidential document.",
			"The password is supersecret.",
		},
		Title:  "secrets",
		Author: "someone",
	})
	rec := postRedact(t, h, "report.pdf", input, map[string]string{
		"words": "confidential, password, supersecret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "redacted_report.pdf") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	out := rec.Body.Bytes()
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Error("response body is not a PDF")
	}
	for _, leak := range []string{"confidential", "supersecret", "secrets", "someone"} {
		if bytes.Contains(out, []byte(leak)) {
			t.Errorf("response bytes contain %q", leak)
		}
	}
	if files := stagedFiles(t, root); len(files) != 0 {
		t.Errorf("ephemeral files outlived the request: %v", files)
	}
}

func TestRedactWordModeOption(t *testing.T) {
	h, _ := testRouter(t)
	input := pdftest.Build(pdftest.Spec{Lines: []string{"the secretary kept a secret"}})
	rec := postRedact(t, h, "a.pdf", input, map[string]string{
		"words":   "secret",
		"options": `{"match":"word"}`,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	// Whole-word matching leaves "secretary" alone. The redacted copy is
	// compressed, so re-read it through the engine to check.
	outPath := filepath.Join(t.TempDir(), "out.pdf")
	if err := os.WriteFile(outPath, rec.Body.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := pdf.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()
	if rs, _ := doc.Search(0, "secretary", types.MatchSubstring); len(rs) != 1 {
		t.Errorf("secretary found %d times, want 1 (must survive word-mode redaction)", len(rs))
	}
	if rs, _ := doc.Search(0, "secret", types.MatchWord); len(rs) != 0 {
		t.Errorf("whole word secret still present")
	}
}

func TestRedactWordModeWithVerification(t *testing.T) {
	// Word mode leaves "secretary" intact on purpose; the post-save check
	// runs under the same mode and must accept that output.
	root := t.TempDir()
	st, err := store.New(root)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config{
		dataRoot:  root,
		matchMode: types.MatchSubstring,
		timeout:   30 * time.Second,
		maxUpload: 8 << 20,
	}
	logger := log.New(io.Discard, "", 0)
	pipe := &redact.Pipeline{Open: pdf.Open, Mode: cfg.matchMode, Log: logger, Verify: verify.Clean}
	h := buildRouter(cfg, st, pipe, logger)

	input := pdftest.Build(pdftest.Spec{Lines: []string{"the secretary kept a secret"}})
	rec := postRedact(t, h, "a.pdf", input, map[string]string{
		"words":   "secret",
		"options": `{"match":"word"}`,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if files := stagedFiles(t, root); len(files) != 0 {
		t.Errorf("ephemeral files outlived the request: %v", files)
	}
}

func TestRedactRejectsNonPDFFilename(t *testing.T) {
	h, root := testRouter(t)
	rec := postRedact(t, h, "notes.txt", []byte("plain text"), map[string]string{"words": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	// Rejected before staging: nothing ever touched the store.
	if files := stagedFiles(t, root); len(files) != 0 {
		t.Errorf("staging happened before validation: %v", files)
	}
}

func TestRedactRejectsEmptyTerms(t *testing.T) {
	h, root := testRouter(t)
	input := pdftest.Build(pdftest.Spec{Lines: []string{"hello"}})
	for _, words := range []string{"", "  ", ", ,"} {
		rec := postRedact(t, h, "a.pdf", input, map[string]string{"words": words})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("words=%q: status = %d, want 400", words, rec.Code)
		}
	}
	if files := stagedFiles(t, root); len(files) != 0 {
		t.Errorf("staging happened before validation: %v", files)
	}
}

func TestRedactRejectsBadOptions(t *testing.T) {
	h, _ := testRouter(t)
	input := pdftest.Build(pdftest.Spec{Lines: []string{"hello"}})
	rec := postRedact(t, h, "a.pdf", input, map[string]string{
		"words":   "x",
		"options": `{"match":"fuzzy"}`,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRedactCorruptPDFCleansUp(t *testing.T) {
	h, root := testRouter(t)
	rec := postRedact(t, h, "broken.pdf", []byte("%PDF-1.7 but nothing else"), map[string]string{"words": "x"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error") {
		t.Errorf("body = %s, want a structured error", rec.Body.String())
	}
	if files := stagedFiles(t, root); len(files) != 0 {
		t.Errorf("failure path left files behind: %v", files)
	}
}

func TestRedactMissingFileField(t *testing.T) {
	h, _ := testRouter(t)
	rec := postRedact(t, h, "", nil, map[string]string{"words": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
