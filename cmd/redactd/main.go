package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/MalithGihan/redact-service/internal/engine/pdf"
	"github.com/MalithGihan/redact-service/internal/redact"
	"github.com/MalithGihan/redact-service/internal/store"
	"github.com/MalithGihan/redact-service/internal/validate"
	"github.com/MalithGihan/redact-service/internal/verify"
	"github.com/MalithGihan/redact-service/pkg/types"
)

type config struct {
	port        string
	dataRoot    string
	matchMode   types.MatchMode
	timeout     time.Duration
	maxUpload   int64 // bytes
	verifyAfter bool
}

func main() {
	_ = godotenv.Load()
	logger := log.New(os.Stderr, "redactd ", log.LstdFlags)

	cfg := config{
		port:        getenv("PORT", "8080"),
		dataRoot:    getenv("DATA_ROOT", "./data"),
		timeout:     time.Duration(getenvInt("REDACT_TIMEOUT_SECONDS", 120)) * time.Second,
		maxUpload:   int64(getenvInt("MAX_UPLOAD_MB", 64)) << 20,
		verifyAfter: getenv("VERIFY_OUTPUT", "true") == "true",
	}
	mode, err := types.ParseMatchMode(getenv("MATCH_MODE", "substring"))
	if err != nil {
		logger.Fatal(err)
	}
	cfg.matchMode = mode

	st, err := store.New(cfg.dataRoot)
	if err != nil {
		logger.Fatal(err)
	}

	pipe := &redact.Pipeline{
		Open: pdf.Open,
		Mode: cfg.matchMode,
		Log:  logger,
	}
	if cfg.verifyAfter {
		pipe.Verify = verify.Clean
	}

	r := buildRouter(cfg, st, pipe, logger)
	logger.Printf("redactd listening on :%s (match mode %s)", cfg.port, cfg.matchMode)
	logger.Fatal(http.ListenAndServe(":"+cfg.port, r))
}

func buildRouter(cfg config, st *store.FS, pipe *redact.Pipeline, logger *log.Logger) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"service":"redactd"}`))
	})

	r.Post("/redact", func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseMultipartForm(cfg.maxUpload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart request: "+err.Error())
			return
		}
		upload, header, err := req.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer upload.Close()

		// Validation happens before anything touches disk.
		original := filepath.Base(header.Filename)
		if !strings.HasSuffix(strings.ToLower(original), ".pdf") {
			writeError(w, http.StatusBadRequest, "only PDF files are supported")
			return
		}
		terms := redact.ParseTerms(req.FormValue("words"))
		if len(terms) == 0 {
			writeError(w, http.StatusBadRequest, "no words provided for redaction")
			return
		}
		mode, err := validate.Options(req.FormValue("options"), pipe.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		sess := st.Session(uuid.NewString())
		if err := stageUpload(sess.InputPath, upload); err != nil {
			st.Cleanup(logger, sess.InputPath)
			writeError(w, http.StatusInternalServerError, "failed to stage upload")
			return
		}

		ctx, cancel := context.WithTimeout(req.Context(), cfg.timeout)
		defer cancel()
		run := *pipe
		run.Mode = mode
		if _, err := run.Run(ctx, sess.InputPath, sess.OutputPath, terms); err != nil {
			// Failed requests clean up immediately, before responding.
			st.Cleanup(logger, sess.InputPath, sess.OutputPath)
			if errors.Is(err, redact.ErrCanceled) {
				// The client is gone; a response body has no reader.
				logger.Printf("request canceled by client (%s)", sess.ID)
				return
			}
			logger.Printf("redaction failed (%s): %v", sess.ID, err)
			writeError(w, statusFor(err), err.Error())
			return
		}

		if err := sendFile(w, sess.OutputPath, "redacted_"+original); err != nil {
			logger.Printf("response delivery failed (%s): %v", sess.ID, err)
		}
		// Deletion runs strictly after the output bytes have been handed
		// to the response; the download never races its own cleanup.
		st.Cleanup(logger, sess.InputPath, sess.OutputPath)
	})

	return r
}

func stageUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func sendFile(w http.ResponseWriter, path, downloadName string) error {
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "redacted file unavailable")
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "redacted file unavailable")
		return err
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	_, err = io.Copy(w, f)
	return err
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, redact.ErrInvalidDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, redact.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
