package coverage_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"strata/internal/coverage"
	"strata/internal/testsupport"
)

func TestUploadPostsReportWithMetadata(t *testing.T) {
	var gotRunID, gotVersion, gotReport string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart form: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		gotRunID = r.FormValue("run_id")
		gotVersion = r.FormValue("python_version")
		file, _, err := r.FormFile("report")
		if err != nil {
			t.Errorf("missing report file: %v", err)
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotReport = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dir := t.TempDir()
	reportPath := filepath.Join(dir, "run-1.xml")
	testsupport.WriteFile(t, reportPath, 128)

	client := coverage.NewClient(server.URL)
	err := client.Upload(context.Background(), coverage.Report{
		RunID:         "run-1",
		PythonVersion: "3.11",
		Path:          reportPath,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if gotRunID != "run-1" || gotVersion != "3.11" {
		t.Fatalf("metadata not transmitted: run_id=%q python_version=%q", gotRunID, gotVersion)
	}
	if len(gotReport) != 128 {
		t.Fatalf("report body truncated: %d bytes", len(gotReport))
	}
}

func TestUploadRejectsEndpointError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusForbidden)
	}))
	defer server.Close()

	dir := t.TempDir()
	reportPath := filepath.Join(dir, "run-2.xml")
	testsupport.WriteFile(t, reportPath, 16)

	client := coverage.NewClient(server.URL)
	err := client.Upload(context.Background(), coverage.Report{RunID: "run-2", PythonVersion: "3.11", Path: reportPath})
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestUploadMissingReportFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("endpoint should not be reached without a report file")
	}))
	defer server.Close()

	client := coverage.NewClient(server.URL)
	err := client.Upload(context.Background(), coverage.Report{RunID: "run-3", Path: filepath.Join(t.TempDir(), "missing.xml")})
	if err == nil {
		t.Fatal("expected error for missing report file")
	}
}

func TestClientDisabledWithoutEndpoint(t *testing.T) {
	client := coverage.NewClient("")
	if client.Enabled() {
		t.Fatal("client without endpoint should be disabled")
	}
	if err := client.Upload(context.Background(), coverage.Report{}); err == nil {
		t.Fatal("expected error when endpoint not configured")
	}
}
