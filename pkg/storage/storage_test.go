package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"igsaved/pkg/models"
)

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "data.json")

	if err := WriteJSON(path, []string{"a", "b"}, 0600); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var got []string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid json written: %v", err)
	}
	if len(got) != 2 || got[0] != "a" {
		t.Errorf("unexpected content %v", got)
	}

	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600, got %v", info.Mode().Perm())
	}

	// Overwrite replaces content and leaves no temp files behind
	if err := WriteJSON(path, []string{"c"}, 0600); err != nil {
		t.Fatalf("WriteJSON() overwrite error = %v", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestWriteJSONEncodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := WriteJSON(path, make(chan int), 0644); err == nil {
		t.Fatal("expected encode error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("target should not exist after a failed write")
	}
}

func TestExporter(t *testing.T) {
	exporter, err := NewExporter(filepath.Join(t.TempDir(), "results"), nil)
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}

	resp := &models.ScrapeResponse{
		Profiles: []models.ProfileRecord{{Username: "alice"}},
		Run: models.RunSummary{
			ID:        "0f8fad5b-d9cb-469f-a165-70867728950e",
			Owner:     "owner",
			StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	}

	path, err := exporter.SaveRun(resp)
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if filepath.Base(path) != "owner_20260102T030405Z_0f8fad5b.json" {
		t.Errorf("unexpected file name %s", filepath.Base(path))
	}

	count, err := exporter.Count()
	if err != nil || count != 1 {
		t.Errorf("Count() = %d, %v; want 1", count, err)
	}

	if _, err := exporter.SaveRun(nil); err == nil {
		t.Error("expected error for nil response")
	}
}
