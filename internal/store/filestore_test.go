package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hearthside/starboard/internal/types"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "state.json"))
}

func TestFileStore_LoadMissingFileReturnsEmptyDocument(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Members == nil || len(doc.Members) != 0 {
		t.Errorf("members = %v, want empty map", doc.Members)
	}
}

func TestFileStore_SaveThenLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := types.NewStateDocument()
	doc.Members["zoe"] = types.MemberRecord{
		Stars:       5,
		TaskIndex:   1,
		RewardIndex: 2,
		Redemptions: map[string]int{"reward:0": 1},
	}

	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	rec := loaded.Members["zoe"]
	if rec.Stars != 5 || rec.TaskIndex != 1 || rec.RewardIndex != 2 {
		t.Errorf("record = %+v", rec)
	}
	if rec.Redemptions["reward:0"] != 1 {
		t.Errorf("redemptions = %v", rec.Redemptions)
	}
}

func TestFileStore_SaveCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "state.json")
	s := NewFileStore(path)

	if err := s.Save(context.Background(), types.NewStateDocument()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("state file not created: %v", err)
	}
}

func TestFileStore_LoadCorruptFileFallsBackToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(path)

	doc, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Members) != 0 {
		t.Errorf("members = %v, want empty", doc.Members)
	}
}

func TestFileStore_LoadMigratesLegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	legacy := `{"members":{"aaron":12,"liz":7}}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(path)

	doc, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if doc.Members["aaron"].Stars != 12 {
		t.Errorf("aaron = %+v, want stars 12", doc.Members["aaron"])
	}
	if doc.Members["liz"].Redemptions == nil {
		t.Error("migrated record has nil redemptions map")
	}
}

func TestFileStore_SaveWritesIndentedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewFileStore(path)

	doc := types.NewStateDocument()
	doc.Members["zoe"] = types.MemberRecord{Stars: 1, Redemptions: map[string]int{}}
	if err := s.Save(context.Background(), doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("saved file is not valid JSON: %v", err)
	}
	if _, ok := parsed["members"]; !ok {
		t.Errorf("saved document missing members key: %s", data)
	}
}

func TestFileStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "state.json"))

	if err := s.Save(context.Background(), types.NewStateDocument()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "state.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contents = %v, want [state.json]", names)
	}
}

func TestFileStore_ClosedStoreRejectsOperations(t *testing.T) {
	s := newTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := s.Load(context.Background()); err != ErrClosed {
		t.Errorf("Load error = %v, want ErrClosed", err)
	}
	if err := s.Save(context.Background(), types.NewStateDocument()); err != ErrClosed {
		t.Errorf("Save error = %v, want ErrClosed", err)
	}
}
