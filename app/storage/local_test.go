package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalReadMissingKey(t *testing.T) {
	local := NewLocal(t.TempDir())

	data, err := local.Read(context.Background(), "feeds/unknown/items.json")
	if err != nil {
		t.Fatalf("Read of missing key should not error, got: %v", err)
	}
	if data != nil {
		t.Errorf("Read of missing key should return nil, got %d bytes", len(data))
	}
}

func TestLocalWriteCreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	local := NewLocal(dir)
	ctx := context.Background()

	err := local.Write(ctx, "feeds/hacker-news/items.json", []byte(`{"items":[]}`))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "feeds", "hacker-news", "items.json")); err != nil {
		t.Errorf("Expected file on disk, got: %v", err)
	}

	data, err := local.Read(ctx, "feeds/hacker-news/items.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"items":[]}` {
		t.Errorf("Unexpected content: %s", data)
	}
}

func TestLocalListReturnsFilesOnly(t *testing.T) {
	local := NewLocal(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{
		"feeds/src/items.json",
		"feeds/src/2026-08-29-zh.json",
		"feeds/other/items.json",
	} {
		if err := local.Write(ctx, key, []byte("{}")); err != nil {
			t.Fatal(err)
		}
	}

	names, err := local.List(ctx, "feeds/src")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Errorf("Expected 2 names, got %v", names)
	}

	// Listing the parent should skip subdirectories
	names, err = local.List(ctx, "feeds")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Errorf("Expected no file entries under feeds/, got %v", names)
	}
}

func TestLocalListMissingPrefix(t *testing.T) {
	local := NewLocal(t.TempDir())

	names, err := local.List(context.Background(), "feeds/none")
	if err != nil {
		t.Fatalf("List of missing prefix should not error, got: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Expected empty list, got %v", names)
	}
}

func TestLocalExistsAndDelete(t *testing.T) {
	local := NewLocal(t.TempDir())
	ctx := context.Background()

	if err := local.Write(ctx, "sources.json", []byte("[]")); err != nil {
		t.Fatal(err)
	}

	ok, err := local.Exists(ctx, "sources.json")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("Expected sources.json to exist")
	}

	if err := local.Delete(ctx, "sources.json"); err != nil {
		t.Fatal(err)
	}

	ok, err = local.Exists(ctx, "sources.json")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Expected sources.json to be gone after delete")
	}

	// Deleting a missing key is a no-op
	if err := local.Delete(ctx, "sources.json"); err != nil {
		t.Errorf("Delete of missing key should not error, got: %v", err)
	}
}

func TestLocalDeleteTree(t *testing.T) {
	local := NewLocal(t.TempDir())
	ctx := context.Background()

	if err := local.Write(ctx, "feeds/src/items.json", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	if err := local.Write(ctx, "feeds/src/2026-08-29-en.json", []byte("{}")); err != nil {
		t.Fatal(err)
	}

	if err := local.DeleteTree(ctx, "feeds/src"); err != nil {
		t.Fatal(err)
	}

	names, err := local.List(ctx, "feeds/src")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Errorf("Expected empty tree after DeleteTree, got %v", names)
	}
}
