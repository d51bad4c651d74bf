package blobstore

import (
	"context"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := Open("", true)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestBadgerStore_PutGetOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	key := UploadKey("org1", "job1", "doc.pdf")
	if err := store.Put(ctx, key, []byte("v1")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("Get() = %q, want v1", got)
	}

	// A retried upload overwrites the same key.
	if err := store.Put(ctx, key, []byte("v2")); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}
	got, err = store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() after overwrite error = %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("Get() after overwrite = %q, want v2", got)
	}
}

func TestBadgerStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestBadgerStore_List(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	keys := []string{
		ChunkKey("org1", "job1", 0, 1),
		ChunkKey("org1", "job1", 0, 2),
		ChunkKey("org1", "job2", 0, 1),
	}
	for _, key := range keys {
		if err := store.Put(ctx, key, []byte("x")); err != nil {
			t.Fatalf("Put(%q) error = %v", key, err)
		}
	}

	got, err := store.List(ctx, JobPrefix("org1", "job1"))
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List() returned %d keys, want 2: %v", len(got), got)
	}
}

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"upload", UploadKey("o", "j", "f.pdf"), "o/documentprocessing/j/upload/f.pdf"},
		{"elements", ElementsKey("o", "j", 0, "f.pdf", "20250101120000"), "o/documentprocessing/j/elements/f.pdf_20250101120000.json"},
		{"chunk", ChunkKey("o", "j", 0, 3), "o/documentprocessing/j/chunks/3.json"},
		{"section chunk", ChunkKey("o", "j", 2, 3), "o/documentprocessing/j/sections/2/chunks/3.json"},
		{"embedding", EmbeddingKey("o", "j", 0, "abc"), "o/documentprocessing/j/chunksWithEmbeddings/abc.json"},
		{"section upload", SectionUploadKey("o", "j", 1, "f.pdf"), "o/documentprocessing/j/sections/1/upload/f.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := SanitizeFileName("../../etc/passwd"); got != ".._.._etc_passwd" {
		t.Errorf("SanitizeFileName() = %q", got)
	}
}
