package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
)

func TestFilesystemStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystemStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	content := []byte("fake png bytes")
	id, err := store.Save(ctx, bytes.NewReader(content), "image/png")
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reader, contentType, err := store.Open(ctx, id)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer reader.Close()

	if contentType != "image/png" {
		t.Errorf("expected image/png, got %s", contentType)
	}
	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("content mismatch")
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, _, err := store.Open(ctx, id); !errors.Is(err, ErrImageNotFound) {
		t.Fatalf("expected ErrImageNotFound after delete, got %v", err)
	}

	// Deleting again is a no-op.
	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("second delete failed: %v", err)
	}
}

func TestFilesystemStore_RejectsUnsupportedType(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	_, err = store.Save(context.Background(), bytes.NewReader([]byte("x")), "application/pdf")
	if !errors.Is(err, ErrInvalidImageID) {
		t.Fatalf("expected ErrInvalidImageID, got %v", err)
	}
}

func TestParseImageID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
		want    string
	}{
		{"6f1d2f9a-8f2e-4f3a-9d9b-0a1b2c3d4e5f.png", false, "image/png"},
		{"6f1d2f9a-8f2e-4f3a-9d9b-0a1b2c3d4e5f.jpg", false, "image/jpeg"},
		{"6f1d2f9a-8f2e-4f3a-9d9b-0a1b2c3d4e5f.exe", true, ""},
		{"../../etc/passwd", true, ""},
		{"no-extension", true, ""},
		{"", true, ""},
	}

	for _, tt := range tests {
		contentType, err := ParseImageID(tt.id)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidImageID) {
				t.Errorf("ParseImageID(%q): expected ErrInvalidImageID, got %v", tt.id, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseImageID(%q): unexpected error %v", tt.id, err)
			continue
		}
		if contentType != tt.want {
			t.Errorf("ParseImageID(%q): expected %s, got %s", tt.id, tt.want, contentType)
		}
	}
}
