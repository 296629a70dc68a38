package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"interview-ai-recorder/internal/domain"
)

var testLogger = zerolog.Nop()

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), nil, &testLogger)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestVideoFilename(t *testing.T) {
	if got := VideoFilename(0); got != "Q1.webm" {
		t.Errorf("VideoFilename(0) = %q, want Q1.webm", got)
	}
	if got := VideoFilename(4); got != "Q5.webm" {
		t.Errorf("VideoFilename(4) = %q, want Q5.webm", got)
	}
}

func TestSaveVideo(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	t.Run("requires the folder to exist", func(t *testing.T) {
		if _, err := s.SaveVideo(ctx, "missing", 0, []byte("clip")); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	if err := s.EnsureFolder("session_a"); err != nil {
		t.Fatalf("EnsureFolder failed: %v", err)
	}

	path, err := s.SaveVideo(ctx, "session_a", 0, []byte("clip-bytes"))
	if err != nil {
		t.Fatalf("SaveVideo failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved clip: %v", err)
	}
	if string(data) != "clip-bytes" {
		t.Errorf("saved content = %q", data)
	}
	if !s.HasVideo("session_a", 0) {
		t.Error("HasVideo should report the saved clip")
	}

	t.Run("re-upload replaces the clip", func(t *testing.T) {
		if _, err := s.SaveVideo(ctx, "session_a", 0, []byte("new-take")); err != nil {
			t.Fatalf("second SaveVideo failed: %v", err)
		}
		data, _ := os.ReadFile(s.VideoPath("session_a", 0))
		if string(data) != "new-take" {
			t.Errorf("content = %q, want the replacement", data)
		}
	})

	t.Run("no partial files remain", func(t *testing.T) {
		entries, _ := os.ReadDir(filepath.Dir(path))
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".part") {
				t.Errorf("leftover temp file %s", e.Name())
			}
		}
	})
}

func TestWriteTranscript(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if err := s.EnsureFolder("session_a"); err != nil {
		t.Fatalf("EnsureFolder failed: %v", err)
	}

	err := s.WriteTranscript(ctx, "session_a", 1, "Why this role?", "Because I like it.", "Short but honest.", 62)
	if err != nil {
		t.Fatalf("WriteTranscript failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(s.VideoPath("session_a", 1)), "Q2_transcript.txt"))
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	text := string(data)
	for _, want := range []string{"--- Q2 ---", "Why this role?", "62/100", "Because I like it."} {
		if !strings.Contains(text, want) {
			t.Errorf("artifact missing %q:\n%s", want, text)
		}
	}
}

func TestFolderValidation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, folder := range []string{"", ".", "..", "../escape", "a/b"} {
		if err := s.EnsureFolder(folder); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("EnsureFolder(%q) err = %v, want ErrInvalidArgument", folder, err)
		}
		if _, err := s.SaveVideo(ctx, folder, 0, []byte("x")); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("SaveVideo(%q) err = %v, want ErrInvalidArgument", folder, err)
		}
	}
}
