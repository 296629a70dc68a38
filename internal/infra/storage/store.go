package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"interview-ai-recorder/internal/domain"
)

// SessionLocker serializes artifact writers for one session folder. The
// redis locker satisfies this; tests use an in-process stub.
type SessionLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// Store keeps uploaded clips and derived artifacts on the local filesystem
// under <base>/<session folder>/. Video writes are idempotent overwrites:
// re-uploading a question replaces the previous clip at the same path.
type Store struct {
	base   string
	locker SessionLocker
	log    *zerolog.Logger
}

func New(base string, locker SessionLocker, log *zerolog.Logger) (*Store, error) {
	if base == "" {
		return nil, fmt.Errorf("storage: %w: empty base dir", domain.ErrInvalidArgument)
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create base dir: %w", err)
	}
	return &Store{base: base, locker: locker, log: log}, nil
}

// VideoFilename is the deterministic per-question clip name, 1-based for
// human readability: Q1.webm, Q2.webm, ...
func VideoFilename(questionIndex int) string {
	return fmt.Sprintf("Q%d.webm", questionIndex+1)
}

// EnsureFolder creates the per-session upload folder.
func (s *Store) EnsureFolder(folder string) error {
	if err := validFolder(folder); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(s.base, folder), 0o755)
}

// FolderExists reports whether the session folder was created.
func (s *Store) FolderExists(folder string) bool {
	if validFolder(folder) != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(s.base, folder))
	return err == nil && info.IsDir()
}

// VideoPath returns the absolute path of a question's clip.
func (s *Store) VideoPath(folder string, questionIndex int) string {
	return filepath.Join(s.base, folder, VideoFilename(questionIndex))
}

// SaveVideo writes the clip bytes at the deterministic per-question path,
// replacing any previous upload for the same question.
func (s *Store) SaveVideo(ctx context.Context, folder string, questionIndex int, data []byte) (string, error) {
	if err := validFolder(folder); err != nil {
		return "", err
	}
	dir := filepath.Join(s.base, folder)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("storage: session folder %q: %w", folder, domain.ErrNotFound)
	}
	path := s.VideoPath(folder, questionIndex)
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write video: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("storage: finalize video: %w", err)
	}
	return path, nil
}

// HasVideo reports whether a clip exists for the question.
func (s *Store) HasVideo(folder string, questionIndex int) bool {
	info, err := os.Stat(s.VideoPath(folder, questionIndex))
	return err == nil && !info.IsDir()
}

// WriteTranscript stores the human-readable Q<n>_transcript.txt artifact
// next to the clip. Writers for the same session are serialized through the
// session lock when one is configured.
func (s *Store) WriteTranscript(ctx context.Context, folder string, questionIndex int, questionText, transcript, feedback string, matchScore int) error {
	if err := validFolder(folder); err != nil {
		return err
	}
	if s.locker != nil {
		key := "lock:artifacts:" + folder
		token, err := s.locker.TryLock(ctx, key, 10*time.Second)
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		defer func() { _ = s.locker.Unlock(ctx, key, token) }()
	}

	qNum := questionIndex + 1
	content := fmt.Sprintf("--- Q%d ---\nQuestion: %s\nMatch Score: %d/100\nFeedback: %s\n--- Transcript ---\n%s\n",
		qNum, questionText, matchScore, feedback, transcript)
	path := filepath.Join(s.base, folder, fmt.Sprintf("Q%d_transcript.txt", qNum))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("storage: write transcript: %w", err)
	}
	return nil
}

// validFolder rejects path traversal in client-supplied folder names.
func validFolder(folder string) error {
	if folder == "" || folder != filepath.Base(folder) || folder == "." || folder == ".." {
		return fmt.Errorf("storage: folder %q: %w", folder, domain.ErrInvalidArgument)
	}
	return nil
}
