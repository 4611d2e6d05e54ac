package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/skillsenselab/voiceid/logger"
)

// staging owns every temporary file created while serving one request. All
// tracked paths are removed by Close, which runs on every exit path.
type staging struct {
	dir   string
	paths []string
	log   *logger.Logger
}

func newStaging(dir string, log *logger.Logger) *staging {
	return &staging{dir: dir, log: log}
}

// StageUpload persists the uploaded bytes to a uniquely named file inside the
// staging directory and tracks it for cleanup. The name embeds a random UUID
// so concurrent requests never collide.
func (s *staging) StageUpload(upload io.Reader, hint string) (string, error) {
	path := filepath.Join(s.dir, "utterance-"+uuid.New().String()+sanitizeExt(hint))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	s.Track(path)

	if _, err := io.Copy(f, upload); err != nil {
		f.Close()
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	return path, nil
}

// Track registers a path for removal on Close.
func (s *staging) Track(path string) {
	s.paths = append(s.paths, path)
}

// Close removes every tracked file. Missing files are fine; anything else is
// logged and reported.
func (s *staging) Close() error {
	var firstErr error
	for _, path := range s.paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.log.Error("Failed to remove staged file", logger.Fields(
				"path", path,
				"error", err.Error(),
			))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	s.paths = nil
	return firstErr
}

// sanitizeExt reduces a caller-controlled filename or extension hint to a safe
// extension. Anything suspicious falls back to ".bin"; the transcoder does not
// rely on the extension to detect the container format.
func sanitizeExt(hint string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(hint)))
	if ext == "" || len(ext) > 8 {
		return ".bin"
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ".bin"
		}
	}
	if ext == ".wav" {
		// Keep the transcoder's derived output path distinct from the input.
		return ".wav.bin"
	}
	return ext
}
