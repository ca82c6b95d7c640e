package lode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/justapithecus/lode/lode"
)

// FileWriter writes sidecar files next to a session's records.
// Files land under the session's day partition in files/, bypassing the
// dataset segment and manifest machinery.
type FileWriter interface {
	// PutFile writes a file for the session. The filename must not contain
	// path separators or "..".
	PutFile(ctx context.Context, sessionID, filename, contentType string, data []byte) error
}

// ErrInvalidFilename is returned for filenames that would escape files/.
var ErrInvalidFilename = errors.New("invalid sidecar filename")

var _ FileWriter = (*LodeClient)(nil)

// PutFile writes a sidecar file at the session's Hive path.
func (c *LodeClient) PutFile(ctx context.Context, sessionID, filename, _ string, data []byte) error {
	if filename == "" || strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}

	store, err := c.getOrCreateStore()
	if err != nil {
		return fmt.Errorf("file write store init failed: %w", err)
	}

	path := c.buildFilePath(sessionID, filename)
	if err := store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return WrapWriteError(err, path)
	}
	return nil
}

func (c *LodeClient) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}

// buildFilePath computes the sidecar path.
// Format: datasets/<dataset>/partitions/session_id=<s>/day=<d>/files/<filename>
func (c *LodeClient) buildFilePath(sessionID, filename string) string {
	return fmt.Sprintf("datasets/%s/partitions/session_id=%s/day=%s/files/%s",
		c.config.dataset(),
		sessionID,
		DeriveDay(c.now()),
		filename,
	)
}

// StubFileWriter records PutFile calls for testing.
type StubFileWriter struct {
	mu    sync.Mutex
	Files []StubFileRecord
}

// StubFileRecord is a recorded file write.
type StubFileRecord struct {
	SessionID   string
	Filename    string
	ContentType string
	Data        []byte
}

// NewStubFileWriter creates a new stub file writer.
func NewStubFileWriter() *StubFileWriter {
	return &StubFileWriter{}
}

// PutFile records the call.
func (w *StubFileWriter) PutFile(_ context.Context, sessionID, filename, contentType string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Files = append(w.Files, StubFileRecord{
		SessionID:   sessionID,
		Filename:    filename,
		ContentType: contentType,
		Data:        data,
	})
	return nil
}

// Recorded returns a copy of the recorded writes.
func (w *StubFileWriter) Recorded() []StubFileRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]StubFileRecord(nil), w.Files...)
}

var _ FileWriter = (*StubFileWriter)(nil)
