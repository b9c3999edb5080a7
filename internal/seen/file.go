package seen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// fileBackend keeps the whole set in one pretty-printed JSON object keyed by
// identity. Every write replaces the file via temp file + fsync + rename, so
// a crash leaves either the previous or the new snapshot.
type fileBackend struct {
	path string
}

// fileEntry is the on-disk shape. Older state files carry only "timestamp"
// (unix milliseconds) instead of "first_seen_at".
type fileEntry struct {
	Symbol      string     `json:"symbol,omitempty"`
	Name        string     `json:"name,omitempty"`
	FirstSeenAt *time.Time `json:"first_seen_at,omitempty"`
	Timestamp   int64      `json:"timestamp,omitempty"`
}

func openFile(cfg Config) (backend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &fileBackend{path: path}, nil
}

func (b *fileBackend) describe() string { return "file:" + b.path }

func (b *fileBackend) close() error { return nil }

func (b *fileBackend) load(ctx context.Context) (map[string]Entry, error) {
	_ = ctx
	raw, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return nil, &CorruptStateError{Source: b.path, Err: errors.New("expected a JSON object")}
	}

	var disk map[string]fileEntry
	if err := json.Unmarshal(raw, &disk); err != nil {
		return nil, &CorruptStateError{Source: b.path, Err: err}
	}
	out := make(map[string]Entry, len(disk))
	for id, fe := range disk {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		e := Entry{Identity: id, Symbol: fe.Symbol, Name: fe.Name}
		switch {
		case fe.FirstSeenAt != nil:
			e.FirstSeenAt = fe.FirstSeenAt.UTC()
		case fe.Timestamp > 0:
			e.FirstSeenAt = time.UnixMilli(fe.Timestamp).UTC()
		}
		out[id] = e
	}
	return out, nil
}

func (b *fileBackend) persist(ctx context.Context, snapshot map[string]Entry, added Entry) error {
	_ = added
	if err := ctx.Err(); err != nil {
		return err
	}
	disk := make(map[string]fileEntry, len(snapshot))
	for id, e := range snapshot {
		fe := fileEntry{Symbol: e.Symbol, Name: e.Name}
		if !e.FirstSeenAt.IsZero() {
			t := e.FirstSeenAt.UTC()
			fe.FirstSeenAt = &t
		}
		disk[id] = fe
	}
	data, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return writeFileAtomic(b.path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	cleanup := func() { _ = os.Remove(tmp) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		cleanup()
		return err
	}
	// Best-effort: make the rename itself durable.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
