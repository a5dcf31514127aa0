package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// BackupVersion is the backup envelope version.
const BackupVersion = 1

// Backup is the full-workspace export: tree metadata plus every page's
// content and thumbnail, self-contained enough to rebuild the workspace on
// a fresh install.
type Backup struct {
	V          int                        `json:"v"`
	ExportedAt time.Time                  `json:"exportedAt"`
	Workspace  *State                     `json:"workspace"`
	Pages      map[string]json.RawMessage `json:"pages,omitempty"`
	Previews   map[string]string          `json:"previews,omitempty"`
}

// Export serializes the whole workspace as one JSON document.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	state := s.snapshotState()
	s.mu.Unlock()

	b := Backup{
		V:          BackupVersion,
		ExportedAt: s.now().UTC(),
		Workspace:  state,
		Pages:      map[string]json.RawMessage{},
		Previews:   map[string]string{},
	}

	for _, p := range state.Pages() {
		content, err := s.LoadPage(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if len(content) > 0 {
			b.Pages[p.ID] = json.RawMessage(content)
		}
		preview, err := s.Preview(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if preview != "" {
			b.Previews[p.ID] = preview
		}
	}

	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return raw, nil
}

// Import replaces the current workspace with the backup's content. The
// previous tree and all its page blobs are destroyed first.
func (s *Store) Import(ctx context.Context, raw []byte) error {
	var b Backup
	if err := json.Unmarshal(raw, &b); err != nil {
		return fmt.Errorf("decode backup: %w", err)
	}
	if b.V != BackupVersion {
		return fmt.Errorf("unsupported backup version %d", b.V)
	}
	if b.Workspace == nil {
		return fmt.Errorf("backup has no workspace")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != nil {
		for _, p := range s.state.Pages() {
			s.dropPageBlobs(ctx, p.ID)
		}
	}

	s.state = b.Workspace
	s.sortTree()
	s.fixActivePage()
	if err := s.persistMeta(ctx); err != nil {
		return err
	}

	for id, content := range b.Pages {
		if err := s.kv.Set(ctx, pagePrefix+id, []byte(content)); err != nil {
			return fmt.Errorf("import page %s: %w", id, err)
		}
	}
	for id, preview := range b.Previews {
		if err := s.kv.Set(ctx, previewPrefix+id, []byte(preview)); err != nil {
			s.log.Warn("import preview failed", "page", id, "error", err)
		}
	}
	return nil
}
