package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/dancecoach/internal/entities"
)

// Archive is the JSON document written for one retention sweep.
type Archive struct {
	Cutoff     time.Time             `json:"cutoff"`
	ArchivedAt time.Time             `json:"archived_at"`
	Count      int                   `json:"count"`
	Events     []entities.AuditEvent `json:"events"`
}

// Archiver writes expired audit events to a directory before they are purged.
type Archiver struct {
	Dir string
}

func NewArchiver(dir string) *Archiver {
	return &Archiver{Dir: dir}
}

// Save writes events to a new file named by a random UUID and returns the
// file name.
func (a *Archiver) Save(cutoff time.Time, events []entities.AuditEvent) (string, error) {
	if err := os.MkdirAll(a.Dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	filename := fmt.Sprintf("audit-%s.json", uuid.New().String())
	path := filepath.Join(a.Dir, filename)

	data, err := json.MarshalIndent(Archive{
		Cutoff:     cutoff,
		ArchivedAt: time.Now().UTC(),
		Count:      len(events),
		Events:     events,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal archive: %w", err)
	}

	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("failed to write archive file: %w", err)
	}

	log.Printf("[AUDIT] Archived %d events to %s", len(events), path)
	return filename, nil
}
