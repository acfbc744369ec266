// Package file provides a file-based persistence implementation for the flow
// engine. Each entity is stored as one JSON document under
// <root>/<tenant>/<kind>/<id>.json. It backs local development and tests; the
// postgresql package is the production backend.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/albertobarcelos/nexflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	store          *store
	flowRepo       *FlowRepository
	stepRepo       *StepRepository
	fieldRepo      *FieldRepository
	cardRepo       *CardRepository
	accessRepo     *AccessRepository
	automationRepo *AutomationRepository
	eventRepo      *EventRepository
	activityRepo   *ActivityRepository
	commissionRepo *CommissionRepository
}

// NewPersistence creates a file persistence layer rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	s := &store{root: cleanRoot}

	return &Persistence{
		store:          s,
		flowRepo:       &FlowRepository{store: s},
		stepRepo:       &StepRepository{store: s},
		fieldRepo:      &FieldRepository{store: s},
		cardRepo:       &CardRepository{store: s},
		accessRepo:     &AccessRepository{store: s},
		automationRepo: &AutomationRepository{store: s},
		eventRepo:      &EventRepository{store: s},
		activityRepo:   &ActivityRepository{store: s},
		commissionRepo: &CommissionRepository{store: s},
	}
}

func (p *Persistence) Flows() persistence.FlowRepository             { return p.flowRepo }
func (p *Persistence) Steps() persistence.StepRepository             { return p.stepRepo }
func (p *Persistence) Fields() persistence.FieldRepository           { return p.fieldRepo }
func (p *Persistence) Cards() persistence.CardRepository             { return p.cardRepo }
func (p *Persistence) Access() persistence.AccessRepository          { return p.accessRepo }
func (p *Persistence) Automations() persistence.AutomationRepository { return p.automationRepo }
func (p *Persistence) Events() persistence.EventRepository           { return p.eventRepo }
func (p *Persistence) Activities() persistence.ActivityRepository    { return p.activityRepo }
func (p *Persistence) Commissions() persistence.CommissionRepository { return p.commissionRepo }

// Close performs any necessary cleanup. For file persistence there is none.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.store.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// store serializes entity access. A single coarse lock keeps multi-file
// operations such as step reordering consistent for concurrent readers.
type store struct {
	root string
	mu   sync.RWMutex
}

func (s *store) dir(tenantID, kind string) string {
	return filepath.Join(s.root, tenantID, kind)
}

func (s *store) path(tenantID, kind, id string) string {
	return filepath.Join(s.dir(tenantID, kind), id+".json")
}

func (s *store) write(tenantID, kind, id string, entity any) error {
	if err := os.MkdirAll(s.dir(tenantID, kind), 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	if err := os.WriteFile(s.path(tenantID, kind, id), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	return nil
}

// read unmarshals one entity. The boolean reports whether the file existed.
func (s *store) read(tenantID, kind, id string, entity any) (bool, error) {
	data, err := os.ReadFile(s.path(tenantID, kind, id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s %s: %w", kind, id, err)
	}

	if err := json.Unmarshal(data, entity); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}

	return true, nil
}

func (s *store) remove(tenantID, kind, id string) (bool, error) {
	err := os.Remove(s.path(tenantID, kind, id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to remove %s %s: %w", kind, id, err)
	}

	return true, nil
}

// ids lists the entity ids present for a tenant and kind.
func (s *store) ids(tenantID, kind string) ([]string, error) {
	dir := s.dir(tenantID, kind)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", kind, err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}

// tenants lists the tenant directories present under the root.
func (s *store) tenants() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	tenants := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			tenants = append(tenants, entry.Name())
		}
	}

	return tenants, nil
}
