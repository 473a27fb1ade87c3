// Package tenant wires the cache tier together per owner: the JSON owner
// registry, per-owner cache layers, and the refresh functions that bind
// collection caches to the backing record store.
package tenant

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
	"github.com/homevault/homevault-go/pkg/config"
)

// OwnerInfo describes one registered owner
type OwnerInfo struct {
	OwnerID     string                            `json:"ownerId"`
	Status      string                            `json:"status"` // "active" or "inactive"
	CreatedAt   time.Time                         `json:"createdAt"`
	Preferences map[string]types.CachePreferences `json:"preferences,omitempty"`
}

// Registry is the on-disk owner registry. Defaults hold collection-level
// cache preferences applied to every owner without an override.
type Registry struct {
	Owners   map[string]OwnerInfo              `json:"owners"`
	Defaults map[string]types.CachePreferences `json:"defaults,omitempty"`

	path string
}

// LoadRegistry reads the owner registry, creating one with the default
// owner when the file does not exist yet.
func LoadRegistry() (*Registry, error) {
	registry := &Registry{
		Owners: make(map[string]OwnerInfo),
		path:   config.RegistryPath,
	}

	raw, err := os.ReadFile(config.RegistryPath)
	if os.IsNotExist(err) {
		registry.Owners["default"] = OwnerInfo{
			OwnerID:   "default",
			Status:    "active",
			CreatedAt: time.Now().UTC(),
		}
		if err := registry.Save(); err != nil {
			return nil, err
		}
		return registry, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read owner registry: %w", err)
	}
	if err := json.Unmarshal(raw, registry); err != nil {
		return nil, fmt.Errorf("parse owner registry: %w", err)
	}
	registry.path = config.RegistryPath
	return registry, nil
}

// Save writes the registry back to disk
func (r *Registry) Save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode owner registry: %w", err)
	}
	if err := os.WriteFile(r.path, raw, 0644); err != nil {
		return fmt.Errorf("write owner registry: %w", err)
	}
	return nil
}

// IsActive reports whether an owner is registered and active
func (r *Registry) IsActive(ownerID string) bool {
	info, found := r.Owners[ownerID]
	return found && info.Status == "active"
}

// ActiveOwners returns the IDs of all active owners
func (r *Registry) ActiveOwners() []string {
	var owners []string
	for id, info := range r.Owners {
		if info.Status == "active" {
			owners = append(owners, id)
		}
	}
	return owners
}

// Register adds an owner in active status. Idempotent.
func (r *Registry) Register(ownerID string) {
	if _, found := r.Owners[ownerID]; found {
		return
	}
	r.Owners[ownerID] = OwnerInfo{
		OwnerID:   ownerID,
		Status:    "active",
		CreatedAt: time.Now().UTC(),
	}
}
