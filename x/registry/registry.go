// Package registry keeps an off-chain record of deployed protocol components
// so tooling can resolve factories, routers, and vaults by name across
// restarts. Records persist to a YAML file next to the node's config.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var (
	ErrNameTaken      = errors.New("deployment name already registered")
	ErrRecordNotFound = errors.New("deployment record not found")
)

// Record describes one deployed component.
type Record struct {
	ID              string            `yaml:"id" json:"id"`
	Name            string            `yaml:"name" json:"name"`
	Network         string            `yaml:"network" json:"network"`
	Address         string            `yaml:"address" json:"address"`
	Kind            string            `yaml:"kind" json:"kind"`
	ConstructorArgs map[string]string `yaml:"constructor_args,omitempty" json:"constructor_args,omitempty"`
	DeployedAt      time.Time         `yaml:"deployed_at" json:"deployed_at"`
}

// Store is a file-backed deployment registry. All mutations rewrite the
// whole file; the record count stays small enough that this is fine.
type Store struct {
	path string
	log  zerolog.Logger
	now  func() time.Time

	mu      sync.RWMutex
	records []Record
}

type fileFormat struct {
	Deployments []Record `yaml:"deployments"`
}

// Open loads the registry at path, creating an empty one if the file does
// not exist yet.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("registry path is required")
	}

	s := &Store{
		path: path,
		log:  log.With().Str("component", "registry").Logger(),
		now:  time.Now,
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var file fileFormat
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	s.records = file.Deployments

	s.log.Info().Int("records", len(s.records)).Str("path", path).Msg("Deployment registry loaded")
	return s, nil
}

// Register adds a record and persists. Names are unique per network.
func (s *Store) Register(name, network, kind string, addr common.Address, args map[string]string) (Record, error) {
	if name == "" || network == "" {
		return Record{}, fmt.Errorf("name and network are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.Name == name && rec.Network == network {
			return Record{}, fmt.Errorf("%w: %s on %s", ErrNameTaken, name, network)
		}
	}

	rec := Record{
		ID:              uuid.NewString(),
		Name:            name,
		Network:         network,
		Address:         addr.Hex(),
		Kind:            kind,
		ConstructorArgs: args,
		DeployedAt:      s.now().UTC(),
	}
	s.records = append(s.records, rec)

	if err := s.persist(); err != nil {
		s.records = s.records[:len(s.records)-1]
		return Record{}, err
	}

	s.log.Info().
		Str("name", name).
		Str("network", network).
		Str("address", rec.Address).
		Msg("Deployment registered")
	return rec, nil
}

// ByName resolves a record by name and network.
func (s *Store) ByName(name, network string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.Name == name && rec.Network == network {
			return rec, nil
		}
	}
	return Record{}, fmt.Errorf("%w: %s on %s", ErrRecordNotFound, name, network)
}

// List returns all records, ordered by deployment time.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	sort.Slice(out, func(i, j int) bool { return out[i].DeployedAt.Before(out[j].DeployedAt) })
	return out
}

// Remove deletes a record by id and persists.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range s.records {
		if rec.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return s.persist()
		}
	}
	return fmt.Errorf("%w: id %s", ErrRecordNotFound, id)
}

// SetNow overrides the clock. Tests only.
func (s *Store) SetNow(now func() time.Time) { s.now = now }

func (s *Store) persist() error {
	data, err := yaml.Marshal(fileFormat{Deployments: s.records})
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create registry dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}
