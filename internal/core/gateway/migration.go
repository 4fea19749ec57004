package gateway

import (
	"fmt"
	"sort"

	"github.com/rl1809/whiskey-cellar/internal/port"
)

// Migration brings the schema to Version. Up must be idempotent.
type Migration struct {
	Version int
	Name    string
	Up      func(s port.SchemaTx) error
}

// CreateObjectStore returns a step that creates name unless it already exists.
func CreateObjectStore(name string) func(port.SchemaTx) error {
	return func(s port.SchemaTx) error {
		ok, err := s.HasObjectStore(name)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		return s.CreateObjectStore(name)
	}
}

// Migrate applies, in version order, every migration with
// current < Version <= target.
func Migrate(s port.SchemaTx, current, target int, migrations []Migration) error {
	ordered := make([]Migration, len(migrations))
	copy(ordered, migrations)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Version < ordered[j].Version
	})

	for _, m := range ordered {
		if m.Version <= current || m.Version > target {
			continue
		}
		if err := m.Up(s); err != nil {
			return fmt.Errorf("migration %d %q: %w", m.Version, m.Name, err)
		}
	}
	return nil
}
