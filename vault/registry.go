package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jmcleod/gatekey/internal/util"
	"github.com/jmcleod/gatekey/storage"
)

// registryID addresses the registry record itself. It carries no kind
// suffix, so it can never collide with an entry id.
const registryID = "_registry"

// entryMeta is the per-entry bookkeeping kept in the registry.
type entryMeta struct {
	Kind      Kind      `json:"kind"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// registry is the serialized set of live entry ids. The backing store has
// no enumerate-by-prefix primitive, so this is the only source of truth
// for bulk operations.
type registry map[string]entryMeta

func (r registry) add(id string, kind Kind) {
	r[id] = entryMeta{Kind: kind, UpdatedAt: time.Now().UTC()}
}

func (r registry) remove(id string) {
	delete(r, id)
}

func (r registry) ids() []string {
	out := make([]string, 0, len(r))
	for id := range r {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (v *Vault) loadRegistryLocked(master []byte) (registry, error) {
	env, err := v.repo.Get(v.id, registryID)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrStoreNotFound) {
		return registry{}, nil
	}
	if err != nil {
		return nil, err
	}

	recordKey, err := v.recordKeyFor(master, registryID)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(recordKey)

	data, err := storage.OpenRecord(recordKey, env, v.recordAAD(registryID))
	if err != nil {
		return nil, fmt.Errorf("opening registry: %w", err)
	}
	var r registry
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding registry: %w", err)
	}
	return r, nil
}

func (v *Vault) saveRegistryLocked(master []byte, r registry) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	return v.putLocked(master, registryID, data)
}

// updateRegistryLocked applies a mutation as one read-modify-write unit.
// The registry is bookkeeping, not the payload: failures here are logged
// and never fail the caller's operation.
func (v *Vault) updateRegistryLocked(master []byte, mutate func(registry)) {
	reg, err := v.loadRegistryLocked(master)
	if err != nil {
		v.logger.Error("loading registry", "vault", v.id, "error", err)
		return
	}
	mutate(reg)
	if err := v.saveRegistryLocked(master, reg); err != nil {
		v.logger.Error("persisting registry", "vault", v.id, "error", err)
	}
}
