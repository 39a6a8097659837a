package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"stitchtalk/internal/domain/identity"
)

// Directory keeps creator and customer profiles in memory.
type Directory struct {
	mu       sync.RWMutex
	profiles map[identity.Ref]*identity.Profile
}

func NewDirectory() *Directory {
	return &Directory{profiles: make(map[identity.Ref]*identity.Profile)}
}

// Put inserts or replaces a profile. Used by fixture loading and tests.
func (d *Directory) Put(profile identity.Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	clone := profile
	d.profiles[identity.Ref{ID: profile.ID, Kind: profile.Kind}] = &clone
}

func (d *Directory) Resolve(ctx context.Context, ref identity.Ref) (*identity.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	profile, ok := d.profiles[ref]
	if !ok {
		return nil, identity.ErrNotFound
	}
	clone := *profile
	return &clone, nil
}

func (d *Directory) List(ctx context.Context) ([]identity.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]identity.Profile, 0, len(d.profiles))
	for _, profile := range d.profiles {
		out = append(out, *profile)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *Directory) TouchLastSeen(ctx context.Context, ref identity.Ref, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	profile, ok := d.profiles[ref]
	if !ok {
		return identity.ErrNotFound
	}
	profile.LastSeenAt = at.UTC()
	return nil
}

var _ identity.Directory = (*Directory)(nil)
