package plantdata

import (
	"context"
	"sync"
)

// Fake is a settable in-memory provider for tests and development.
type Fake struct {
	mutex    sync.RWMutex
	defaults map[string]CareDefaults
	err      error
}

func NewFake() *Fake {
	return &Fake{
		defaults: make(map[string]CareDefaults),
	}
}

func (f *Fake) SetDefaults(species string, defaults CareDefaults) {
	f.mutex.Lock()
	f.defaults[species] = defaults
	f.mutex.Unlock()
}

func (f *Fake) SetError(err error) {
	f.mutex.Lock()
	f.err = err
	f.mutex.Unlock()
}

func (f *Fake) CareDefaults(ctx context.Context, species string) (*CareDefaults, error) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	if f.err != nil {
		return nil, f.err
	}

	defaults := f.defaults[species]
	return &defaults, nil
}
