package memoryrepo

import (
	"context"
	"sync"

	"github.com/campusboard/sessionkit/tokencache"
)

var _ tokencache.Repo = (*MemoryRepo)(nil)

// MemoryRepo keeps the session artifact entry in process memory. Used when
// no Redis address is configured and as the fake in tests.
type MemoryRepo struct {
	entry *tokencache.Entry
	lock  sync.RWMutex
}

func New() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Save(_ context.Context, entry *tokencache.Entry) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	copied := *entry
	r.entry = &copied
	return nil
}

func (r *MemoryRepo) Load(_ context.Context) (*tokencache.Entry, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.entry == nil {
		return nil, tokencache.NotFoundErr
	}
	copied := *r.entry
	return &copied, nil
}

func (r *MemoryRepo) Clear(_ context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.entry = nil
	return nil
}
