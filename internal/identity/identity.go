package identity

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/hkacimi/studymate/internal/models"
)

// Store holds the persisted user/provider pair. An existing identity is
// never overwritten by callers in this module, only created when absent
// and removed on sign-out.
type Store interface {
	// Load returns the stored identity and whether one exists.
	Load() (models.Identity, bool, error)
	Save(models.Identity) error
	Clear() error
}

// NewGuest synthesizes an anonymous identity. The id combines a timestamp
// with a random base36 suffix so two devices never collide.
func NewGuest() models.Identity {
	suffix := strconv.FormatInt(rand.Int63(), 36)
	if len(suffix) > 9 {
		suffix = suffix[:9]
	}
	return models.Identity{
		UserID:   fmt.Sprintf("%s_%d_%s", models.ProviderGuest, time.Now().UnixMilli(), suffix),
		Provider: models.ProviderGuest,
	}
}

// MemoryStore keeps the identity for the lifetime of the process.
type MemoryStore struct {
	mu  sync.Mutex
	id  models.Identity
	set bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (models.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.set, nil
}

func (s *MemoryStore) Save(id models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	s.set = true
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = models.Identity{}
	s.set = false
	return nil
}
