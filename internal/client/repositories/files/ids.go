package files

import (
	"encoding/binary"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fallbackSource feeds uuid.NewRandomFromReader when the system CSPRNG is
// unavailable. It is a ChaCha8 stream seeded from the clock, so ids stay
// well-formed version 4 UUIDs but are far easier to predict and have weaker
// collision resistance than crypto/rand output. That is acceptable for ids
// that only need to be unique within one device's store.
type fallbackSource struct {
	mu  sync.Mutex
	rng *rand.ChaCha8
}

func newFallbackSource(now time.Time) *fallbackSource {
	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[0:], uint64(now.UnixNano()))
	binary.LittleEndian.PutUint64(seed[8:], uint64(os.Getpid()))
	binary.LittleEndian.PutUint64(seed[16:], uint64(now.Unix()))
	return &fallbackSource{rng: rand.NewChaCha8(seed)}
}

func (s *fallbackSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Read(p)
}

var (
	fallbackOnce sync.Once
	fallback     *fallbackSource
)

// newRecordID returns a random version 4 UUID. If the system random source
// fails it falls back to the weaker clock-seeded stream above.
func newRecordID() (string, error) {
	id, err := uuid.NewRandom()
	if err == nil {
		return id.String(), nil
	}

	fallbackOnce.Do(func() { fallback = newFallbackSource(time.Now()) })
	id, err = uuid.NewRandomFromReader(fallback)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
