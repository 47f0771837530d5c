package store

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	PrefixGame       = "g"
	PrefixTournament = "t"
	PrefixMatch      = "m"
)

var (
	ulidEntropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	ulidEntropyMu sync.Mutex
)

// NewID returns a sortable id such as "g_01j9..." for the given prefix.
func NewID(prefix string) string {
	ulidEntropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
	ulidEntropyMu.Unlock()
	id = strings.ToLower(id)
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
