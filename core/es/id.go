package es

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/oklog/ulid"
)

// ID identifies an aggregate. It is a ULID in its 26 character string form,
// so ids sort by creation time.
type ID string

func (id ID) String() string { return string(id) }
func (id ID) IsZero() bool   { return id == "" }

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a fresh ULID. Ids created within the same millisecond are
// strictly increasing.
func NewID() ID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ID(ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String())
}

// ParseID validates s as a ULID.
func ParseID(s string) (ID, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return "", fmt.Errorf("invalid aggregate id %q: %w", s, err)
	}
	return ID(u.String()), nil
}

// MustParseID is like ParseID but panics on error. Meant for tests and
// constants.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// TransactionID groups the events of one commit.
type TransactionID string

func (t TransactionID) String() string { return string(t) }

// IDGenerator is a function that generates unique IDs for events.
type IDGenerator func() string

// DefaultIDGenerator returns the default ID generator using nanoid.
func DefaultIDGenerator() IDGenerator {
	return func() string { return gonanoid.Must() }
}

// TransactionIDGenerator creates transaction ids.
type TransactionIDGenerator func() TransactionID

// DefaultTransactionIDGenerator returns time ordered UUIDv7 transaction ids.
func DefaultTransactionIDGenerator() TransactionIDGenerator {
	return func() TransactionID { return TransactionID(uuid.Must(uuid.NewV7()).String()) }
}
