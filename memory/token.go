package memory

import (
	"sync"

	"github.com/pkg/errors"
)

// Token identifies an address space in translation requests.
type Token uint64

type tokenTable struct {
	mu     sync.RWMutex
	next   Token
	spaces map[Token]*AddressSpace
}

var spaces = &tokenTable{
	spaces: make(map[Token]*AddressSpace),
}

func (t *tokenTable) register(as *AddressSpace) Token {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	t.spaces[t.next] = as

	return t.next
}

func (t *tokenTable) unregister(tok Token) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.spaces, tok)
}

// Lookup resolves a token to its address space.
func Lookup(tok Token) (*AddressSpace, error) {
	spaces.mu.RLock()
	defer spaces.mu.RUnlock()

	as, ok := spaces.spaces[tok]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownToken, "token=%d", tok)
	}

	return as, nil
}
