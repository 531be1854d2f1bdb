package swarm

import (
	"fmt"
	"sync"

	"cellsim/pkg/types"
)

// AddressPool hands out phone numbers from an inclusive range.
type AddressPool struct {
	first     types.Address
	last      types.Address
	next      types.Address
	allocated map[types.Address]bool
	mu        sync.Mutex
}

// NewAddressPool creates a pool covering first..last.
func NewAddressPool(first, last types.Address) (*AddressPool, error) {
	if !first.IsValid() || !last.IsValid() {
		return nil, fmt.Errorf("invalid address range %d-%d: addresses must be 1-255", first, last)
	}
	if first > last {
		return nil, fmt.Errorf("invalid address range %d-%d: start after end", first, last)
	}
	return &AddressPool{
		first:     first,
		last:      last,
		next:      first,
		allocated: make(map[types.Address]bool),
	}, nil
}

func (p *AddressPool) size() int {
	return int(p.last) - int(p.first) + 1
}

// Allocate returns the next free address, wrapping around the range.
func (p *AddressPool) Allocate() (types.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for checked := 0; checked < p.size(); checked++ {
		addr := p.next
		p.advance()
		if !p.allocated[addr] {
			p.allocated[addr] = true
			return addr, nil
		}
	}
	return types.InvalidAddress, fmt.Errorf("address pool exhausted (all %d addresses allocated)", len(p.allocated))
}

func (p *AddressPool) advance() {
	if p.next == p.last {
		p.next = p.first
		return
	}
	p.next++
}

// Release returns an address to the pool.
func (p *AddressPool) Release(addr types.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.allocated, addr)
}

// AllocatedCount returns the number of addresses in use.
func (p *AddressPool) AllocatedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.allocated)
}

// Available returns the number of free addresses.
func (p *AddressPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size() - len(p.allocated)
}
