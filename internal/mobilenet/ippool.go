package mobilenet

import (
	"errors"
	"net/netip"
)

// ErrInvariant marks violations the process must not survive: ip pool
// exhaustion, duplicate allocation. Callers check with errors.Is and fail
// fast.
var ErrInvariant = errors.New("invariant violation")

// ErrIPPoolExhausted is returned when an attach finds the pool empty.
var ErrIPPoolExhausted = errors.New("ip pool exhausted")

// IPPool is the finite address set sessions draw from: pop at attach, push
// at detach. The disjoint union of the pool and the live sessions' ips is
// constant.
type IPPool struct {
	free []netip.Addr
}

// NewIPPool seeds a pool with the given addresses. The slice is copied.
func NewIPPool(addrs []netip.Addr) *IPPool {
	free := make([]netip.Addr, len(addrs))
	copy(free, addrs)
	return &IPPool{free: free}
}

// Allocate pops the most recently freed address.
func (p *IPPool) Allocate() (netip.Addr, error) {
	if len(p.free) == 0 {
		return netip.Addr{}, ErrIPPoolExhausted
	}
	addr := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return addr, nil
}

// Free returns an address to the pool.
func (p *IPPool) Free(addr netip.Addr) {
	p.free = append(p.free, addr)
}

// Size returns the number of free addresses.
func (p *IPPool) Size() int {
	return len(p.free)
}
