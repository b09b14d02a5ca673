package ippool

import (
	"fmt"
	"sync"

	"github.com/ruteri/overlay-provisioning-backend/interfaces"
	"inet.af/netaddr"
)

// RecyclePolicy decides which addresses Recycle accepts.
type RecyclePolicy int

const (
	// RecyclePermissive trusts the caller: any address of the pool's family
	// is accepted. Duplicates, addresses the cursor has not reached yet and
	// unusable addresses are ignored, so no address can be handed out twice.
	RecyclePermissive RecyclePolicy = iota

	// RecycleStrict only accepts in-range addresses that are currently
	// outstanding.
	RecycleStrict
)

func (p RecyclePolicy) String() string {
	switch p {
	case RecyclePermissive:
		return "permissive"
	case RecycleStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// ParseRecyclePolicy parses the flag form of a RecyclePolicy.
func ParseRecyclePolicy(s string) (RecyclePolicy, error) {
	switch s {
	case "", "permissive":
		return RecyclePermissive, nil
	case "strict":
		return RecycleStrict, nil
	default:
		return 0, fmt.Errorf("unknown recycle policy %q", s)
	}
}

type Option func(*Pool)

func WithRecyclePolicy(policy RecyclePolicy) Option {
	return func(p *Pool) {
		p.policy = policy
	}
}

// Pool hands out addresses from an AddressRange. Recycled addresses are
// served first, most recently recycled first, before the forward cursor
// advances.
type Pool struct {
	mu sync.Mutex

	rng    AddressRange
	policy RecyclePolicy

	// next is the index of the first address the cursor has not issued.
	next uint64

	free        []netaddr.IP
	freeSet     map[netaddr.IP]struct{}
	outstanding map[netaddr.IP]struct{}
}

// New creates a pool whose cursor starts at the range's offset.
func New(r AddressRange, opts ...Option) *Pool {
	p := &Pool{
		rng:         r,
		next:        r.Offset(),
		freeSet:     make(map[netaddr.IP]struct{}),
		outstanding: make(map[netaddr.IP]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromCIDR is a shorthand for ParseAddressRange followed by New.
func NewFromCIDR(cidr string, offset uint64, opts ...Option) (*Pool, error) {
	r, err := ParseAddressRange(cidr, offset)
	if err != nil {
		return nil, err
	}
	return New(r, opts...), nil
}

// Allocate returns the next usable address. The boolean is false once both
// the recycle list and the range are exhausted.
func (p *Pool) Allocate() (netaddr.IP, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.free); n > 0 {
		ip := p.free[n-1]
		p.free = p.free[:n-1]
		delete(p.freeSet, ip)
		p.outstanding[ip] = struct{}{}
		return ip, true
	}

	if p.next >= p.rng.Size() {
		return netaddr.IP{}, false
	}

	ip := p.rng.Address(p.next)
	p.next++
	p.outstanding[ip] = struct{}{}
	return ip, true
}

// Recycle returns ip to the pool for reuse. Under RecyclePermissive it never
// fails: the zero address and addresses of the other family are dropped.
func (p *Pool) Recycle(ip netaddr.IP) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ip.IsZero() || ip.Is4() != p.rng.Prefix().IP().Is4() {
		if p.policy == RecycleStrict {
			return fmt.Errorf("%w: %s is not of the pool's address family", interfaces.ErrAddressOutOfRange, ip)
		}
		return nil
	}

	_, isOutstanding := p.outstanding[ip]
	_, isFree := p.freeSet[ip]

	switch p.policy {
	case RecycleStrict:
		if !p.rng.Contains(ip) {
			return fmt.Errorf("%w: %s not in %s", interfaces.ErrAddressOutOfRange, ip, p.rng.Prefix())
		}
		if !isOutstanding {
			return fmt.Errorf("%w: %s", interfaces.ErrAddressNotAllocated, ip)
		}
	default:
		if isFree {
			return nil
		}
		if idx, ok := p.rng.Index(ip); ok && idx >= p.next {
			// not issued yet, the cursor will reach it
			return nil
		}
	}

	delete(p.outstanding, ip)
	p.free = append(p.free, ip)
	p.freeSet[ip] = struct{}{}
	return nil
}

// Available returns how many addresses Allocate can still produce.
func (p *Pool) Available() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Size() - p.next + uint64(len(p.free))
}

// Outstanding returns the number of allocated and not yet recycled addresses.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outstanding)
}

// IsAllocated reports whether ip is currently outstanding.
func (p *Pool) IsAllocated(ip netaddr.IP) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.outstanding[ip]
	return ok
}

func (p *Pool) Range() AddressRange {
	return p.rng
}

func (p *Pool) Policy() RecyclePolicy {
	return p.policy
}
