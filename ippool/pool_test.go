package ippool

import (
	"testing"

	"github.com/ruteri/overlay-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"inet.af/netaddr"
)

func mustPool(t *testing.T, cidr string, offset uint64, opts ...Option) *Pool {
	t.Helper()
	p, err := NewFromCIDR(cidr, offset, opts...)
	require.NoError(t, err)
	return p
}

func allocate(t *testing.T, p *Pool) netaddr.IP {
	t.Helper()
	ip, ok := p.Allocate()
	require.True(t, ok, "pool unexpectedly exhausted")
	return ip
}

func TestNewAddressRange(t *testing.T) {
	tests := []struct {
		name    string
		cidr    string
		offset  uint64
		size    uint64
		wantErr error
	}{
		{name: "v4 zero offset", cidr: "192.168.100.1/24", offset: 0, size: 256},
		{name: "v4 offset at capacity", cidr: "192.168.100.1/24", offset: 256, size: 256},
		{name: "v4 offset too big", cidr: "192.168.100.1/24", offset: 257, wantErr: interfaces.ErrOffsetTooBig},
		{name: "v4 single host", cidr: "10.0.0.7/32", offset: 1, size: 1},
		{name: "v4 whole space", cidr: "0.0.0.0/0", offset: 1 << 32, size: 1 << 32},
		{name: "v6 small", cidr: "fd00::/120", offset: 10, size: 256},
		{name: "v6 offset too big", cidr: "fd00::/120", offset: 300, wantErr: interfaces.ErrOffsetTooBig},
		{name: "v6 size overflow", cidr: "fd00::/64", offset: 0, wantErr: interfaces.ErrOffsetOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseAddressRange(tt.cidr, tt.offset)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.size, r.Size())
			assert.Equal(t, tt.offset, r.Offset())
		})
	}
}

func TestParseAddressRange_Invalid(t *testing.T) {
	_, err := ParseAddressRange("not-a-network", 0)
	require.Error(t, err)
}

func TestPool_AllocatesInRangeOrderFromOffset(t *testing.T) {
	p := mustPool(t, "192.168.100.1/24", 253)

	assert.Equal(t, netaddr.MustParseIP("192.168.100.253"), allocate(t, p))
	assert.Equal(t, netaddr.MustParseIP("192.168.100.254"), allocate(t, p))
	assert.Equal(t, netaddr.MustParseIP("192.168.100.255"), allocate(t, p))

	_, ok := p.Allocate()
	assert.False(t, ok)
	assert.Equal(t, uint64(0), p.Available())
}

func TestPool_RecycledAddressServedFirst(t *testing.T) {
	p := mustPool(t, "192.168.100.1/24", 253)

	assert.Equal(t, netaddr.MustParseIP("192.168.100.253"), allocate(t, p))
	require.NoError(t, p.Recycle(netaddr.MustParseIP("192.168.100.4")))
	assert.Equal(t, netaddr.MustParseIP("192.168.100.4"), allocate(t, p))
	assert.Equal(t, netaddr.MustParseIP("192.168.100.254"), allocate(t, p))
}

func TestPool_RecycleIsLIFO(t *testing.T) {
	p := mustPool(t, "10.0.0.0/24", 1)

	a := allocate(t, p)
	b := allocate(t, p)
	c := allocate(t, p)
	require.NoError(t, p.Recycle(a))
	require.NoError(t, p.Recycle(c))
	require.NoError(t, p.Recycle(b))

	assert.Equal(t, b, allocate(t, p))
	assert.Equal(t, c, allocate(t, p))
	assert.Equal(t, a, allocate(t, p))
	assert.Equal(t, netaddr.MustParseIP("10.0.0.4"), allocate(t, p))
}

func TestPool_LastOffsetYieldsOneAddress(t *testing.T) {
	p := mustPool(t, "192.168.100.1/24", 255)

	assert.Equal(t, netaddr.MustParseIP("192.168.100.255"), allocate(t, p))
	_, ok := p.Allocate()
	assert.False(t, ok)
}

func TestPool_OffsetAtCapacityIsEmpty(t *testing.T) {
	p := mustPool(t, "192.168.100.1/24", 256)

	_, ok := p.Allocate()
	assert.False(t, ok)
}

func TestPool_DefaultRangeFirstAddress(t *testing.T) {
	p := mustPool(t, "192.168.0.2/24", 1)
	assert.Equal(t, netaddr.MustParseIP("192.168.0.1"), allocate(t, p))
}

func TestPool_IPv6(t *testing.T) {
	p := mustPool(t, "fd00::/126", 2)

	assert.Equal(t, netaddr.MustParseIP("fd00::2"), allocate(t, p))
	assert.Equal(t, netaddr.MustParseIP("fd00::3"), allocate(t, p))
	_, ok := p.Allocate()
	assert.False(t, ok)
}

func TestPool_ExhaustedPoolRecoversAfterRecycle(t *testing.T) {
	p := mustPool(t, "10.0.0.5/32", 0)

	ip := allocate(t, p)
	_, ok := p.Allocate()
	require.False(t, ok)

	require.NoError(t, p.Recycle(ip))
	assert.Equal(t, ip, allocate(t, p))
}

func TestPool_Deterministic(t *testing.T) {
	run := func() []netaddr.IP {
		p := mustPool(t, "10.1.0.0/28", 3)
		var out []netaddr.IP
		out = append(out, allocate(t, p), allocate(t, p))
		require.NoError(t, p.Recycle(out[0]))
		out = append(out, allocate(t, p), allocate(t, p))
		require.NoError(t, p.Recycle(out[3]))
		require.NoError(t, p.Recycle(out[1]))
		out = append(out, allocate(t, p), allocate(t, p), allocate(t, p))
		return out
	}
	assert.Equal(t, run(), run())
}

func TestPool_PermissiveIgnoresDuplicatesAndUnissued(t *testing.T) {
	p := mustPool(t, "10.0.0.0/29", 1)

	a := allocate(t, p)
	require.NoError(t, p.Recycle(a))
	require.NoError(t, p.Recycle(a))
	// 10.0.0.6 has not been reached by the cursor yet.
	require.NoError(t, p.Recycle(netaddr.MustParseIP("10.0.0.6")))

	seen := map[netaddr.IP]bool{}
	for {
		ip, ok := p.Allocate()
		if !ok {
			break
		}
		assert.False(t, seen[ip], "address %s handed out twice", ip)
		seen[ip] = true
	}
	assert.Len(t, seen, 7)
}

func TestPool_PermissiveAcceptsForeignAddress(t *testing.T) {
	p := mustPool(t, "10.0.0.0/30", 4)

	require.NoError(t, p.Recycle(netaddr.MustParseIP("172.16.0.9")))
	assert.Equal(t, uint64(1), p.Available())
	assert.Equal(t, netaddr.MustParseIP("172.16.0.9"), allocate(t, p))
}

func TestPool_RecycleOtherFamily(t *testing.T) {
	unusable := []netaddr.IP{netaddr.MustParseIP("fd00::1"), {}}

	permissive := mustPool(t, "10.0.0.0/30", 4)
	for _, ip := range unusable {
		require.NoError(t, permissive.Recycle(ip))
	}
	assert.Equal(t, uint64(0), permissive.Available())
	_, ok := permissive.Allocate()
	assert.False(t, ok)

	strict := mustPool(t, "10.0.0.0/30", 0, WithRecyclePolicy(RecycleStrict))
	for _, ip := range unusable {
		assert.ErrorIs(t, strict.Recycle(ip), interfaces.ErrAddressOutOfRange)
	}
}

func TestPool_StrictRecycle(t *testing.T) {
	p := mustPool(t, "10.0.0.0/29", 1, WithRecyclePolicy(RecycleStrict))
	assert.Equal(t, RecycleStrict, p.Policy())

	a := allocate(t, p)
	assert.True(t, p.IsAllocated(a))
	assert.Equal(t, 1, p.Outstanding())

	require.NoError(t, p.Recycle(a))
	assert.False(t, p.IsAllocated(a))
	assert.ErrorIs(t, p.Recycle(a), interfaces.ErrAddressNotAllocated)
	assert.ErrorIs(t, p.Recycle(netaddr.MustParseIP("10.0.0.5")), interfaces.ErrAddressNotAllocated)
	assert.ErrorIs(t, p.Recycle(netaddr.MustParseIP("10.0.1.1")), interfaces.ErrAddressOutOfRange)

	assert.Equal(t, a, allocate(t, p))
}

func TestPool_Available(t *testing.T) {
	p := mustPool(t, "10.0.0.0/28", 4)
	assert.Equal(t, uint64(12), p.Available())

	a := allocate(t, p)
	allocate(t, p)
	assert.Equal(t, uint64(10), p.Available())

	require.NoError(t, p.Recycle(a))
	assert.Equal(t, uint64(11), p.Available())
}

func TestParseRecyclePolicy(t *testing.T) {
	policy, err := ParseRecyclePolicy("strict")
	require.NoError(t, err)
	assert.Equal(t, RecycleStrict, policy)

	policy, err = ParseRecyclePolicy("")
	require.NoError(t, err)
	assert.Equal(t, RecyclePermissive, policy)

	_, err = ParseRecyclePolicy("sometimes")
	assert.Error(t, err)
}

func TestAddressRange_IndexRoundTrip(t *testing.T) {
	r, err := ParseAddressRange("10.0.255.0/23", 0)
	require.NoError(t, err)

	ip := r.Address(300)
	assert.Equal(t, netaddr.MustParseIP("10.0.255.44"), ip)
	idx, ok := r.Index(ip)
	require.True(t, ok)
	assert.Equal(t, uint64(300), idx)
	assert.Equal(t, "10.0.254.0/23", r.WithPrefixLen(r.Address(0)).String())

	_, ok = r.Index(netaddr.MustParseIP("10.1.0.0"))
	assert.False(t, ok)
}
