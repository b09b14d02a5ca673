package ippool

import (
	"encoding/binary"
	"fmt"

	"github.com/ruteri/overlay-provisioning-backend/interfaces"
	"inet.af/netaddr"
)

// AddressRange is a network prefix plus the number of addresses to skip from
// the network address before allocation begins.
type AddressRange struct {
	prefix netaddr.IPPrefix
	offset uint64
	size   uint64
}

// NewAddressRange validates offset against the capacity of prefix. The
// prefix is masked, so iteration always starts at the network address.
func NewAddressRange(prefix netaddr.IPPrefix, offset uint64) (AddressRange, error) {
	if !prefix.IsValid() {
		return AddressRange{}, fmt.Errorf("invalid prefix %q", prefix.String())
	}
	prefix = prefix.Masked()

	size, err := prefixSize(prefix)
	if err != nil {
		return AddressRange{}, err
	}
	if offset > size {
		return AddressRange{}, fmt.Errorf("%w: offset %d, network %s holds %d addresses", interfaces.ErrOffsetTooBig, offset, prefix, size)
	}

	return AddressRange{prefix: prefix, offset: offset, size: size}, nil
}

// ParseAddressRange parses cidr (host bits are allowed and ignored) and
// validates offset against it.
func ParseAddressRange(cidr string, offset uint64) (AddressRange, error) {
	prefix, err := netaddr.ParseIPPrefix(cidr)
	if err != nil {
		return AddressRange{}, fmt.Errorf("could not parse network %q: %w", cidr, err)
	}
	return NewAddressRange(prefix, offset)
}

// prefixSize returns the number of addresses in prefix. IPv4 sizes always fit
// uint64; IPv6 prefixes with 64 or more host bits do not.
func prefixSize(prefix netaddr.IPPrefix) (uint64, error) {
	hostBits := uint(prefix.IP().BitLen()) - uint(prefix.Bits())
	if prefix.IP().Is4() {
		return uint64(1) << hostBits, nil
	}
	if hostBits >= 64 {
		return 0, fmt.Errorf("%w: %s has %d host bits", interfaces.ErrOffsetOverflow, prefix, hostBits)
	}
	return uint64(1) << hostBits, nil
}

func (r AddressRange) Prefix() netaddr.IPPrefix { return r.prefix }
func (r AddressRange) Offset() uint64           { return r.offset }
func (r AddressRange) Size() uint64             { return r.size }

func (r AddressRange) String() string {
	return fmt.Sprintf("%s+%d", r.prefix, r.offset)
}

// Contains reports whether ip belongs to the range's prefix, including the
// addresses skipped by the offset.
func (r AddressRange) Contains(ip netaddr.IP) bool {
	return r.prefix.Contains(ip)
}

// Address returns the address index positions past the network address.
// index must be lower than Size.
func (r AddressRange) Address(index uint64) netaddr.IP {
	b := r.prefix.IP().As16()
	lo := binary.BigEndian.Uint64(b[8:])
	hi := binary.BigEndian.Uint64(b[:8])

	newLo := lo + index
	if newLo < lo {
		hi++
	}
	binary.BigEndian.PutUint64(b[:8], hi)
	binary.BigEndian.PutUint64(b[8:], newLo)

	ip := netaddr.IPFrom16(b)
	if r.prefix.IP().Is4() {
		return ip.Unmap()
	}
	return ip
}

// Index is the inverse of Address.
func (r AddressRange) Index(ip netaddr.IP) (uint64, bool) {
	if !r.Contains(ip) {
		return 0, false
	}
	ab := ip.As16()
	bb := r.prefix.IP().As16()
	return binary.BigEndian.Uint64(ab[8:]) - binary.BigEndian.Uint64(bb[8:]), true
}

// WithPrefixLen returns ip carrying the range's prefix length, the form
// expected by the issuance executable.
func (r AddressRange) WithPrefixLen(ip netaddr.IP) netaddr.IPPrefix {
	return netaddr.IPPrefixFrom(ip, r.prefix.Bits())
}
