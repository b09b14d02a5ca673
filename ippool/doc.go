// Package ippool allocates overlay addresses from a bounded range.
//
// A Pool walks its AddressRange forward from a starting offset and keeps a
// last-in-first-out list of recycled addresses which is always served before
// the forward cursor advances. Given the same sequence of Allocate and
// Recycle calls a pool returns the same sequence of addresses.
//
// Exhaustion is not an error: Allocate reports it with a false boolean and
// callers decide how to surface it.
//
//	r, err := ippool.ParseAddressRange("192.168.100.0/24", 253)
//	p := ippool.New(r, ippool.WithRecyclePolicy(ippool.RecycleStrict))
//	ip, ok := p.Allocate() // 192.168.100.253
//
// Allocation state lives in memory only and is lost on restart.
package ippool
