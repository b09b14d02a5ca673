package interfaces

import (
	"errors"
	"fmt"
)

var (
	// ErrOffsetTooBig is returned when an address range is constructed with a
	// starting offset larger than the number of addresses in its prefix.
	ErrOffsetTooBig = errors.New("offset is bigger than size of network")

	// ErrOffsetOverflow is returned when the size of a prefix does not fit the
	// offset type (IPv6 prefixes with 64 or more host bits).
	ErrOffsetOverflow = errors.New("network size overflows offset type")

	// ErrAddressPoolExhausted is returned when neither the recycle list nor the
	// forward cursor can produce another address.
	ErrAddressPoolExhausted = errors.New("address pool exhausted")

	// ErrAddressOutOfRange is returned by a strict pool when recycling an
	// address that does not belong to its range.
	ErrAddressOutOfRange = errors.New("address is outside of pool range")

	// ErrAddressNotAllocated is returned by a strict pool when recycling an
	// address that is not currently outstanding, including double recycles.
	ErrAddressNotAllocated = errors.New("address is not allocated")

	// ErrPathNotExist is returned at construction when a CA or shared
	// configuration file is missing.
	ErrPathNotExist = errors.New("required path does not exist")

	// ErrInvalidSharedConfig is returned at construction when the shared node
	// configuration cannot be parsed as YAML.
	ErrInvalidSharedConfig = errors.New("invalid shared node configuration")

	// ErrUnsafeWorkDir is returned at construction when the work directory
	// contains one of the input files, which a node name could then replace.
	ErrUnsafeWorkDir = errors.New("work directory contains input files")

	// ErrInvalidNodeName is returned when a requested node name cannot be used
	// as a single directory name.
	ErrInvalidNodeName = errors.New("invalid node name")

	// ErrIssuanceFailed is matched by every IssuanceError.
	ErrIssuanceFailed = errors.New("identity issuance failed")

	// ErrPipelineUnavailable is returned once the provisioning worker has
	// terminated.
	ErrPipelineUnavailable = errors.New("provisioning pipeline unavailable")
)

// IssuanceStage names the step of a provisioning call that failed.
type IssuanceStage string

const (
	StageStage   IssuanceStage = "stage"
	StageSign    IssuanceStage = "sign"
	StageConfig  IssuanceStage = "config"
	StagePackage IssuanceStage = "package"
)

// IssuanceError carries the cause of a failed issuance together with the node
// and the address that was consumed by the attempt.
type IssuanceError struct {
	Name    NodeName
	Address string
	Stage   IssuanceStage
	Err     error
}

func (e *IssuanceError) Error() string {
	return fmt.Sprintf("%s: node %s (%s) at %s: %v", ErrIssuanceFailed, e.Name, e.Address, e.Stage, e.Err)
}

func (e *IssuanceError) Unwrap() error {
	return e.Err
}

// Is reports ErrIssuanceFailed as matching so callers can test the category
// without unwrapping the cause.
func (e *IssuanceError) Is(target error) bool {
	return target == ErrIssuanceFailed
}
