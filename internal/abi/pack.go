// Package abi implements the guest side of the memory ABI shared with the host:
// buffers are passed as a pointer and length packed into one uint64, and the
// host reports failed host calls by setting the top bit of the packed result.
package abi

import "fmt"

// PtrHighBits is the shift of the pointer within a packed value.
const PtrHighBits = 32

// ErrorFlag marks a packed host-call result whose buffer holds an error payload
// instead of a reply. Pointers must stay below 2 GiB for the flag to be unambiguous.
const ErrorFlag = uint64(1) << 63

// PackPtrLen packs a pointer and length into a single uint64.
// Pointer is stored in the high 32 bits, length in the low 32 bits.
// Panics if ptr is 0 and length > 0, indicating an invalid state.
func PackPtrLen(ptr, length uint32) uint64 {
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid pack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return (uint64(ptr) << PtrHighBits) | uint64(length)
}

// UnpackPtrLen unpacks a uint64 into its original pointer and length.
// Panics if ptr is 0 and length > 0, indicating an invalid packed value.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> PtrHighBits)
	length = uint32(packed)
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid unpack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return ptr, length
}

// PackError flags a packed buffer as an error payload.
func PackError(packed uint64) uint64 {
	return packed | ErrorFlag
}

// SplitResult separates the error flag from a packed host-call result.
func SplitResult(result uint64) (packed uint64, isError bool) {
	return result &^ ErrorFlag, result&ErrorFlag != 0
}
