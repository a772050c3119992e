package verifier

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// DeriveID deterministically maps a customer id to the 63-bit point
// id used as the vector-store key for that customer's centroid: the
// first 60 bits (15 hex digits) of SHA-256(customer_id), taken mod 2^63.
//
// Deterministic derivation means re-enrollment always targets the same
// vector-store point, and two processes independently computing the id
// for the same customer always agree without coordination.
func DeriveID(customerID string) int64 {
	sum := sha256.Sum256([]byte(customerID))
	hexDigest := hex.EncodeToString(sum[:])

	// 15 hex digits = 60 bits, parsed into a uint64 that always fits in
	// the low 60 bits; masking to 63 bits is then a no-op but kept
	// explicit to document the contract.
	bits, err := strconv.ParseUint(hexDigest[:15], 16, 64)
	if err != nil {
		// unreachable: 15 hex digits of a SHA-256 digest always parse.
		panic("verifier: point id derivation: " + err.Error())
	}
	const mask63 = (uint64(1) << 63) - 1
	return int64(bits & mask63)
}
