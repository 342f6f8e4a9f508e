package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEvent   = "exproxy/event/v1"
	DomainStorage = "exproxy/storage/v1"
	DomainSlot    = "exproxy/slot/v1"
	DomainCreate  = "exproxy/create/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// NamespacePrefix derives the 16-byte prefix that owns a module's storage
// region. The derivation is a pure function of the module identifier, so it is
// stable across upgrades and needs no central registry.
func NamespacePrefix(moduleID string) [16]byte {
	sum := hashWithDomain(DomainStorage, []byte(moduleID))
	var p [16]byte
	copy(p[:], sum[:16])
	return p
}

// MappingOffset derives the low half of a slot holding a mapping entry.
// Parts are length-prefixed so ("ab","c") and ("a","bc") never collide.
func MappingOffset(prefix [16]byte, field uint64, parts ...string) [16]byte {
	buf := make([]byte, 0, 16+8+len(parts)*24)
	buf = append(buf, prefix[:]...)
	buf = binary.BigEndian.AppendUint64(buf, field)
	for _, p := range parts {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(p)))
		buf = append(buf, p...)
	}
	sum := hashWithDomain(DomainSlot, buf)
	var off [16]byte
	copy(off[:], sum[:16])
	return off
}

// CreateAddress computes the address of an account deployed by from when its
// nonce is nonce. Deterministic, so transformer addresses can be derived from
// (deployer, nonce) pairs.
func CreateAddress(from Address, nonce uint64) Address {
	buf := make([]byte, 0, 28)
	buf = append(buf, from[:]...)
	buf = binary.BigEndian.AppendUint64(buf, nonce)
	sum := hashWithDomain(DomainCreate, buf)
	var a Address
	copy(a[:], sum[12:])
	return a
}

// EventID computes the content-addressed ID of an audit event.
// Returns error if fields cannot be canonically marshaled.
func EventID(txID string, seq int64, emitter Address, name string, fields Object) (string, error) {
	obj := Object{
		"tx_id":   String(txID),
		"seq":     Int(seq),
		"emitter": emitter.Value(),
		"name":    String(name),
		"fields":  fields,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	sum := hashWithDomain(DomainEvent, canonical)
	return hex.EncodeToString(sum[:]), nil
}
