// Package storage is the storage isolation layer.
//
// All modules installed behind the dispatcher execute against ONE shared
// persistent key space (the dispatcher's account), so that the whole system
// keeps a single external identity. Naive field-numbered storage would make
// independently compiled modules clobber each other. Instead every module
// derives its own region from a stable identifier:
//
//	slot = prefix(moduleID) || offset
//
// where prefix(moduleID) is the first 16 bytes of a domain-separated SHA-256
// of the identifier and offset is either a small field index or a hashed
// mapping key. Two modules with different identifiers own disjoint regions;
// no central layout registry has to be coordinated between module authors.
//
// The Guard adds an optional runtime assertion on top of the convention: when
// the namespaces of all installed code are known, a write whose slot belongs
// to a namespace the writing code did not declare fails with
// STORAGE_COLLISION.
package storage
