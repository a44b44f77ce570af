package store

import "crypto/sha256"

// NodeIdInputs is the documented derivation tuple for NodeId (spec data
// model §3): a node's identity is a function of its crate namespace, the
// file it is defined in, its module path, its own name, its item kind, the
// id of its immediate containing scope, and the cfg-gate string active at
// parse time.
type NodeIdInputs struct {
	Namespace  string
	FilePath   string
	ModulePath []string
	ItemName   string
	ItemKind   NodeKind
	ParentID   NodeId
	CfgHash    string
}

// NewNodeId derives a NodeId deterministically from its inputs. Re-parsing
// a file with unchanged inputs reproduces the same id (invariant 1).
func NewNodeId(in NodeIdInputs) NodeId {
	h := sha256.New()
	writeString(h, in.Namespace)
	writeString(h, in.FilePath)
	for _, seg := range in.ModulePath {
		writeString(h, seg)
	}
	writeString(h, in.ItemName)
	writeString(h, string(in.ItemKind))
	h.Write(in.ParentID[:])
	writeString(h, in.CfgHash)

	var id NodeId
	copy(id[:], h.Sum(nil)[:16])
	return id
}

// TypeIdInputs mirrors NodeIdInputs for referenced-type identity.
type TypeIdInputs struct {
	Namespace  string
	ModulePath []string
	TypeName   string
}

// NewTypeId derives a TypeId deterministically from its inputs.
func NewTypeId(in TypeIdInputs) TypeId {
	h := sha256.New()
	writeString(h, in.Namespace)
	for _, seg := range in.ModulePath {
		writeString(h, seg)
	}
	writeString(h, in.TypeName)

	var id TypeId
	copy(id[:], h.Sum(nil)[:16])
	return id
}

// NewTrackingHash derives a TrackingHash from a file's pre-extracted token
// stream under the given project namespace. Callers are responsible for
// stripping comments/whitespace before calling this (the parser component,
// out of RELE's scope, produces the token stream); RELE only hashes it.
func NewTrackingHash(namespace string, tokens []string) TrackingHash {
	h := sha256.New()
	writeString(h, namespace)
	for _, t := range tokens {
		writeString(h, t)
	}

	var th TrackingHash
	copy(th[:], h.Sum(nil)[:16])
	return th
}

// writeString hashes a length-prefixed string so that ("ab","c") and
// ("a","bc") never collide.
func writeString(h interface{ Write([]byte) (int, error) }, s string) {
	b := make([]byte, 4+len(s))
	n := len(s)
	b[0] = byte(n >> 24)
	b[1] = byte(n >> 16)
	b[2] = byte(n >> 8)
	b[3] = byte(n)
	copy(b[4:], s)
	_, _ = h.Write(b)
}
