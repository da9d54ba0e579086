// Package codec implements the binary wire format used to exchange payloads
// and snapshots with a remote store.
package codec

import "github.com/nasdf/docproxy/constraint"

const (
	kindNull    = byte(0)
	kindString  = byte(1)
	kindBytes   = byte(2)
	kindBool    = byte(3)
	kindInt64   = byte(4)
	kindFloat64 = byte(5)
	kindMap     = byte(6)
	kindList    = byte(7)

	kindDelete      = byte(20)
	kindArrayUnion  = byte(21)
	kindArrayRemove = byte(22)
	kindIncrement   = byte(23)

	kindSnapshot = byte(100)
)

// maxSize bounds the length prefix of strings, bytes, lists and maps.
const maxSize = 1 << 26

// maxPrealloc bounds the capacity reserved from a length prefix before any
// element has been read.
const maxPrealloc = 1024

// MaxDepth bounds the nesting of lists, maps, field operations and snapshots.
// It leaves room for the payload and snapshot envelopes around document values.
const MaxDepth = constraint.MaxNestingDepth + 4
