// fiomap.go -- concurrency-safe maps shared by the composers
//
// (c) 2024- Sudhi Herle <sudhi@herle.net>
//
// Licensing Terms: GPLv2
//
// If you need a commercial license for this work, please contact
// the author.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package vfs

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// EntryMap is a concurrency safe map of path string to Entry with a
// "first observed wins" insert (see Set below). No composer in this
// module uses it: Aggregate and Mount de-duplicate enumerations with a
// plain per-call map.
type EntryMap = xsync.MapOf[string, Entry]

// NewEntryMap returns an empty EntryMap.
func NewEntryMap() *EntryMap {
	return xsync.NewMapOf[string, Entry]()
}

// Set stores e at key only if key is not already present - implementing
// the "first observed wins" de-dup rule. Returns true if e was stored.
func Set(m *EntryMap, key string, e Entry) bool {
	_, loaded := m.LoadOrStore(key, e)
	return !loaded
}
