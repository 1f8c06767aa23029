package prolib

import (
	"strings"

	zcsl "github.com/mattkeenan/zerocopyskiplist"
)

// entrySkiplist is a name-keyed multiset of entries backed by zerocopyskiplist.
// The skiplist holds one entry per name; later entries with the same name wait
// in an overflow queue and move into the skiplist when the slot is taken.
type entrySkiplist struct {
	skiplist *zcsl.ZeroCopySkiplist[Entry, string, string]
	overflow map[string][]contextEntry
	length   int
}

type contextEntry struct {
	entry   Entry
	context string
}

// newEntrySkiplist creates an empty entry skiplist
func newEntrySkiplist(maxLevels int) *entrySkiplist {
	if maxLevels < 8 {
		maxLevels = 16 // reasonable default
	}

	getKeyFromItem := func(e *Entry) string {
		return e.Name
	}

	getItemSize := func(e *Entry) int {
		return int(e.Size)
	}

	cmpKey := func(a, b string) int {
		return strings.Compare(a, b)
	}

	return &entrySkiplist{
		skiplist: zcsl.MakeZeroCopySkiplist[Entry, string, string](
			maxLevels,
			getKeyFromItem,
			getItemSize,
			cmpKey,
		),
		overflow: make(map[string][]contextEntry),
	}
}

// Insert adds an entry. Duplicates are queued behind the entry already present.
func (sl *entrySkiplist) Insert(entry Entry, context string) {
	sl.length++
	if existing, _ := sl.skiplist.Find(entry.Name); existing != nil {
		sl.overflow[entry.Name] = append(sl.overflow[entry.Name], contextEntry{entry, context})
		return
	}
	sl.skiplist.Insert(&entry, context)
}

// Take removes and returns the first unconsumed entry with the given name
func (sl *entrySkiplist) Take(name string) (Entry, string, bool) {
	itemPtr, context := sl.skiplist.Find(name)
	if itemPtr == nil {
		return Entry{}, "", false
	}
	entry := *itemPtr.Item()
	sl.skiplist.Delete(name)
	sl.length--

	if queued := sl.overflow[name]; len(queued) > 0 {
		next := queued[0]
		if len(queued) == 1 {
			delete(sl.overflow, name)
		} else {
			sl.overflow[name] = queued[1:]
		}
		sl.skiplist.Insert(&next.entry, next.context)
	}
	return entry, context, true
}

// ForEach visits the remaining entries in name order, duplicates in insertion order
func (sl *entrySkiplist) ForEach(callback func(Entry, string) bool) {
	for current := sl.skiplist.First(); current != nil; current = current.Next() {
		entry := *current.Item()
		if !callback(entry, current.Context()) {
			return
		}
		for _, queued := range sl.overflow[entry.Name] {
			if !callback(queued.entry, queued.context) {
				return
			}
		}
	}
}

// Length returns the number of remaining entries, duplicates included
func (sl *entrySkiplist) Length() int {
	return sl.length
}

// IsEmpty returns true if every entry has been taken
func (sl *entrySkiplist) IsEmpty() bool {
	return sl.length == 0
}
