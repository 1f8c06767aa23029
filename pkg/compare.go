package prolib

import (
	"errors"
	"fmt"
)

// Outcome classifies one entry name of a library comparison
type Outcome int

const (
	Added Outcome = iota
	Removed
	Modified
	Identical
	Unreadable
)

// Code returns the single-letter report code of the outcome
func (o Outcome) Code() string {
	switch o {
	case Added:
		return "A"
	case Removed:
		return "R"
	case Modified:
		return "M"
	case Identical:
		return "I"
	case Unreadable:
		return "-"
	default:
		return "?"
	}
}

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	case Identical:
		return "identical"
	case Unreadable:
		return "unreadable"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Difference is the outcome assigned to one entry name
type Difference struct {
	Outcome Outcome
	Name    string
	Err     error // parse failure behind an Unreadable outcome
}

// Comparison is the result of comparing a source library with a target library
type Comparison struct {
	Source      string
	Target      string
	Differences []Difference
}

// Counts returns the number of differences per outcome
func (c *Comparison) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, d := range c.Differences {
		counts[d.Outcome]++
	}
	return counts
}

// HasChanges returns true if any entry was added, removed, modified or unreadable
func (c *Comparison) HasChanges() bool {
	for _, d := range c.Differences {
		if d.Outcome != Identical {
			return true
		}
	}
	return false
}

// Compare classifies every entry name of source and target.
//
// Source entries are visited in name order: a name missing from target is Added,
// a matched pair is Unreadable when either side fails to parse, Identical when CRC
// and digest agree, Modified otherwise. Each target entry is consumed by at most
// one match, the first unconsumed one for duplicate names. Target entries left
// over are Removed, in name order, after all source driven outcomes.
func Compare(source, target Archive, parser MetadataParser) *Comparison {
	defer VerboseEnter()()

	result := &Comparison{
		Source: source.Path(),
		Target: target.Path(),
	}

	// The skiplist context is the library the entry came from
	remaining := newEntrySkiplist(16)
	for _, entry := range SortEntries(target.Entries()) {
		remaining.Insert(entry, target.Path())
	}

	for _, entry := range SortEntries(source.Entries()) {
		match, owner, found := remaining.Take(entry.Name)
		if !found {
			result.Differences = append(result.Differences, Difference{Outcome: Added, Name: entry.Name})
			continue
		}
		VerboseLog(3, "Matched %s with %s in %s", entry.Name, match.Name, owner)
		result.Differences = append(result.Differences, compareEntry(source, entry, target, match, parser))
	}

	if !remaining.IsEmpty() {
		VerboseLog(2, "%d entries left unmatched in %s", remaining.Length(), target.Path())
	}
	remaining.ForEach(func(entry Entry, owner string) bool {
		VerboseLog(2, "%s only in %s", entry.Name, owner)
		result.Differences = append(result.Differences, Difference{Outcome: Removed, Name: entry.Name})
		return true
	})

	VerboseLog(2, "Compared %s with %s: %d differences", result.Source, result.Target, len(result.Differences))
	return result
}

// compareEntry decides the outcome of a matched pair
func compareEntry(source Archive, sourceEntry Entry, target Archive, targetEntry Entry, parser MetadataParser) Difference {
	sourceMeta, sourceErr := readMetadata(source, sourceEntry, parser)
	targetMeta, targetErr := readMetadata(target, targetEntry, parser)

	if err := errors.Join(sourceErr, targetErr); err != nil {
		VerboseLog(2, "Unreadable entry %s: %v", sourceEntry.Name, err)
		return Difference{Outcome: Unreadable, Name: sourceEntry.Name, Err: err}
	}
	if sourceMeta.Equivalent(targetMeta) {
		return Difference{Outcome: Identical, Name: sourceEntry.Name}
	}
	return Difference{Outcome: Modified, Name: sourceEntry.Name}
}
