// Package prolib inspects OpenEdge procedure libraries (.pl files): it lists the
// r-code entries a library holds, extracts them to the filesystem and compares
// two libraries entry by entry.
//
// # Core API
//
// Libraries are read through the Archive interface; OpenLibrary is the
// memory-mapped implementation used by OpenArchive:
//
//	lib, err := prolib.OpenLibrary("app.pl")
//	if err != nil {
//		return err // *ArchiveOpenError
//	}
//	defer lib.Close()
//
// # Operations
//
// List the routine metadata of every entry:
//
//	records := prolib.List(lib, prolib.RCodeParser{})
//	prolib.WriteListing(os.Stdout, records, prolib.FormatHuman)
//
// Extract entries below a directory:
//
//	result, err := prolib.Extract(lib, prolib.ExtractOptions{Dir: "out"})
//
// Compare two libraries:
//
//	cmp := prolib.Compare(source, target, prolib.RCodeParser{})
//	prolib.WriteComparison(os.Stdout, cmp, false, prolib.FormatHuman)
//
// Per-entry failures never abort an operation: unreadable routines become
// degraded list records or Unreadable differences, and failed extractions are
// collected in ExtractResult.Failures.
//
// # Configuration
//
// Defaults come from an ini file (see LoadConfig and DefaultConfigPath).
// Debug output is enabled with:
//
//	prolib.SetDebugFlags("toc,rcode")
//	prolib.SetVerboseLevel(2)
package prolib
