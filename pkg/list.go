package prolib

// ListRecord is the metadata of one library entry, or the reason it could not be read
type ListRecord struct {
	Entry    Entry
	Metadata *RoutineMetadata
	Err      error
}

// Degraded returns true when the entry metadata is unavailable
func (r ListRecord) Degraded() bool {
	return r.Metadata == nil
}

// List parses every entry in library order. A failing entry yields a degraded
// record and never stops the listing.
func List(a Archive, parser MetadataParser) []ListRecord {
	defer VerboseEnter()()

	entries := a.Entries()
	records := make([]ListRecord, 0, len(entries))
	for _, entry := range entries {
		meta, err := readMetadata(a, entry, parser)
		if err != nil {
			VerboseLog(2, "Cannot read metadata of %s: %v", entry.Name, err)
			records = append(records, ListRecord{Entry: entry, Err: err})
			continue
		}
		records = append(records, ListRecord{Entry: entry, Metadata: meta})
	}
	return records
}
