package prolib

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Output formats
const (
	FormatHuman = "human"
	FormatJSON  = "json"
)

// Listing column layout: CRC, timestamp, digest, size, name
const (
	listHeaderFormat   = "%6s  %20s  %44s  %10s  %s\n"
	listRecordFormat   = "%6d  %20s  %44s  %10d  %s\n"
	listDegradedFormat = "%6s  %44s  %10d  %s\n"
)

type listRecordJSON struct {
	Name      string  `json:"name"`
	Size      int64   `json:"size"`
	CRC       *uint16 `json:"crc,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
	Digest    string  `json:"digest,omitempty"`
	Error     string  `json:"error,omitempty"`
}

type differenceJSON struct {
	Status string `json:"status"`
	Name   string `json:"name"`
	Error  string `json:"error,omitempty"`
}

// WriteListing renders list records in the given format
func WriteListing(w io.Writer, records []ListRecord, format string) error {
	if strings.ToLower(format) == FormatJSON {
		out := make([]listRecordJSON, 0, len(records))
		for _, r := range records {
			item := listRecordJSON{Name: r.Entry.Name, Size: r.Entry.Size}
			if r.Degraded() {
				if r.Err != nil {
					item.Error = r.Err.Error()
				}
			} else {
				crc := r.Metadata.CRC
				item.CRC = &crc
				item.Timestamp = r.Metadata.TimestampString()
				item.Digest = r.Metadata.Digest
			}
			out = append(out, item)
		}
		return writeJSON(w, out)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, listHeaderFormat, "CRC", "Timestamp", "Digest", "Size", "File name")
	for _, r := range records {
		if r.Degraded() {
			fmt.Fprintf(bw, listDegradedFormat, "-", "-", r.Entry.Size, r.Entry.Name)
			continue
		}
		fmt.Fprintf(bw, listRecordFormat, r.Metadata.CRC, r.Metadata.TimestampString(),
			r.Metadata.Digest, r.Entry.Size, r.Entry.Name)
	}
	return bw.Flush()
}

// WriteComparison renders one line per difference. Identical entries are only
// shown when showIdenticals is set.
func WriteComparison(w io.Writer, c *Comparison, showIdenticals bool, format string) error {
	if strings.ToLower(format) == FormatJSON {
		out := make([]differenceJSON, 0, len(c.Differences))
		for _, d := range c.Differences {
			if d.Outcome == Identical && !showIdenticals {
				continue
			}
			item := differenceJSON{Status: d.Outcome.String(), Name: d.Name}
			if d.Err != nil {
				item.Error = d.Err.Error()
			}
			out = append(out, item)
		}
		return writeJSON(w, out)
	}

	bw := bufio.NewWriter(w)
	for _, d := range c.Differences {
		if d.Outcome == Identical && !showIdenticals {
			continue
		}
		fmt.Fprintf(bw, "%s %s\n", d.Outcome.Code(), d.Name)
	}
	return bw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
