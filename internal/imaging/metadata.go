package imaging

import (
	"bytes"
	"os"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/pwalhed/photodex/internal/catalog"
)

// MetadataSourceEXIF is the tag namespace for EXIF-derived entries.
const MetadataSourceEXIF = "exif"

// ExtractMetadata pulls EXIF tags from the source file as key/value/source
// triples. Unreadable or absent metadata yields zero entries, never an
// error: metadata is best-effort, ingestion does not depend on it.
func ExtractMetadata(path string) []catalog.MetadataEntry {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil
	}

	collector := &tagCollector{}
	// Walk only fails if the walker returns an error; ours never does.
	_ = x.Walk(collector)
	return collector.entries
}

// tagCollector accumulates walked EXIF fields.
type tagCollector struct {
	entries []catalog.MetadataEntry
}

func (c *tagCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	value := strings.Trim(tag.String(), `"`)
	if value == "" {
		return nil
	}
	c.entries = append(c.entries, catalog.MetadataEntry{
		Key:    string(name),
		Value:  value,
		Source: MetadataSourceEXIF,
	})
	return nil
}
