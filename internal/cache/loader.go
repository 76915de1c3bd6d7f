package cache

import (
	"fmt"
	"os"
	"sync/atomic"

	"diagaudit/internal/records"
)

// Loader is a records.Loader that consults a DiskCache before decoding.
// Cache read and write failures fall back to decoding; decode errors are never
// cached.
type Loader struct {
	cache  *DiskCache
	hits   atomic.Int64
	misses atomic.Int64
}

var _ records.Loader = (*Loader)(nil)

// NewLoader wraps c.
func NewLoader(c *DiskCache) *Loader {
	return &Loader{cache: c}
}

// Stats returns the hit and miss counters.
func (l *Loader) Stats() (hits, misses int64) {
	return l.hits.Load(), l.misses.Load()
}

// Records implements records.Loader.
func (l *Loader) Records(path string) ([]records.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	key := Key(kindRecords, data)
	if p, ok, err := l.cache.Get(key); err == nil && ok && p.Kind == kindRecords {
		l.hits.Add(1)
		out := make([]records.Record, len(p.Records))
		for i, r := range p.Records {
			out[i] = r
		}
		return out, nil
	}
	l.misses.Add(1)
	recs, err := records.DecodeRecords(path, data)
	if err != nil {
		return nil, err
	}
	payload := &Payload{Schema: schemaVersion, Kind: kindRecords, Records: make([]map[string]any, len(recs))}
	for i, r := range recs {
		payload.Records[i] = r
	}
	_ = l.cache.Put(key, payload)
	return recs, nil
}

// Collection implements records.Loader.
func (l *Loader) Collection(path string) (*records.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	key := Key(kindDocument, data)
	if p, ok, err := l.cache.Get(key); err == nil && ok && p.Kind == kindDocument {
		l.hits.Add(1)
		return records.CollectionFrom(path, p.Doc)
	}
	l.misses.Add(1)
	doc, err := records.DecodeDocument(path, data)
	if err != nil {
		return nil, err
	}
	_ = l.cache.Put(key, &Payload{Schema: schemaVersion, Kind: kindDocument, Doc: doc})
	return records.CollectionFrom(path, doc)
}
