package record

import (
	"fmt"
	"sort"
	"time"

	"github.com/drblury/streamrelay/internal/runtime/jsoncodec"
)

// MetaKey is the reserved key holding the metadata block. Payload keys are
// upper-case identifiers, so the lower-case name cannot be produced by a
// well-formed payload; when serialized, the metadata block always wins.
const MetaKey = "meta_info"

// enqueuedTimeLayout matches the ISO-8601 millisecond form consumers already parse.
const enqueuedTimeLayout = "2006-01-02T15:04:05.000Z"

// Meta is the delivery and processing metadata attached to every record.
type Meta struct {
	SequenceNumber int64
	Offset         string
	EnqueuedTime   time.Time
	PartitionID    string
	Start          time.Time
	End            time.Time
}

// Elapsed is the processing time between Start and End, never negative.
func (m Meta) Elapsed() time.Duration {
	d := m.End.Sub(m.Start)
	if d < 0 {
		return 0
	}
	return d
}

type metaWire struct {
	SequenceNumber int64  `json:"sequenceNumber"`
	Offset         string `json:"offset"`
	EnqueuedTime   string `json:"enqueuedTime"`
	PartitionID    string `json:"partitionId"`
	Start          int64  `json:"start"`
	End            int64  `json:"end"`
	Difference     string `json:"difference"`
}

func (m Meta) wire() metaWire {
	var enqueued string
	if !m.EnqueuedTime.IsZero() {
		enqueued = m.EnqueuedTime.UTC().Format(enqueuedTimeLayout)
	}
	return metaWire{
		SequenceNumber: m.SequenceNumber,
		Offset:         m.Offset,
		EnqueuedTime:   enqueued,
		PartitionID:    m.PartitionID,
		Start:          m.Start.UnixMilli(),
		End:            m.End.UnixMilli(),
		Difference:     fmt.Sprintf("%d ms", m.Elapsed().Milliseconds()),
	}
}

// Record is one normalized event: every schema field plus any extra payload
// keys, and the metadata block.
type Record struct {
	Fields map[string]string
	Meta   Meta
}

// Get returns the value of a field and whether it is present.
func (r Record) Get(name string) (string, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// ExtraKeys returns the payload keys that are not part of the schema, sorted.
func (r Record) ExtraKeys() []string {
	var keys []string
	for k := range r.Fields {
		if !IsKnownField(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Map flattens the record into its wire shape: field values at the top level
// and the metadata block under MetaKey.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[k] = v
	}
	out[MetaKey] = r.Meta.wire()
	return out
}

// MarshalJSON encodes the record in its wire shape with sorted keys.
func (r Record) MarshalJSON() ([]byte, error) {
	return jsoncodec.Marshal(r.Map())
}
