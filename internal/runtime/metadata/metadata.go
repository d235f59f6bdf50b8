package metadata

import "time"

// Keys written onto every relayed event.
const (
	KeyEventName     = "hookflow_event"
	KeyStrategy      = "hookflow_strategy"
	KeyContentType   = "content_type"
	KeyCorrelationID = "correlation_id"
	// KeyOrigin identifies the notifier that already delivered the event locally.
	KeyOrigin = "hookflow_origin"

	// CloudEvents binary-mode attributes.
	KeySpecVersion = "ce_specversion"
	KeyType        = "ce_type"
	KeySource      = "ce_source"
	KeyID          = "ce_id"
	KeyTime        = "ce_time"
)

const specVersion = "1.0"

// Metadata represents the headers carried alongside an event.
type Metadata map[string]string

func (m Metadata) cloneWithExtra(extra int) Metadata {
	cloned := make(Metadata, len(m)+extra)
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a cloned metadata map containing the provided key/value pair.
// Empty values are skipped.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	if value != "" {
		cloned[key] = value
	}
	return cloned
}

// EventName is the namespaced event name the payload was published under.
func (m Metadata) EventName() string { return m[KeyEventName] }

// Strategy is the name of the strategy that produced the event, if any.
func (m Metadata) Strategy() string { return m[KeyStrategy] }

// ContentType reports how the payload bytes are encoded.
func (m Metadata) ContentType() string { return m[KeyContentType] }

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// ForEvent builds the standard header set for an outgoing event.
func ForEvent(id, name, source, contentType string, at time.Time) Metadata {
	md := New(
		KeyEventName, name,
		KeyContentType, contentType,
		KeySpecVersion, specVersion,
		KeyType, name,
		KeyID, id,
		KeyTime, at.UTC().Format(time.RFC3339Nano),
	)
	if source != "" {
		md[KeySource] = source
	}
	return md
}

// Time parses the CloudEvents time attribute, returning the zero time when absent.
func (m Metadata) Time() time.Time {
	at, err := time.Parse(time.RFC3339Nano, m[KeyTime])
	if err != nil {
		return time.Time{}
	}
	return at
}
