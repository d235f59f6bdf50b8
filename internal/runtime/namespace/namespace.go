// Package namespace builds the event names a strategy publishes under.
package namespace

import "strings"

// DefaultDelimiter separates the strategy prefix from the event type.
const DefaultDelimiter = "."

// Namespace prefixes event types with a strategy name. The zero value has an
// empty prefix and delimiter.
type Namespace struct {
	prefix    string
	delimiter string
}

// New returns a namespace for prefix. An empty delimiter falls back to ".".
func New(prefix, delimiter string) Namespace {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	return Namespace{prefix: prefix, delimiter: delimiter}
}

func (n Namespace) Prefix() string    { return n.prefix }
func (n Namespace) Delimiter() string { return n.delimiter }

// Call returns the fully qualified event name, prefix + delimiter + name.
func (n Namespace) Call(name string) string {
	return n.prefix + n.delimiter + name
}

// Root is the prefix followed by the delimiter; every event of this namespace starts with it.
func (n Namespace) Root() string {
	return n.Call("")
}

// Matcher matches event names that start with Call(name).
func (n Namespace) Matcher(name string) Matcher {
	return Matcher{prefix: n.Call(name)}
}

// Matcher is an anchored prefix match on event names.
type Matcher struct {
	prefix string
}

// Match reports whether event starts with the matcher prefix.
func (m Matcher) Match(event string) bool {
	return strings.HasPrefix(event, m.prefix)
}

func (m Matcher) String() string {
	return "^" + m.prefix
}
