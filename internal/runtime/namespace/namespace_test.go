package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCall(t *testing.T) {
	ns := New("github", ".")
	assert.Equal(t, "github.push", ns.Call("push"))
	assert.Equal(t, "github.", ns.Call(""))
	assert.Equal(t, "github.", ns.Root())
	assert.Equal(t, "github", ns.Prefix())
	assert.Equal(t, ".", ns.Delimiter())
}

func TestCustomAndDefaultDelimiter(t *testing.T) {
	assert.Equal(t, "stripe:charge", New("stripe", ":").Call("charge"))
	assert.Equal(t, "stripe.charge", New("stripe", "").Call("charge"))
}

func TestMatcherIsPrefixAnchored(t *testing.T) {
	m := New("github", ".").Matcher("push")

	assert.True(t, m.Match("github.push"))
	assert.True(t, m.Match("github.push_request"))
	assert.False(t, m.Match("other.github.push"))
	assert.False(t, m.Match("github.pull"))
	assert.Equal(t, "^github.push", m.String())
}

func TestMatcherWithEmptyNameMatchesWholeNamespace(t *testing.T) {
	m := New("github", ".").Matcher("")

	assert.True(t, m.Match("github.push"))
	assert.True(t, m.Match("github."))
	assert.False(t, m.Match("gitlab.push"))
}
