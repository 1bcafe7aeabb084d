package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinRef(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://lab.example.org/models/7.json", JoinRef("https://lab.example.org", "models/7.json"))
	assert.Equal(t, "https://lab.example.org/models/7.json", JoinRef("https://lab.example.org/", "/models/7.json"))
	assert.Equal(t, "https://lab.example.org/embeddable.html", JoinRef("https://lab.example.org", "/embeddable.html"))
}

func TestRelPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		ref  string
		want string
	}{
		{name: "plain", ref: "models/7.json", want: "models/7.json"},
		{name: "dot slash", ref: "./css/app.css", want: "css/app.css"},
		{name: "root absolute", ref: "/js/app.js", want: "js/app.js"},
		{name: "redundant segments", ref: "a/./b/c.json", want: "a/b/c.json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := RelPath(tc.ref)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRelPathRejectsEscapes(t *testing.T) {
	t.Parallel()

	for _, ref := range []string{"", "../etc/passwd", "a/../../x", "./.."} {
		_, err := RelPath(ref)
		assert.Error(t, err, "ref %q", ref)
	}
}

// TestSourceIDStable asserts re-runs of the same entry derive the same id
// while different configurations diverge.
func TestSourceIDStable(t *testing.T) {
	t.Parallel()

	a := SourceID("interactive-42", "models/7.json")
	b := SourceID("interactive-42", "models/7.json")
	c := SourceID("interactive-42", "models/8.json")

	require.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "interactive-42-"))
	assert.Len(t, strings.TrimPrefix(a, "interactive-42-"), 12)
}
