package wordsets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePattern(t *testing.T) {
	assert := assert.New(t)

	p, err := CompilePattern(`\b(hack\s+into)\b`)
	assert.NoError(err)
	assert.True(p.MatchString("trying to hack into the server"))
	assert.True(p.MatchString("HACK INTO it"))
	assert.False(p.MatchString("hackathon intro"))

	_, err = CompilePattern(`(.)\1{4,}`)
	assert.Error(err)
	assert.ErrorIs(err, ErrBadPattern)
}

func TestProviderDefaults(t *testing.T) {
	assert := assert.New(t)

	p := NewProvider("", nil)
	cur := p.Current()
	assert.Contains(cur.Words, "hack")
	assert.Contains(cur.Words, "kill yourself")
	assert.Equal(len(DefaultPatterns()), len(cur.Patterns))
}

func TestProviderReplace(t *testing.T) {
	assert := assert.New(t)

	p := NewProvider("", nil)
	before := p.Current()

	err := p.Replace([]string{"widget"}, []string{`\bwidgets?\b`})
	assert.NoError(err)
	after := p.Current()
	assert.NotSame(before, after)
	assert.Equal([]string{"widget"}, after.Words)
	assert.True(after.Patterns[0].MatchString("two widgets"))

	// a bad pattern leaves the previous snapshot in place
	err = p.Replace([]string{"x"}, []string{`(unclosed`})
	assert.Error(err)
	assert.Same(after, p.Current())
}

func TestProviderFileRoundTrip(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "denylist.json")

	// missing file seeds defaults on disk
	p := NewProvider(path, nil)
	_, err := os.Stat(path)
	require.NoError(t, err)

	err = p.Replace([]string{"only-this"}, nil)
	assert.NoError(err)

	reloaded := NewProvider(path, nil)
	assert.Equal([]string{"only-this"}, reloaded.Current().Words)
	assert.Empty(reloaded.Current().Patterns)
}

func TestProviderMalformedFile(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "denylist.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0664))

	// falls back to defaults without aborting
	p := NewProvider(path, nil)
	assert.Contains(p.Current().Words, "hack")
}
