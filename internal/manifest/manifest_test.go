package manifest

import (
	"maps"
	"sync"
	"testing"

	"github.com/agentic-research/blocklink/internal/walker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlock struct{ name string }

func (b *fakeBlock) Exports() []string { return []string{b.name} }

func TestKey(t *testing.T) {
	assert.Equal(t, "acme/loaders/foo/bar.src", Key("acme", "loaders", "foo/bar.src"))
}

func TestSplitKey(t *testing.T) {
	cat, path, ok := SplitKey("acme", "acme/loaders/foo/bar.ts")
	require.True(t, ok)
	assert.Equal(t, "loaders", cat)
	assert.Equal(t, "foo/bar.ts", path)

	for _, bad := range []string{"other/loaders/a.ts", "acme/loaders", "acme//a.ts", "acme/loaders/"} {
		_, _, ok := SplitKey("acme", bad)
		assert.False(t, ok, bad)
	}
}

func TestLink_Pure(t *testing.T) {
	shared := map[string]Block{"ns/actions/x.ts": &fakeBlock{"x"}}
	m := Manifest{
		"loaders": {},
		"actions": shared,
	}
	sm := SourceMap{"ns/actions/x.ts": {Path: "actions/x.ts", Content: "X"}}
	mBefore := maps.Clone(m)
	smBefore := maps.Clone(sm)

	blk := &fakeBlock{"a"}
	nm, nsm := Linker{Namespace: "ns"}.Link("loaders", walker.SourceUnit{Path: "a.ts", Content: "A"}, blk, m, sm)

	// Inputs untouched.
	assert.Equal(t, mBefore, m)
	assert.Empty(t, m["loaders"])
	assert.Equal(t, smBefore, sm)

	// New binding present in both structures.
	assert.Same(t, blk, nm["loaders"]["ns/loaders/a.ts"])
	assert.Equal(t, SourceEntry{Path: "loaders/a.ts", Content: "A"}, nsm["ns/loaders/a.ts"])

	// Untouched category shared with the previous snapshot.
	nm["actions"]["probe"] = nil
	assert.Contains(t, shared, "probe")
}

func TestLink_NilInputs(t *testing.T) {
	nm, nsm := Linker{Namespace: "ns"}.Link("loaders", walker.SourceUnit{Path: "a.ts"}, &fakeBlock{"a"}, nil, nil)
	assert.Len(t, nm["loaders"], 1)
	assert.Len(t, nsm, 1)
}

func TestLink_OverwritesExistingKey(t *testing.T) {
	l := Linker{Namespace: "ns"}
	first, second := &fakeBlock{"1"}, &fakeBlock{"2"}
	m, sm := l.Link("loaders", walker.SourceUnit{Path: "a.ts", Content: "one"}, first, nil, nil)
	m, sm = l.Link("loaders", walker.SourceUnit{Path: "a.ts", Content: "two"}, second, m, sm)

	assert.Same(t, second, m["loaders"]["ns/loaders/a.ts"])
	assert.Equal(t, "two", sm["ns/loaders/a.ts"].Content)
	assert.Len(t, m["loaders"], 1)
}

func TestBuilder_MatchesLink(t *testing.T) {
	base := Manifest{"loaders": {"ns/loaders/static.ts": &fakeBlock{"s"}}}
	baseSources := SourceMap{"ns/loaders/static.ts": {Path: "loaders/static.ts", Content: "S"}}
	units := []struct {
		cat  string
		unit walker.SourceUnit
	}{
		{"loaders", walker.SourceUnit{Path: "a.ts", Content: "A"}},
		{"actions", walker.SourceUnit{Path: "b/c.tsx", Content: "C"}},
		{"loaders", walker.SourceUnit{Path: "d.ts", Content: "D"}},
	}
	blocks := []Block{&fakeBlock{"a"}, &fakeBlock{"c"}, &fakeBlock{"d"}}

	b := NewBuilder("ns", false, base, baseSources)
	l := Linker{Namespace: "ns"}
	m, sm := base, baseSources
	for i, u := range units {
		_, err := b.Add(u.cat, u.unit, blocks[i])
		require.NoError(t, err)
		m, sm = l.Link(u.cat, u.unit, blocks[i], m, sm)
	}
	gotM, gotSM := b.Result()
	assert.Equal(t, m, gotM)
	assert.Equal(t, sm, gotSM)

	// Bases untouched.
	assert.Len(t, base["loaders"], 1)
	assert.Len(t, baseSources, 1)
	assert.NotContains(t, base, "actions")
}

func TestBuilder_EnsureAddsEmptyCategory(t *testing.T) {
	base := Manifest{"loaders": {}}
	b := NewBuilder("ns", false, base, nil)
	b.Ensure("actions")
	b.Ensure("loaders")

	m, sm := b.Result()
	assert.Equal(t, Manifest{"loaders": {}, "actions": {}}, m)
	assert.Empty(t, sm)
	assert.NotContains(t, base, "actions")
}

func TestBuilder_CollisionLastWriterWins(t *testing.T) {
	b := NewBuilder("ns", false, nil, nil)
	first, second := &fakeBlock{"1"}, &fakeBlock{"2"}

	_, err := b.Add("loaders", walker.SourceUnit{Path: "a.ts", Content: "one"}, first)
	require.NoError(t, err)
	key, err := b.Add("loaders", walker.SourceUnit{Path: "a.ts", Content: "two"}, second)
	require.NoError(t, err)

	m, sm := b.Result()
	assert.Same(t, second, m["loaders"][key])
	assert.Equal(t, "two", sm[key].Content)
	assert.Equal(t, []Collision{{Key: "ns/loaders/a.ts", PreviousPath: "loaders/a.ts", Path: "loaders/a.ts"}}, b.Collisions())
}

func TestBuilder_BaseOverrideIsNotACollision(t *testing.T) {
	base := Manifest{"loaders": {"ns/loaders/a.ts": &fakeBlock{"static"}}}
	b := NewBuilder("ns", true, base, nil)

	_, err := b.Add("loaders", walker.SourceUnit{Path: "a.ts"}, &fakeBlock{"dynamic"})
	require.NoError(t, err)
	assert.Empty(t, b.Collisions())
	assert.Equal(t, []string{"static"}, base["loaders"]["ns/loaders/a.ts"].Exports())
}

func TestBuilder_StrictRejectsDuplicates(t *testing.T) {
	b := NewBuilder("ns", true, nil, nil)
	_, err := b.Add("loaders", walker.SourceUnit{Path: "a.ts"}, &fakeBlock{"1"})
	require.NoError(t, err)

	_, err = b.Add("loaders", walker.SourceUnit{Path: "a.ts"}, &fakeBlock{"2"})
	var dup *DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "ns/loaders/a.ts", dup.Key)
}

func TestManifest_KeysAndCategories(t *testing.T) {
	m := Manifest{
		"loaders": {"ns/loaders/b.ts": nil, "ns/loaders/a.ts": nil},
		"actions": {"ns/actions/c.ts": nil},
	}
	assert.Equal(t, []string{"ns/actions/c.ts", "ns/loaders/a.ts", "ns/loaders/b.ts"}, m.Keys())
	assert.Equal(t, []string{"actions", "loaders"}, m.Categories())
}

func TestRegistry_ResolveAndSwap(t *testing.T) {
	old := &fakeBlock{"old"}
	reg := NewRegistry("ns", Snapshot{
		Manifest:  Manifest{"loaders": {"ns/loaders/a.ts": old}},
		SourceMap: SourceMap{"ns/loaders/a.ts": {Path: "loaders/a.ts", Content: "old"}},
	})

	b, ok := reg.Resolve("ns/loaders/a.ts")
	require.True(t, ok)
	assert.Same(t, old, b)

	_, ok = reg.Resolve("other/loaders/a.ts")
	assert.False(t, ok)

	fresh := &fakeBlock{"new"}
	prev := reg.Swap(Snapshot{
		Manifest:  Manifest{"loaders": {"ns/loaders/a.ts": fresh}},
		SourceMap: SourceMap{"ns/loaders/a.ts": {Path: "loaders/a.ts", Content: "new"}},
	})
	assert.Same(t, old, prev.Manifest["loaders"]["ns/loaders/a.ts"])

	b, ok = reg.Resolve("ns/loaders/a.ts")
	require.True(t, ok)
	assert.Same(t, fresh, b)

	src, ok := reg.Source("ns/loaders/a.ts")
	require.True(t, ok)
	assert.Equal(t, "new", src.Content)
	assert.Equal(t, []string{"ns/loaders/a.ts"}, reg.Keys())
	assert.Equal(t, []string{"loaders"}, reg.Categories())
}

func TestRegistry_ConcurrentReaders(t *testing.T) {
	reg := NewRegistry("ns", Snapshot{Manifest: Manifest{}})
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if i%2 == 0 {
					reg.Swap(Snapshot{Manifest: Manifest{"c": {"ns/c/a.ts": &fakeBlock{"a"}}}})
				} else {
					reg.Resolve("ns/c/a.ts")
				}
			}
		}()
	}
	wg.Wait()
	_, ok := reg.Resolve("ns/c/a.ts")
	assert.True(t, ok)
}
