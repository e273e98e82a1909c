package build

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentic-research/blocklink/api"
	"github.com/agentic-research/blocklink/internal/ctxlog"
	"github.com/agentic-research/blocklink/internal/manifest"
	"github.com/agentic-research/blocklink/internal/toolchain"
	"github.com/agentic-research/blocklink/internal/vtree"
	"github.com/agentic-research/blocklink/internal/walker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlock struct {
	path    string
	content string
}

func (b *fakeBlock) Exports() []string { return []string{"default"} }

// fakeCompiler records the order units arrive in and fails on request.
type fakeCompiler struct {
	mu     sync.Mutex
	seen   []string
	failOn string
	onCall func()
}

func (c *fakeCompiler) Compile(_ context.Context, u walker.SourceUnit) (manifest.Block, error) {
	c.mu.Lock()
	c.seen = append(c.seen, u.Path)
	c.mu.Unlock()
	if c.onCall != nil {
		c.onCall()
	}
	if u.Path == c.failOn {
		return nil, &toolchain.CompileError{Path: u.Path, Message: "syntax error"}
	}
	return &fakeBlock{path: u.Path, content: u.Content}, nil
}

// quietCtx keeps pass logs out of test output.
func quietCtx() context.Context {
	return ctxlog.WithLogger(context.Background(), ctxlog.Discard())
}

func TestBuild_EndToEndScenario(t *testing.T) {
	state := api.State{FileSystem: []api.Node{
		api.Dir("loaders", api.File("a.ts", "export default 1")),
		api.Dir("actions", api.File("b.txt", "ignored")),
	}}
	base := manifest.Manifest{"loaders": {}}

	res, err := New(&fakeCompiler{}, Config{Namespace: "ns"}).Build(quietCtx(), state, base, nil)
	require.NoError(t, err)

	require.Len(t, res.Manifest, 2)
	assert.Empty(t, res.Manifest["actions"])
	require.Len(t, res.Manifest["loaders"], 1)
	blk := res.Manifest["loaders"]["ns/loaders/a.ts"]
	require.NotNil(t, blk)
	assert.Equal(t, "loaders/a.ts", blk.(*fakeBlock).path)

	assert.Equal(t, manifest.SourceMap{
		"ns/loaders/a.ts": {Path: "loaders/a.ts", Content: "export default 1"},
	}, res.SourceMap)

	// The base manifest is untouched.
	assert.Equal(t, manifest.Manifest{"loaders": {}}, base)

	// State is the flattened input.
	data, err := json.Marshal(res.State)
	require.NoError(t, err)
	assert.Equal(t, `{"loaders":{"a.ts":"export default 1"},"actions":{"b.txt":"ignored"}}`, string(data))
}

func TestBuild_KeyConstruction(t *testing.T) {
	state := api.State{FileSystem: []api.Node{
		api.Dir("loaders", api.Dir("foo", api.File("bar.ts", "x"))),
	}}
	res, err := New(&fakeCompiler{}, Config{Namespace: "acme"}).Build(quietCtx(), state, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/loaders/foo/bar.ts"}, res.Manifest.Keys())
	assert.Equal(t, "loaders/foo/bar.ts", res.SourceMap["acme/loaders/foo/bar.ts"].Path)
}

func TestBuild_OrderIsCategoryThenDepthFirst(t *testing.T) {
	state := api.State{FileSystem: []api.Node{
		api.Dir("sections",
			api.File("z.tsx", ""),
			api.Dir("nested", api.File("b.ts", ""), api.File("a.ts", "")),
			api.File("notes.md", ""),
		),
		api.File("README.ts", "top-level file"),
		api.Dir("actions", api.File("c.ts", "")),
	}}
	c := &fakeCompiler{}
	_, err := New(c, Config{}).Build(quietCtx(), state, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"sections/z.tsx",
		"sections/nested/b.ts",
		"sections/nested/a.ts",
		"actions/c.ts",
	}, c.seen)
}

func TestBuild_Deterministic(t *testing.T) {
	state := api.State{FileSystem: []api.Node{
		api.Dir("loaders", api.File("a.ts", "A"), api.Dir("d", api.File("b.tsx", "B"))),
		api.Dir("actions", api.File("c.ts", "C"), api.File("x.json", "{}")),
	}}
	o := New(&fakeCompiler{}, Config{})

	r1, err := o.Build(quietCtx(), state, nil, nil)
	require.NoError(t, err)
	r2, err := o.Build(quietCtx(), state, nil, nil)
	require.NoError(t, err)

	j1, err := json.Marshal(r1.SourceMap)
	require.NoError(t, err)
	j2, err := json.Marshal(r2.SourceMap)
	require.NoError(t, err)
	assert.Equal(t, string(j1), string(j2))
	assert.Equal(t, r1.Manifest.Keys(), r2.Manifest.Keys())
	assert.True(t, r1.State.Equal(r2.State))
}

func TestBuild_ExtensionFiltering(t *testing.T) {
	state := api.State{FileSystem: []api.Node{
		api.Dir("loaders",
			api.File("x.md", "md"),
			api.File("x.json", "{}"),
			api.Dir("deep", api.Dir("deeper", api.File("x.md", "md"), api.File("x.json", "{}"), api.File("x.ts", "ts"))),
		),
	}}
	res, err := New(&fakeCompiler{}, Config{}).Build(quietCtx(), state, nil, nil)
	require.NoError(t, err)

	for key := range res.SourceMap {
		assert.False(t, strings.HasSuffix(key, ".md") || strings.HasSuffix(key, ".json"), key)
	}
	assert.Contains(t, res.SourceMap, "site/loaders/deep/deeper/x.ts")
	assert.Len(t, res.SourceMap, 1)
}

func TestBuild_CollisionLaterWins(t *testing.T) {
	// Two top-level entries with the same category name resolve to the same keys.
	state := api.State{FileSystem: []api.Node{
		api.Dir("loaders", api.File("a.ts", "first")),
		api.Dir("actions", api.File("b.ts", "b")),
		api.Dir("loaders", api.File("a.ts", "second")),
	}}
	res, err := New(&fakeCompiler{}, Config{Namespace: "ns"}).Build(quietCtx(), state, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "second", res.SourceMap["ns/loaders/a.ts"].Content)
	assert.Equal(t, "second", res.Manifest["loaders"]["ns/loaders/a.ts"].(*fakeBlock).content)
	assert.Equal(t, []string{"loaders"}, res.Shadowed)
}

func TestBuild_StrictRejectsRepeatedEntries(t *testing.T) {
	state := api.State{FileSystem: []api.Node{
		api.Dir("loaders", api.File("a.ts", "first"), api.File("a.ts", "second")),
	}}
	c := &fakeCompiler{}
	res, err := New(c, Config{Strict: true}).Build(quietCtx(), state, nil, nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, vtree.ErrDuplicateEntry)
	assert.Contains(t, err.Error(), "loaders/a.ts")
	assert.Empty(t, c.seen)
}

func TestBuild_BaseOverrideIsNotACollision(t *testing.T) {
	state := api.State{FileSystem: []api.Node{
		api.Dir("loaders", api.Dir("a", api.File("b.ts", "nested"))),
	}}
	base := manifest.Manifest{"loaders": {"ns/loaders/a/b.ts": &fakeBlock{content: "static"}}}
	res, err := New(&fakeCompiler{}, Config{Namespace: "ns", Strict: true}).Build(quietCtx(), state, base, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Collisions)
	assert.Empty(t, res.Shadowed)
	assert.Equal(t, "nested", res.Manifest["loaders"]["ns/loaders/a/b.ts"].(*fakeBlock).content)
	assert.Equal(t, "static", base["loaders"]["ns/loaders/a/b.ts"].(*fakeBlock).content)
}

func TestBuild_AtomicOnFailure(t *testing.T) {
	state := api.State{FileSystem: []api.Node{
		api.Dir("loaders",
			api.File("1.ts", "1"),
			api.File("2.ts", "2"),
			api.File("3.ts", "3"),
			api.File("4.ts", "4"),
			api.File("5.ts", "5"),
		),
	}}
	base := manifest.Manifest{"loaders": {"site/loaders/static.ts": &fakeBlock{content: "static"}}}
	baseSources := manifest.SourceMap{"site/loaders/static.ts": {Path: "loaders/static.ts", Content: "static"}}
	baseCopy := manifest.Manifest{"loaders": maps.Clone(base["loaders"])}
	sourcesCopy := maps.Clone(baseSources)

	c := &fakeCompiler{failOn: "loaders/3.ts"}
	res, err := New(c, Config{}).Build(quietCtx(), state, base, baseSources)

	assert.Nil(t, res)
	var ce *toolchain.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "loaders/3.ts", ce.Path)
	assert.Equal(t, []string{"loaders/1.ts", "loaders/2.ts", "loaders/3.ts"}, c.seen)

	assert.Equal(t, baseCopy, base)
	assert.Equal(t, sourcesCopy, baseSources)
}

func TestBuild_ErrorSurfacedVerbatim(t *testing.T) {
	want := &toolchain.LoadError{Path: "loaders/a.ts", Err: errors.New("boom")}
	c := compilerFunc(func(context.Context, walker.SourceUnit) (manifest.Block, error) { return nil, want })
	state := api.State{FileSystem: []api.Node{api.Dir("loaders", api.File("a.ts", ""))}}

	_, err := New(c, Config{}).Build(quietCtx(), state, nil, nil)
	assert.Same(t, want, err)
}

func TestBuild_RoundTripContent(t *testing.T) {
	content := "export const s = \"tabs\\t and unicode ✓\";\r\n// trailing spaces   \n"
	state := api.State{FileSystem: []api.Node{api.Dir("loaders", api.File("s.ts", content))}}
	res, err := New(&fakeCompiler{}, Config{}).Build(quietCtx(), state, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, content, res.SourceMap["site/loaders/s.ts"].Content)
}

func TestBuild_InvalidState(t *testing.T) {
	state := api.State{FileSystem: []api.Node{
		{Name: "loaders", Kind: api.KindFile, Children: []api.Node{api.File("a.ts", "")}},
	}}
	_, err := New(&fakeCompiler{}, Config{}).Build(quietCtx(), state, nil, nil)
	assert.ErrorIs(t, err, api.ErrInvalidNode)
}

func TestBuild_RejectsNamesThatBreakKeys(t *testing.T) {
	for _, nodes := range [][]api.Node{
		// Both would map to ns/a/b/c.ts.
		{api.Dir("a/b", api.File("c.ts", "1")), api.Dir("a", api.Dir("b", api.File("c.ts", "2")))},
		{api.Dir("shop/loaders", api.File("a.ts", ""))},
		{api.Dir("loaders", api.Dir("x/", api.File("b.ts", "")))},
		{api.Dir("loaders", api.Dir("..", api.File("b.ts", "")))},
	} {
		c := &fakeCompiler{}
		res, err := New(c, Config{Namespace: "ns"}).Build(quietCtx(), api.State{FileSystem: nodes}, nil, nil)
		assert.ErrorIs(t, err, api.ErrInvalidNode)
		assert.Nil(t, res)
		assert.Empty(t, c.seen)
	}
}

func TestBuild_ShadowedSkipsDroppedSubtrees(t *testing.T) {
	state := api.State{FileSystem: []api.Node{
		api.Dir("loaders", api.File("a.ts", "1"), api.File("a.ts", "2")),
		api.Dir("loaders", api.File("b.ts", "3")),
	}}
	res, err := New(&fakeCompiler{}, Config{Namespace: "ns"}).Build(quietCtx(), state, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"loaders"}, res.Shadowed)
	assert.Equal(t, []string{"ns/loaders/b.ts"}, res.Manifest.Keys())
}

func TestBuild_CancelledBetweenUnits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &fakeCompiler{}
	c.onCall = func() {
		if len(c.seen) == 2 {
			cancel()
		}
	}
	state := api.State{FileSystem: []api.Node{
		api.Dir("loaders", api.File("1.ts", ""), api.File("2.ts", ""), api.File("3.ts", "")),
	}}

	res, err := New(c, Config{}).Build(ctx, state, nil, nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"loaders/1.ts", "loaders/2.ts"}, c.seen)
}

func TestBuild_SingletonInitAcrossConcurrentPasses(t *testing.T) {
	var inits atomic.Int32
	release := make(chan struct{})
	cell := toolchain.NewCell(func(context.Context) (toolchain.Engine, error) {
		inits.Add(1)
		<-release
		return engineFunc(func(_ context.Context, path, src string) (manifest.Block, error) {
			return &fakeBlock{path: path, content: src}, nil
		}), nil
	})
	o := New(toolchain.NewCompiler(cell), Config{})
	state := api.State{FileSystem: []api.Node{api.Dir("loaders", api.File("a.ts", "A"), api.File("b.ts", "B"))}}

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = o.Build(quietCtx(), state, nil, nil)
		}()
	}

	require.Eventually(t, func() bool { return cell.State() == toolchain.Initializing }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), inits.Load())
	for i := range 2 {
		require.NoError(t, errs[i])
		assert.Len(t, results[i].Manifest["loaders"], 2)
	}
}

func TestBuild_InitializationErrorAbortsPass(t *testing.T) {
	cell := toolchain.NewCell(func(context.Context) (toolchain.Engine, error) {
		return nil, errors.New("no toolchain")
	})
	state := api.State{FileSystem: []api.Node{api.Dir("loaders", api.File("a.ts", "A"))}}

	res, err := New(toolchain.NewCompiler(cell), Config{}).Build(quietCtx(), state, nil, nil)
	assert.Nil(t, res)
	var ie *toolchain.InitializationError
	require.ErrorAs(t, err, &ie)
}

func TestBuild_RealToolchain(t *testing.T) {
	state := api.State{FileSystem: []api.Node{
		api.Dir("loaders", api.File("price.ts", `export default function price(n: number): string { return "$" + n.toFixed(2); }`)),
		api.Dir("sections", api.File("Hero.tsx", `export default (p: { title: string }) => <h1>{p.title}</h1>;`)),
		api.Dir("docs", api.File("README.md", "# docs")),
	}}
	res, err := New(toolchain.NewCompiler(toolchain.Shared()), Config{Namespace: "shop"}).Build(quietCtx(), state, manifest.Manifest{}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"shop/loaders/price.ts", "shop/sections/Hero.tsx"}, res.Manifest.Keys())
	assert.Empty(t, res.Manifest["docs"])

	mod, ok := res.Manifest["loaders"]["shop/loaders/price.ts"].(*toolchain.Module)
	require.True(t, ok)
	out, err := mod.Call(context.Background(), "default", 3)
	require.NoError(t, err)
	assert.Equal(t, "$3.00", out)

	reg := manifest.NewRegistry("shop", manifest.Snapshot{})
	reg.Swap(res.Snapshot())
	blk, ok := reg.Resolve("shop/sections/Hero.tsx")
	require.True(t, ok)
	assert.Equal(t, []string{"default"}, blk.Exports())
}

func TestBuild_RealToolchainFailureLeavesRegistry(t *testing.T) {
	o := New(toolchain.NewCompiler(toolchain.Shared()), Config{Namespace: "shop"})
	good := api.State{FileSystem: []api.Node{api.Dir("loaders", api.File("a.ts", "export const a = 1;"))}}
	bad := api.State{FileSystem: []api.Node{api.Dir("loaders",
		api.File("a.ts", "export const a = 2;"),
		api.File("b.ts", "export const = ;"),
	)}}

	res, err := o.Build(quietCtx(), good, nil, nil)
	require.NoError(t, err)
	reg := manifest.NewRegistry("shop", res.Snapshot())

	res, err = o.Build(quietCtx(), bad, reg.Current().Manifest, reg.Current().SourceMap)
	require.Error(t, err)
	assert.Nil(t, res)

	src, ok := reg.Source("shop/loaders/a.ts")
	require.True(t, ok)
	assert.Equal(t, "export const a = 1;", src.Content)
}

type compilerFunc func(context.Context, walker.SourceUnit) (manifest.Block, error)

func (f compilerFunc) Compile(ctx context.Context, u walker.SourceUnit) (manifest.Block, error) {
	return f(ctx, u)
}

type engineFunc func(ctx context.Context, path, src string) (manifest.Block, error)

func (f engineFunc) Load(ctx context.Context, path, src string) (manifest.Block, error) {
	return f(ctx, path, src)
}
