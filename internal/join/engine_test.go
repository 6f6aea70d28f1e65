package join

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filterx/internal/key"
	"github.com/roach88/filterx/internal/source"
	"github.com/roach88/filterx/internal/stream"
	"github.com/roach88/filterx/internal/testutil"
)

type streamDef struct {
	name    string
	content string
	mutate  func(*stream.Config)
}

func def(name, content string) streamDef {
	return streamDef{name: name, content: content}
}

func (d streamDef) with(fn func(*stream.Config)) streamDef {
	d.mutate = fn
	return d
}

func must(c *stream.Config)    { c.Existence = stream.ExistMust }
func mustNot(c *stream.Config) { c.Existence = stream.ExistMustNot }

func openStream(t *testing.T, keys string, d streamDef) *stream.Stream {
	t.Helper()
	specs, err := key.ParseSpecs(keys)
	require.NoError(t, err)
	cfg := stream.Config{
		Name:        d.name,
		Separator:   ',',
		Keys:        specs,
		Columns:     key.Columns(specs),
		Comment:     '#',
		Placeholder: '-',
		MinRows:     1,
		MaxRows:     stream.Unbounded,
		RowCap:      stream.Unbounded,
	}
	if d.mutate != nil {
		d.mutate(&cfg)
	}
	src, err := source.NewReader(d.name, io.NopCloser(strings.NewReader(d.content)))
	require.NoError(t, err)
	s, err := stream.New(src, cfg)
	require.NoError(t, err)
	return s
}

func newEngine(t *testing.T, keys string, opts Options, defs ...streamDef) (*Engine, *bytes.Buffer) {
	t.Helper()
	require.NotEmpty(t, defs)
	anchor := NewAnchor(openStream(t, keys, defs[0]))
	var secondaries []*stream.Stream
	for _, d := range defs[1:] {
		secondaries = append(secondaries, openStream(t, keys, d))
	}
	var out bytes.Buffer
	e, err := New(anchor, secondaries, &out, opts, WithRunIDGenerator(testutil.NewFixedRunIDGenerator("run-1")))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e, &out
}

func run(t *testing.T, keys string, opts Options, defs ...streamDef) (string, Stats) {
	t.Helper()
	e, out := newEngine(t, keys, opts, defs...)
	require.NoError(t, e.Run(context.Background()))
	return out.String(), e.Stats()
}

func countRange(lo, hi int) Options {
	o := DefaultOptions()
	o.MinCount, o.MaxCount = lo, hi
	return o
}

func TestAnchorOuterJoin(t *testing.T) {
	out, stats := run(t, "1i", countRange(1, 2),
		def("a", "1,a\n2,b\n3,c\n"),
		def("b", "1,x\n3,y\n4,z\n"),
	)

	assert.Equal(t, "1\t1\n2\t-\n3\t3\n", out)
	assert.Equal(t, 3, stats.GroupsEmitted)
	assert.Equal(t, 1, stats.AnchorOnly)
	assert.Equal(t, 3, stats.RowsWritten)
	assert.Equal(t, StopAnchorEOF, stats.Stop)
	assert.Equal(t, "run-1", stats.RunID)
	require.Len(t, stats.PerStream, 2)
	assert.Equal(t, "b", stats.PerStream[1].Name)
}

func TestSingleStreamIdentity(t *testing.T) {
	input := "1,a,x\n1,b,y\n2,c,z\n5,d,w\n5,e,v\n5,f,u\n"
	opts := countRange(1, 1)
	opts.MinFreq, opts.MaxFreq = 0, 1

	out, _ := run(t, "1i", opts, def("only", input).with(func(c *stream.Config) {
		c.Columns = []int{0, 1, 2}
	}))

	assert.Equal(t, strings.ReplaceAll(input, ",", "\t"), out)
}

func TestSecondaryOnlyKeysAreDropped(t *testing.T) {
	out, _ := run(t, "1i", DefaultOptions(),
		def("a", "2\n4\n"),
		def("b", "1\n2\n3\n4\n5\n"),
		def("c", "0\n4\n6\n"),
	)
	assert.Equal(t, "2\t2\t-\n4\t4\t4\n", out)
}

func TestColumnAlignedRowsAndCaps(t *testing.T) {
	a := def("a", "1,a\n1,b\n1,c\n").with(func(c *stream.Config) { c.Columns = []int{0, 1} })
	b := def("b", "1,x\n").with(func(c *stream.Config) { c.Columns = []int{1} })

	out, stats := run(t, "1i", DefaultOptions(), a, b)
	assert.Equal(t, "1\ta\tx\n1\tb\t-\n1\tc\t-\n", out)
	assert.Equal(t, 3, stats.RowsWritten)

	capped := a.with(func(c *stream.Config) {
		c.Columns = []int{0, 1}
		c.RowCap = 2
	})
	out, _ = run(t, "1i", DefaultOptions(), capped, b)
	assert.Equal(t, "1\ta\tx\n1\tb\t-\n", out)
}

func TestAbsentFieldUsesPlaceholder(t *testing.T) {
	a := def("a", "1\n2,,q\n").with(func(c *stream.Config) {
		c.Columns = []int{0, 1, 2}
		c.Placeholder = '.'
	})
	out, _ := run(t, "1i", DefaultOptions(), a)
	assert.Equal(t, "1\t.\t.\n2\t.\tq\n", out)
}

func TestStreamsWithoutColumnsAddNoRows(t *testing.T) {
	a := def("a", "1\n").with(func(c *stream.Config) { c.Columns = nil })
	b := def("b", "1\n").with(func(c *stream.Config) { c.Columns = []int{0} })

	out, _ := run(t, "1i", DefaultOptions(), a, b)
	assert.Equal(t, "1\n", out)

	b = b.with(func(c *stream.Config) { c.Columns = nil })
	out, stats := run(t, "1i", DefaultOptions(), a, b)
	assert.Equal(t, "", out, "no stream has output columns")
	assert.Equal(t, 1, stats.GroupsEmitted)
}

func TestRowsMode(t *testing.T) {
	a := def("a", "1,a,p\n1,b,q\n2,c,r\n").with(func(c *stream.Config) { c.Columns = []int{1} })
	b := def("b", "1,x\n").with(func(c *stream.Config) { c.Columns = []int{1} })
	opts := DefaultOptions()
	opts.Mode = ModeRows

	out, _ := run(t, "1i", opts, a, b)
	assert.Equal(t, "a\nb\nx\nc\n", out)

	opts.Full = true
	out, _ = run(t, "1i", opts, a, b)
	assert.Equal(t, "1\ta\tp\n1\tb\tq\n1\tx\n2\tc\tr\n", out)
}

func TestRowsModeSkipsStreamsWithoutColumns(t *testing.T) {
	a := def("a", "1,a\n").with(func(c *stream.Config) { c.Columns = nil })
	b := def("b", "1,x\n").with(func(c *stream.Config) { c.Columns = []int{1} })
	opts := DefaultOptions()
	opts.Mode = ModeRows
	opts.Separator = ','

	out, _ := run(t, "1i", opts, a, b)
	assert.Equal(t, "x\n", out)

	opts.Full = true
	out, _ = run(t, "1i", opts, a, b)
	assert.Equal(t, "1,a\n1,x\n", out)
}

func TestExistencePredicate(t *testing.T) {
	a := def("a", "1\n2\n3\n4\n")

	t.Run("must", func(t *testing.T) {
		b := def("b", "1\n3\n").with(must)
		out, stats := run(t, "1i", DefaultOptions(), a, b)
		assert.Equal(t, "1\t1\n3\t3\n", out)
		assert.Equal(t, 1, stats.RejectedExistence)
		// b runs dry after 3, so key 4 is never considered.
		assert.Equal(t, StopRequiredEOF, stats.Stop)
	})

	t.Run("must not", func(t *testing.T) {
		b := def("b", "1\n3\n5\n").with(mustNot)
		out, stats := run(t, "1i", DefaultOptions(), a, b)
		assert.Equal(t, "2\t-\n4\t-\n", out)
		assert.Equal(t, 2, stats.RejectedExistence)
		assert.Equal(t, StopAnchorEOF, stats.Stop)
	})
}

func TestRequiredEmptySecondaryStopsImmediately(t *testing.T) {
	out, stats := run(t, "1i", DefaultOptions(),
		def("a", "1\n2\n"),
		def("b", "#only a comment\n").with(must),
	)
	assert.Empty(t, out)
	assert.Equal(t, StopRequiredEOF, stats.Stop)
}

func TestCardinalityRange(t *testing.T) {
	defs := []streamDef{
		def("a", "1\n2\n3\n"),
		def("b", "1\n2\n"),
		def("c", "1\n"),
	}

	out, stats := run(t, "1i", countRange(2, 2), defs...)
	assert.Equal(t, "2\t2\t-\n", out)
	assert.Equal(t, 2, stats.RejectedCardinality)

	out, _ = run(t, "1i", countRange(3, stream.Unbounded), defs...)
	assert.Equal(t, "1\t1\t1\n", out)
}

func TestFrequencyBoundaryIsInclusive(t *testing.T) {
	defs := []streamDef{
		def("a", "1\n2\n"),
		def("b", "1\n"),
		def("c", "9\n"),
		def("d", "9\n"),
	}

	opts := DefaultOptions()
	opts.MinFreq = 0.5
	out, stats := run(t, "1i", opts, defs...)
	assert.Equal(t, "1\t1\t-\t-\n", out, "2/4 equals the lower bound")
	assert.Equal(t, 1, stats.RejectedFrequency, "1/4 is below it")

	opts = DefaultOptions()
	opts.MinFreq, opts.MaxFreq = 0.25, 0.25
	out, _ = run(t, "1i", opts, defs...)
	assert.Equal(t, "2\t-\t-\t-\n", out, "1/4 equals both bounds")

	three := []streamDef{def("a", "1\n"), def("b", "1\n"), def("c", "2\n")}
	opts = DefaultOptions()
	opts.MinFreq = 2.0 / 3.0
	out, _ = run(t, "1i", opts, three...)
	assert.Equal(t, "1\t1\t-\n", out)
}

func TestUnreachableMinCountEmitsNothing(t *testing.T) {
	out, stats := run(t, "1i", countRange(3, stream.Unbounded), def("a", "1\n"), def("b", "1\n"))
	assert.Empty(t, out)
	assert.Equal(t, StopUnreachable, stats.Stop)
}

func TestLimitStopsAfterGroups(t *testing.T) {
	opts := DefaultOptions()
	opts.Limit = 2
	out, stats := run(t, "1i", opts, def("a", "1\n1\n2\n3\n4\n"))
	assert.Equal(t, "1\n1\n2\n", out)
	assert.Equal(t, 2, stats.GroupsEmitted)
	assert.Equal(t, StopLimit, stats.Stop)
}

func TestDescendingCompositeKey(t *testing.T) {
	// Column 1 descending int, column 2 ascending string.
	a := def("a", "3,a\n3,b\n2,a\n1,z\n").with(func(c *stream.Config) { c.Columns = []int{0, 1} })
	b := def("b", "3,b\n2,0\n2,a\n1,a\n").with(func(c *stream.Config) { c.Columns = []int{1} })

	out, _ := run(t, "1I2s", DefaultOptions(), a, b)
	assert.Equal(t, "3\ta\t-\n3\tb\tb\n2\ta\ta\n1\tz\t-\n", out)
}

func TestTieGroupAcrossSecondaries(t *testing.T) {
	out, _ := run(t, "1f", DefaultOptions(),
		def("a", "1.5\n2\n"),
		def("b", "1.50\n2.0\n"),
		def("c", "0.5\n2e0\n"),
	)
	assert.Equal(t, "1.5\t1.50\t-\n2\t2.0\t2e0\n", out)
}

func TestConversionErrorMatchesByRawText(t *testing.T) {
	out, _ := run(t, "1i", DefaultOptions(),
		def("a", "1\nx\n"),
		def("b", "1\nx\n"),
	)
	assert.Equal(t, "1\t1\nx\tx\n", out)
}

func TestErroredSecondaryDoesNotBlockMerge(t *testing.T) {
	tests := []struct {
		name string
		defs []streamDef
		want string
	}{
		{
			name: "errored listed last",
			defs: []streamDef{def("a", "1\n2\n3\n"), def("good", "1\n2\n3\n"), def("bad", "x\n")},
			want: "1\t1\t-\n2\t2\t-\n3\t3\t-\n",
		},
		{
			name: "errored listed first",
			defs: []streamDef{def("a", "1\n2\n3\n"), def("bad", "x\n"), def("good", "1\n2\n3\n")},
			want: "1\t-\t1\n2\t-\t2\n3\t-\t3\n",
		},
		{
			name: "errored group ahead of a match",
			defs: []streamDef{def("a", "1\n2\n"), def("b", "x\n2\n")},
			want: "1\t-\n2\t2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, stats := run(t, "1i", DefaultOptions(), tt.defs...)
			assert.Equal(t, tt.want, out)
			assert.Equal(t, StopAnchorEOF, stats.Stop)
		})
	}
}

func TestErroredAnchorKeepsCleanSecondaryWaiting(t *testing.T) {
	out, _ := run(t, "1i", DefaultOptions(),
		def("a", "x\n1\n"),
		def("b", "1\n"),
	)
	assert.Equal(t, "x\t-\n1\t1\n", out)
}

func TestSkippedAnchorGroupsAreNotEmitted(t *testing.T) {
	a := def("a", "1,a\n2,a\n2,b\n3,a\n,b\n4,a\n").with(func(c *stream.Config) { c.MaxRows = 1 })
	out, stats := run(t, "1i", DefaultOptions(), a)
	assert.Equal(t, "1\n3\n4\n", out)
	assert.Equal(t, 1, stats.PerStream[0].SkippedCount)
	assert.Equal(t, 1, stats.PerStream[0].SkippedIncomplete)
}

func TestPrepareRejectsEmptyAnchor(t *testing.T) {
	e, out := newEngine(t, "1i", DefaultOptions(), def("a", "#c\n,\n"), def("b", "1\n"))

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAnchorEmpty)
	assert.True(t, source.IsInputError(err))
	assert.Empty(t, out.String())
}

func TestProcessBeforePrepare(t *testing.T) {
	e, _ := newEngine(t, "1i", DefaultOptions(), def("a", "1\n"))
	assert.ErrorIs(t, e.Process(context.Background()), ErrNotPrepared)
}

func TestProcessObservesCancellationAfterEmission(t *testing.T) {
	e, out := newEngine(t, "1i", DefaultOptions(), def("a", "1\n2\n3\n"))
	require.NoError(t, e.Prepare())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Process(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "1\n", out.String(), "the pending group is written and flushed")
	assert.Equal(t, StopCanceled, e.Stats().Stop)
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"negative min count", func(o *Options) { o.MinCount = -1 }},
		{"min above max", func(o *Options) { o.MinCount, o.MaxCount = 3, 2 }},
		{"freq above one", func(o *Options) { o.MaxFreq = 1.5 }},
		{"freq below zero", func(o *Options) { o.MinFreq = -0.1 }},
		{"min freq above max", func(o *Options) { o.MinFreq, o.MaxFreq = 0.8, 0.2 }},
		{"negative limit", func(o *Options) { o.Limit = -1 }},
		{"unknown mode", func(o *Options) { o.Mode = Mode(7) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mutate(&o)
			assert.ErrorIs(t, o.Validate(), ErrInvalidOptions)
		})
	}

	assert.NoError(t, DefaultOptions().Validate())
	_, err := New(nil, nil, &bytes.Buffer{}, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestUUIDv7GeneratorProducesDistinctIDs(t *testing.T) {
	var g UUIDv7Generator
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

// sortedInput builds n ascending integer keys with random gaps and
// duplicates, one row per line.
func sortedInput(rng *rand.Rand, n int) string {
	var sb strings.Builder
	k := 0
	for i := 0; i < n; i++ {
		k += rng.Intn(3)
		fmt.Fprintf(&sb, "%d,%d\n", k, i)
	}
	return sb.String()
}

func randomDefs(seed int64, streams int) []streamDef {
	rng := rand.New(rand.NewSource(seed))
	defs := make([]streamDef, streams)
	for i := range defs {
		defs[i] = def(fmt.Sprintf("s%d", i), sortedInput(rng, 40+rng.Intn(40)))
	}
	return defs
}

func TestPropertyMonotonicEmission(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		out, _ := run(t, "1i", DefaultOptions(), randomDefs(seed, 4)...)

		prev := -1
		for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
			k, err := strconv.Atoi(strings.Split(line, "\t")[0])
			require.NoError(t, err, "seed %d line %q", seed, line)
			require.GreaterOrEqual(t, k, prev, "seed %d", seed)
			prev = k
		}
	}
}

func TestPropertyExistence(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		defs := randomDefs(seed, 3)
		defs[1] = defs[1].with(must)
		defs[2] = defs[2].with(mustNot)

		out, _ := run(t, "1i", DefaultOptions(), defs...)
		for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
			if line == "" {
				continue
			}
			fields := strings.Split(line, "\t")
			require.Len(t, fields, 3)
			assert.NotEqual(t, "-", fields[1], "seed %d: must stream missing in %q", seed, line)
			assert.Equal(t, "-", fields[2], "seed %d: must-not stream present in %q", seed, line)
		}
	}
}

func TestPropertyIdempotent(t *testing.T) {
	defs := randomDefs(42, 5)
	first, _ := run(t, "1i", DefaultOptions(), defs...)
	second, _ := run(t, "1i", DefaultOptions(), defs...)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}
