package domainxor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starius/domainxor/psltrie"
	"github.com/starius/domainxor/shadowlist"
	"github.com/starius/domainxor/xorfilter"
)

// CompileInput lists everything a build consumes.
type CompileInput struct {
	Exact          []string
	Wildcard       []string
	PublicSuffixes []string

	Forced []ForcedList
	Sample []string

	// SkipWhitelist leaves the whitelist empty.
	SkipWhitelist bool
}

// Compiled is the result of Compile.
type Compiled struct {
	Artifacts Artifacts
	Engine    *Engine

	Exact     *xorfilter.Filter
	Wildcard  *xorfilter.Filter
	Trie      *psltrie.Trie
	Whitelist *shadowlist.List
	Rescue    *RescueReport

	FiltersTime   time.Duration
	WhitelistTime time.Duration
}

// Compile builds the exact filter, the wildcard filter and the trie in
// parallel, then the shadow whitelist. An empty exact or wildcard set
// produces a zero-length filter. Any failure aborts the whole build.
func Compile(ctx context.Context, in CompileInput) (*Compiled, error) {
	if len(in.PublicSuffixes) == 0 {
		return nil, ErrNoSuffixes
	}

	c := &Compiled{}
	t0 := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := buildFilter(gctx, in.Exact)
		if err != nil {
			return fmt.Errorf("exact filter: %w", err)
		}
		c.Exact = f
		return nil
	})
	g.Go(func() error {
		f, err := buildFilter(gctx, in.Wildcard)
		if err != nil {
			return fmt.Errorf("wildcard filter: %w", err)
		}
		c.Wildcard = f
		return nil
	})
	g.Go(func() error {
		t, err := psltrie.Build(in.PublicSuffixes)
		if err != nil {
			return fmt.Errorf("public suffix trie: %w", err)
		}
		c.Trie = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.FiltersTime = time.Since(t0)

	engine, err := New(Artifacts{
		ExactXOR:    c.Exact.Serialize(),
		WildcardXOR: c.Wildcard.Serialize(),
		PSLTrie:     c.Trie.Serialize(),
	})
	if err != nil {
		return nil, fmt.Errorf("load compiled artifacts: %w", err)
	}

	t1 := time.Now()
	c.Whitelist = shadowlist.Build(nil)
	c.Rescue = &RescueReport{}
	if !in.SkipWhitelist {
		c.Whitelist, c.Rescue, err = BuildWhitelist(ctx, engine, RescueInput{
			Exact:    in.Exact,
			Wildcard: in.Wildcard,
			Forced:   in.Forced,
			Sample:   in.Sample,
		})
		if err != nil {
			return nil, fmt.Errorf("shadow whitelist: %w", err)
		}
	}
	c.WhitelistTime = time.Since(t1)

	c.Engine = engine.WithWhitelist(c.Whitelist)
	c.Artifacts = c.Engine.Artifacts()

	if blocked := StillBlocked(c.Engine, in.Forced); len(blocked) != 0 {
		return nil, fmt.Errorf("%w: %v", ErrCriticalBlocked, blocked)
	}
	return c, nil
}

// buildFilter returns an empty filter for an empty set.
func buildFilter(ctx context.Context, items []string) (*xorfilter.Filter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return xorfilter.FromSerialized([]byte{})
	}
	return xorfilter.Build(items)
}
