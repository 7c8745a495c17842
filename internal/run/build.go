package run

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/specialistvlad/gomake/internal/ctxlog"
	"github.com/specialistvlad/gomake/internal/expand"
	"github.com/specialistvlad/gomake/internal/rules"
	"github.com/specialistvlad/gomake/internal/vars"
)

// buildTarget memoizes per-target builds: the first caller installs a
// future and does the work; every later caller shares it. Check-or-insert
// happens under the runner mutex so two requests can never both build.
// path holds the requesting chain of ancestors, for cycle detection.
func (r *Runner) buildTarget(ctx context.Context, target string, px *expand.Expander, path map[string]bool) *future {
	r.mu.Lock()
	if f, ok := r.visited[target]; ok {
		r.mu.Unlock()
		return f
	}
	f := &future{done: make(chan struct{})}
	r.visited[target] = f
	r.mu.Unlock()

	go func() {
		defer close(f.done)
		if r.stopped.Load() || ctx.Err() != nil {
			f.err = errRunStopped
			return
		}
		f.ran, f.err = r.build(ctx, target, px, f, path)
		if f.err != nil && !r.opts.KeepGoing {
			r.stop()
		}
	}()
	return f
}

// build resolves and performs one target.
func (r *Runner) build(ctx context.Context, target string, px *expand.Expander, f *future, path map[string]bool) (bool, error) {
	logger := ctxlog.FromContext(ctx)

	xv := px
	if scope := r.table.ScopeFor(target); scope != nil {
		xv = px.With(scope)
	}

	list := r.resolver.Resolve(ctx, target)
	if len(list) == 0 {
		if r.timestamp(r.resolvePath(target)) != 0 {
			return false, nil
		}
		return false, &BuildError{Target: target, Err: fmt.Errorf("no rule to make target")}
	}

	// Grouped rules share one outcome. The first member to resolve claims
	// the group under a canonical key; every other member awaits it.
	if len(list) == 1 && list[0].Grouped && len(list[0].Targets) > 1 {
		key := strings.Join(list[0].Targets, "\x00")
		r.mu.Lock()
		leader, claimed := r.groups[key]
		if !claimed {
			r.groups[key] = f
			for _, m := range list[0].Targets {
				if _, ok := r.visited[m]; !ok {
					r.visited[m] = f
				}
			}
		}
		r.mu.Unlock()
		if claimed && leader != f {
			logger.Debug("Awaiting group leader.", "target", target)
			<-leader.done
			return leader.ran, leader.err
		}
	}

	childPath := make(map[string]bool, len(path)+1)
	for k := range path {
		childPath[k] = true
	}
	childPath[target] = true

	ranAny := false
	for _, rule := range list {
		logger.Debug("Building target.", "target", target, "stem", rule.Stem, "doubleColon", rule.DoubleColon)
		ran, err := r.buildOne(ctx, xv, target, rule, childPath)
		ranAny = ranAny || ran
		if err != nil {
			return ranAny, err
		}
	}
	return ranAny, nil
}

// buildOne handles a single rule for target: second expansion, vpath
// resolution, prerequisite scheduling, the rebuild decision and the
// recipe.
func (r *Runner) buildOne(ctx context.Context, xv *expand.Expander, target string, rule *rules.Rule, path map[string]bool) (bool, error) {
	prereqs := rule.Prereqs
	orderOnly := rule.OrderOnly

	if r.table.Special(".SECONDEXPANSION").Has(target) {
		var err error
		prereqs, orderOnly, err = r.secondExpand(ctx, xv, target, rule)
		if err != nil {
			return false, &BuildError{Target: target, File: rule.File, Line: rule.Line, Err: err}
		}
	}

	extras, err := r.extraPrereqs(ctx, xv)
	if err != nil {
		return false, &BuildError{Target: target, File: rule.File, Line: rule.Line, Err: err}
	}

	// Resolve through vpath; the resolved names feed scheduling, the
	// rebuild decision and the automatic variables alike.
	resolve := func(words []string) []string {
		out := make([]string, len(words))
		for i, w := range words {
			if w == rules.WaitSentinel {
				out[i] = w
				continue
			}
			out[i] = r.resolvePath(w)
		}
		return out
	}
	prereqs = resolve(prereqs)
	orderOnly = resolve(orderOnly)
	extras = resolve(extras)

	anyNeeded, err := r.schedule(ctx, xv, target, prereqs, orderOnly, extras, path)
	if err != nil {
		return false, err
	}
	if r.opts.Mode == ModeQuestion && anyNeeded {
		return true, nil
	}

	normal := dropWaits(prereqs)
	unique := dedup(normal)

	targetTime := r.targetTime(target, rule)
	maxPrereq := int64(0)
	var newer []string
	considered := dedup(append(append([]string{}, normal...), extras...))
	for _, w := range considered {
		ts := r.timestamp(w)
		if ts > maxPrereq {
			maxPrereq = ts
		}
		if ts > targetTime || targetTime == 0 {
			newer = append(newer, w)
		}
	}

	rebuild := r.opts.Always || targetTime == 0 || maxPrereq > targetTime
	if !rebuild {
		// A phony prerequisite that ran leaves no file behind; its mere
		// execution outdates the target.
		for _, w := range unique {
			if r.prereqRan(w) && r.timestamp(w) == 0 {
				rebuild = true
				break
			}
		}
	}
	if !rebuild {
		return false, nil
	}

	switch r.opts.Mode {
	case ModeQuestion:
		return true, nil
	case ModeTouch:
		return r.touchTargets(ctx, target, rule)
	}

	if !rule.HasRecipe() {
		return false, nil
	}

	auto := automaticScope(target, stemFor(target, rule), unique, normal, orderOnly, newer)
	return r.executeRecipe(ctx, xv.With(auto), target, rule)
}

// secondExpand re-expands the first-pass prerequisite text with $@ and $*
// bound, as .SECONDEXPANSION requests.
func (r *Runner) secondExpand(ctx context.Context, xv *expand.Expander, target string, rule *rules.Rule) (prereqs, orderOnly []string, err error) {
	scope := vars.NewStore()
	scope.Install("@", &vars.Value{Static: target, Origin: vars.OriginAutomatic})
	scope.Install("*", &vars.Value{Static: stemFor(target, rule), Origin: vars.OriginAutomatic})
	sx := xv.With(scope)

	text, err := sx.Expand(ctx, strings.Join(rule.Prereqs, " "))
	if err != nil {
		return nil, nil, err
	}
	prereqs, more := rules.SplitOrderOnly(expand.Words(text))

	ooText, err := sx.Expand(ctx, strings.Join(rule.OrderOnly, " "))
	if err != nil {
		return nil, nil, err
	}
	orderOnly = append(more, expand.Words(ooText)...)
	return prereqs, orderOnly, nil
}

// extraPrereqs reads .EXTRA_PREREQS from the current scope chain.
func (r *Runner) extraPrereqs(ctx context.Context, xv *expand.Expander) ([]string, error) {
	if _, ok := xv.Lookup(".EXTRA_PREREQS"); !ok {
		return nil, nil
	}
	text, err := xv.Expand(ctx, "$(.EXTRA_PREREQS)")
	if err != nil {
		return nil, err
	}
	return expand.Words(text), nil
}

// schedule builds the prerequisites, honoring .NOTPARALLEL and .WAIT
// segmentation. It reports whether any prerequisite needed work.
func (r *Runner) schedule(ctx context.Context, xv *expand.Expander, target string, prereqs, orderOnly, extras []string, path map[string]bool) (bool, error) {
	child := xv.WithoutPrivate()
	notParallel := r.table.Special(".NOTPARALLEL").Has(target)

	segments := splitWaitSegments(prereqs)
	// Extras and order-only prerequisites join the last segment; their
	// ordering is unconstrained.
	last := append(append([]string{}, extras...), orderOnly...)
	if len(segments) == 0 {
		segments = [][]string{last}
	} else {
		segments[len(segments)-1] = append(segments[len(segments)-1], last...)
	}

	anyNeeded := false
	for _, seg := range segments {
		seg = dedup(seg)
		r.shuffleSegment(seg)

		// A prerequisite already on the requesting chain is a circular
		// dependency; awaiting it would deadlock. Drop it, as make does.
		kept := seg[:0]
		for _, w := range seg {
			if path[w] {
				ctxlog.FromContext(ctx).Warn("Circular dependency dropped.", "target", target, "prerequisite", w)
				continue
			}
			kept = append(kept, w)
		}
		seg = kept

		if notParallel {
			for _, w := range seg {
				f := r.buildTarget(ctx, w, child, path)
				<-f.done
				if f.err != nil {
					return anyNeeded, f.err
				}
				anyNeeded = anyNeeded || f.ran
			}
			continue
		}

		futs := make([]*future, len(seg))
		for i, w := range seg {
			futs[i] = r.buildTarget(ctx, w, child, path)
		}
		var segErr error
		for _, f := range futs {
			<-f.done
			if f.err != nil && segErr == nil {
				segErr = f.err
			}
			anyNeeded = anyNeeded || f.ran
		}
		if segErr != nil {
			return anyNeeded, segErr
		}

		if r.opts.Mode == ModeQuestion && anyNeeded {
			return true, nil
		}
	}
	return anyNeeded, nil
}

// shuffleSegment applies the shuffle option in place: reverse, or a
// deterministic permutation from a decimal seed.
func (r *Runner) shuffleSegment(seg []string) {
	switch {
	case r.opts.Shuffle == "" || len(seg) < 2:
	case r.opts.Shuffle == "reverse":
		for i, j := 0, len(seg)-1; i < j; i, j = i+1, j-1 {
			seg[i], seg[j] = seg[j], seg[i]
		}
	default:
		seed, err := strconv.ParseInt(r.opts.Shuffle, 10, 64)
		if err != nil {
			return
		}
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(seg), func(i, j int) { seg[i], seg[j] = seg[j], seg[i] })
	}
}

// targetTime computes the target-side mtime for the rebuild decision:
// zero for phony targets, the minimum across members for grouped rules.
func (r *Runner) targetTime(target string, rule *rules.Rule) int64 {
	if r.table.Special(".PHONY").Has(target) {
		return 0
	}
	if len(rule.Targets) > 1 {
		min := int64(-1)
		for _, m := range rule.Targets {
			ts := r.timestamp(m)
			if min < 0 || ts < min {
				min = ts
			}
		}
		if min < 0 {
			return 0
		}
		return min
	}
	return r.timestamp(target)
}

// prereqRan reports whether w's build executed a recipe this run.
func (r *Runner) prereqRan(w string) bool {
	r.mu.Lock()
	f, ok := r.visited[w]
	r.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-f.done:
		return f.ran
	default:
		return false
	}
}

// touchTargets implements -t: update file stamps instead of running the
// recipe.
func (r *Runner) touchTargets(ctx context.Context, target string, rule *rules.Rule) (bool, error) {
	names := rule.Targets
	if len(names) == 0 {
		names = []string{target}
	}
	for _, name := range names {
		if r.table.Special(".PHONY").Has(name) {
			continue
		}
		if err := r.fs.Touch(name); err != nil {
			return false, &BuildError{Target: name, File: rule.File, Line: rule.Line, Err: err}
		}
		r.output([]byte("touch " + name + "\n"))
	}
	r.clearCaches()
	r.workDone.Store(true)
	return true, nil
}

// stemFor returns the rule's stem; explicit rules fall back to the target
// name minus its extension, so $* stays useful outside pattern rules.
func stemFor(target string, rule *rules.Rule) string {
	if rule.Stem != "" {
		return rule.Stem
	}
	base := target
	if i := strings.LastIndexByte(base, '.'); i > 0 && strings.IndexByte(base[i:], '/') < 0 {
		return base[:i]
	}
	return ""
}

// splitWaitSegments cuts the prerequisite list at .WAIT sentinels.
func splitWaitSegments(words []string) [][]string {
	var segs [][]string
	cur := []string{}
	seen := false
	for _, w := range words {
		if w == rules.WaitSentinel {
			segs = append(segs, cur)
			cur = []string{}
			seen = true
			continue
		}
		cur = append(cur, w)
	}
	if seen || len(cur) > 0 {
		segs = append(segs, cur)
	}
	return segs
}

func dropWaits(words []string) []string {
	out := words[:0:0]
	for _, w := range words {
		if w != rules.WaitSentinel {
			out = append(out, w)
		}
	}
	return out
}

// dedup removes repeated words, keeping first occurrence order.
func dedup(words []string) []string {
	seen := make(map[string]bool, len(words))
	var out []string
	for _, w := range words {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}
