// Package profile loads an optional HCL run profile: a declarative file
// carrying runner options, variable overrides and include directories, for
// the bundled CLI and for embedders who prefer configuration on disk over
// flags. Profile expressions can reference the environment through the
// `env` map.
package profile

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/gomake/internal/app"
	"github.com/specialistvlad/gomake/internal/caps"
	"github.com/specialistvlad/gomake/internal/run"
)

// Profile is the top-level HCL schema.
type Profile struct {
	Build       *BuildBlock       `hcl:"build,block"`
	VPaths      []VPathBlock      `hcl:"vpath,block"`
	Vars        map[string]string `hcl:"vars,optional"`
	IncludeDirs []string          `hcl:"include_dirs,optional"`
}

// VPathBlock is one `vpath "%.c" { dirs = [...] }` block: a search path
// installed ahead of any vpath directives the makefiles declare.
type VPathBlock struct {
	Pattern string   `hcl:"pattern,label"`
	Dirs    []string `hcl:"dirs"`
}

// BuildBlock configures the runner. Pointer fields distinguish "absent"
// from zero values so profiles only override what they mention.
type BuildBlock struct {
	Jobs         *int     `hcl:"jobs,optional"`
	Mode         *string  `hcl:"mode,optional"`
	KeepGoing    *bool    `hcl:"keep_going,optional"`
	IgnoreErrors *bool    `hcl:"ignore_errors,optional"`
	Always       *bool    `hcl:"always,optional"`
	Silent       *bool    `hcl:"silent,optional"`
	OneShell     *bool    `hcl:"one_shell,optional"`
	CheckSymlink *bool    `hcl:"check_symlink,optional"`
	Shuffle      *string  `hcl:"shuffle,optional"`
	OutputSync   *string  `hcl:"output_sync,optional"`
	AssumeOld    []string `hcl:"assume_old,optional"`
	AssumeNew    []string `hcl:"assume_new,optional"`
}

// Load parses and decodes the profile at path. env entries (KEY=VALUE)
// become the `env` map available to profile expressions.
func Load(path string, env []string) (*Profile, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("profile %s: %w", path, diags)
	}

	var p Profile
	if diags := gohcl.DecodeBody(file.Body, evalContext(env), &p); diags.HasErrors() {
		return nil, fmt.Errorf("profile %s: %w", path, diags)
	}
	return &p, nil
}

// evalContext exposes the environment to profile expressions as env.NAME.
func evalContext(env []string) *hcl.EvalContext {
	values := make(map[string]cty.Value)
	for _, pair := range env {
		if eq := strings.IndexByte(pair, '='); eq > 0 {
			values[pair[:eq]] = cty.StringVal(pair[eq+1:])
		}
	}
	envVal := cty.MapValEmpty(cty.String)
	if len(values) > 0 {
		envVal = cty.MapVal(values)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": envVal},
	}
}

// Apply overlays the profile onto an app configuration. Runner options the
// profile names replace whatever the flags chose, except the assume-old and
// assume-new lists, which are appended; variable definitions never clobber
// existing command-line ones.
func (p *Profile) Apply(cfg *app.Config) error {
	for name, value := range p.Vars {
		if cfg.Vars == nil {
			cfg.Vars = make(map[string]string)
		}
		if _, exists := cfg.Vars[name]; !exists {
			cfg.Vars[name] = value
		}
	}
	cfg.IncludeDirs = append(cfg.IncludeDirs, p.IncludeDirs...)
	for _, v := range p.VPaths {
		cfg.VPaths = append(cfg.VPaths, caps.VPathEntry{Pattern: v.Pattern, Dirs: v.Dirs})
	}

	b := p.Build
	if b == nil {
		return nil
	}
	if b.Jobs != nil {
		cfg.Runner.Jobs = *b.Jobs
	}
	if b.Mode != nil {
		mode, err := ParseMode(*b.Mode)
		if err != nil {
			return err
		}
		cfg.Runner.Mode = mode
	}
	if b.KeepGoing != nil {
		cfg.Runner.KeepGoing = *b.KeepGoing
	}
	if b.IgnoreErrors != nil {
		cfg.Runner.IgnoreErrors = *b.IgnoreErrors
	}
	if b.Always != nil {
		cfg.Runner.Always = *b.Always
	}
	if b.Silent != nil {
		cfg.Runner.Silent = *b.Silent
	}
	if b.OneShell != nil {
		cfg.Runner.OneShell = *b.OneShell
	}
	if b.CheckSymlink != nil {
		cfg.Runner.CheckSymlink = *b.CheckSymlink
	}
	if b.Shuffle != nil {
		cfg.Runner.Shuffle = *b.Shuffle
	}
	if b.OutputSync != nil {
		cfg.Runner.OutputSync = *b.OutputSync
	}
	cfg.Runner.AssumeOld = append(cfg.Runner.AssumeOld, b.AssumeOld...)
	cfg.Runner.AssumeNew = append(cfg.Runner.AssumeNew, b.AssumeNew...)
	return nil
}

// ParseMode maps a mode name to the runner mode.
func ParseMode(s string) (run.Mode, error) {
	switch s {
	case "", "normal":
		return run.ModeNormal, nil
	case "dry-run":
		return run.ModeDryRun, nil
	case "question":
		return run.ModeQuestion, nil
	case "touch":
		return run.ModeTouch, nil
	}
	return run.ModeNormal, fmt.Errorf("unknown mode %q", s)
}
