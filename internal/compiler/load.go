package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/interact/internal/ir"
)

// Source is a built CUE value together with the files it came from.
type Source struct {
	Value cue.Value
	Files []string
}

// BuildPath loads a rule file, or every .cue file under a directory, and
// unifies them into one value. Each file is loaded as its own instance, so
// files in different directories may be combined.
func BuildPath(path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("rules path: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = FindCUEFiles(path)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no CUE files found in %s", path)
		}
	}

	ctx := cuecontext.New()
	var v cue.Value
	for i, f := range files {
		fv, err := buildFile(ctx, f)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			v = fv
		} else {
			v = v.Unify(fv)
		}
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return &Source{Value: v, Files: files}, nil
}

func buildFile(ctx *cue.Context, file string) (cue.Value, error) {
	cfg := &load.Config{Dir: filepath.Dir(file)}
	instances := load.Instances([]string{"./" + filepath.Base(file)}, cfg)
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE instance loaded from %s", file)
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, formatCUEError(inst.Err)
	}
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v, nil
}

// LoadRuleSets builds path and compiles every rule set in it.
func LoadRuleSets(path string) ([]*ir.RuleSet, error) {
	src, err := BuildPath(path)
	if err != nil {
		return nil, err
	}
	sets, err := CompileRuleSets(src.Value)
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("no rule sets found in %s", path)
	}
	return sets, nil
}

// SelectRuleSet picks the rule set called name. An empty name is allowed
// only when there is exactly one rule set.
func SelectRuleSet(sets []*ir.RuleSet, name string) (*ir.RuleSet, error) {
	if name == "" {
		if len(sets) == 1 {
			return sets[0], nil
		}
		names := make([]string, len(sets))
		for i, rs := range sets {
			names[i] = rs.Name
		}
		return nil, fmt.Errorf("%d rule sets found, choose one of %v", len(sets), names)
	}
	for _, rs := range sets {
		if rs.Name == name {
			return rs, nil
		}
	}
	return nil, fmt.Errorf("rule set %q not found", name)
}

// FindCUEFiles walks the directory and returns all .cue file paths, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}
