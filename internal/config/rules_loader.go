package config

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"passgate/internal/engine/compiler"
	"passgate/internal/engine/registry"
	"passgate/internal/engine/validators"
	"passgate/internal/expr"
)

const inlineSourceName = "inline-config"

// RuleBundle captures the merged collection rule documents after loading
// every configured source.
type RuleBundle struct {
	Collections map[string]map[string]any
	Sources     []string
	Skipped     []DefinitionSkip
}

type ruleAggregator struct {
	collections map[string]map[string]any
	sourceOf    map[string]string
	skips       map[string]*DefinitionSkip
	sources     map[string]struct{}
}

func newRuleAggregator() *ruleAggregator {
	return &ruleAggregator{
		collections: make(map[string]map[string]any),
		sourceOf:    make(map[string]string),
		skips:       make(map[string]*DefinitionSkip),
		sources:     make(map[string]struct{}),
	}
}

func (a *ruleAggregator) addDocument(doc map[string]map[string]any, source string) {
	if source != "" {
		a.sources[source] = struct{}{}
	}
	for name, raw := range doc {
		a.addCollection(name, raw, source)
	}
}

func (a *ruleAggregator) addCollection(name string, raw map[string]any, source string) {
	if existing, ok := a.skips[name]; ok {
		existing.Sources = appendUnique(existing.Sources, source)
		return
	}
	if prev, ok := a.sourceOf[name]; ok {
		a.recordSkip(name, "duplicate collection definition", prev, source)
		delete(a.sourceOf, name)
		delete(a.collections, name)
		return
	}
	a.sourceOf[name] = source
	a.collections[name] = raw
}

func (a *ruleAggregator) recordSkip(name, reason string, sources ...string) {
	if skip, ok := a.skips[name]; ok {
		if skip.Reason == "" {
			skip.Reason = reason
		}
		for _, src := range sources {
			skip.Sources = appendUnique(skip.Sources, src)
		}
		return
	}
	skip := &DefinitionSkip{Kind: "collection", Name: name, Reason: reason, Sources: []string{}}
	for _, src := range sources {
		skip.Sources = appendUnique(skip.Sources, src)
	}
	a.skips[name] = skip
}

// validateCompilable drops any collection whose rule document fails to
// compile against a fresh registry, so a malformed document never reaches
// engine.Engine.Load at request-serving time. This mirrors spec.md §8
// property 4 (unknown validator/field-rule names fail fast) one layer up:
// the bad collection is recorded as a DefinitionSkip and left out of the
// bundle, while the remaining collections still load.
func (a *ruleAggregator) validateCompilable() error {
	env, err := expr.NewEnvironment()
	if err != nil {
		return fmt.Errorf("config: build expression environment: %w", err)
	}
	reg := registry.New()
	if err := validators.RegisterBuiltins(reg, env); err != nil {
		return fmt.Errorf("config: register builtin validators: %w", err)
	}
	for name, raw := range a.collections {
		if _, err := compiler.Compile(raw, reg); err != nil {
			source := a.sourceOf[name]
			a.recordSkip(name, fmt.Sprintf("compile error: %v", err), source)
			delete(a.sourceOf, name)
			delete(a.collections, name)
		}
	}
	return nil
}

func (a *ruleAggregator) bundle() RuleBundle {
	collections := make(map[string]map[string]any, len(a.collections))
	for name, raw := range a.collections {
		collections[name] = raw
	}
	skipped := make([]DefinitionSkip, 0, len(a.skips))
	for _, skip := range a.skips {
		sort.Strings(skip.Sources)
		skipped = append(skipped, *skip)
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Name < skipped[j].Name })
	sources := make([]string, 0, len(a.sources))
	for src := range a.sources {
		if src != "" {
			sources = append(sources, src)
		}
	}
	sort.Strings(sources)
	return RuleBundle{Collections: collections, Sources: sources, Skipped: skipped}
}

func appendUnique(list []string, value string) []string {
	if value == "" {
		return list
	}
	if !slices.Contains(list, value) {
		list = append(list, value)
	}
	return list
}

func buildRuleBundle(ctx context.Context, inlineCollections map[string]map[string]any, rulesCfg RulesConfig) (RuleBundle, error) {
	agg := newRuleAggregator()
	if len(inlineCollections) > 0 {
		agg.addDocument(inlineCollections, inlineSourceName)
	}

	files, err := collectRuleSources(ctx, rulesCfg)
	if err != nil {
		return RuleBundle{}, err
	}
	for _, path := range files {
		select {
		case <-ctx.Done():
			return RuleBundle{}, ctx.Err()
		default:
		}
		doc, err := loadRuleDocument(path)
		if err != nil {
			return RuleBundle{}, err
		}
		agg.addDocument(doc, path)
	}
	if err := agg.validateCompilable(); err != nil {
		return RuleBundle{}, err
	}
	return agg.bundle(), nil
}

func collectRuleSources(ctx context.Context, rulesCfg RulesConfig) ([]string, error) {
	if rulesCfg.RulesFile != "" {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err := ensureFileExists(rulesCfg.RulesFile); err != nil {
			return nil, err
		}
		return []string{rulesCfg.RulesFile}, nil
	}
	if rulesCfg.RulesFolder == "" {
		return nil, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	stat, err := os.Stat(rulesCfg.RulesFolder)
	if err != nil {
		return nil, fmt.Errorf("config: rules folder %s: %w", rulesCfg.RulesFolder, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("config: rules folder %s is not a directory", rulesCfg.RulesFolder)
	}
	var files []string
	err = filepath.WalkDir(rulesCfg.RulesFolder, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !isSupportedRulesFile(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("config: walk rules folder %s: %w", rulesCfg.RulesFolder, err)
	}
	sort.Strings(files)
	return files, nil
}

func ensureFileExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("config: rules file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config: rules file %s: expected a file, found directory", path)
	}
	return nil
}

func loadRuleDocument(path string) (map[string]map[string]any, error) {
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("config: load rules from %s: %w", path, err)
	}
	doc := make(map[string]map[string]any)
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("config: decode rules from %s: %w", path, err)
	}
	return doc, nil
}

func parserFor(path string) (koanf.Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	default:
		return nil, fmt.Errorf("config: unsupported rules file extension %s", ext)
	}
}

func isSupportedRulesFile(path string) bool {
	_, err := parserFor(path)
	return err == nil
}

func cloneCollectionMap(in map[string]map[string]any) map[string]map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]map[string]any, len(in))
	for k, v := range in {
		out[k] = maps.Clone(v)
	}
	return out
}
