package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ZacxDev/fetchooni/target"
	"github.com/pkg/errors"
	"go.starlark.net/starlark"
)

const DefaultFilename = "fetchooni.star"

// Pipeline is the parsed build definition: the target set plus the
// name built when the CLI is invoked without an argument.
type Pipeline struct {
	Targets map[string]*target.Target
	Default string
}

// ModuleCache is used to store loaded Starlark modules
type ModuleCache struct {
	modules map[string]starlark.StringDict
	mutex   sync.RWMutex
}

// NewModuleCache creates a new ModuleCache
func NewModuleCache() *ModuleCache {
	return &ModuleCache{
		modules: make(map[string]starlark.StringDict),
	}
}

// Get retrieves a module from the cache
func (mc *ModuleCache) Get(key string) (starlark.StringDict, bool) {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	module, ok := mc.modules[key]
	return module, ok
}

// Set stores a module in the cache
func (mc *ModuleCache) Set(key string, module starlark.StringDict) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	mc.modules[key] = module
}

// LoadModule is a custom load function for Starlark that implements caching
func LoadModule(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	cache := thread.Local("moduleCache").(*ModuleCache)

	// Check if the module is already cached
	if cachedModule, ok := cache.Get(module); ok {
		return cachedModule, nil
	}

	// If not cached, load the module
	filename := module
	if !filepath.IsAbs(filename) {
		filename = filepath.Join(filepath.Dir(thread.Name), filename)
	}

	globals, err := starlark.ExecFile(thread, filename, nil, nil)
	if err != nil {
		return nil, err
	}

	// Cache the loaded module
	cache.Set(module, globals)

	return globals, nil
}

// ParseStarlarkConfig evaluates filename and returns the declared
// pipeline. The file must define a global `config` dict of target
// name -> target fields; a global `default` string selects the target
// built when none is named on the command line.
func ParseStarlarkConfig(filename string) (*Pipeline, error) {
	cache := NewModuleCache()
	thread := &starlark.Thread{
		Name: filename,
		Load: LoadModule,
	}
	thread.SetLocal("moduleCache", cache)

	globals, err := starlark.ExecFile(thread, filename, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Starlark script")
	}

	configValue, ok := globals["config"]
	if !ok {
		return nil, errors.New("global 'config' object not found in Starlark config")
	}

	configDict, ok := configValue.(*starlark.Dict)
	if !ok {
		return nil, errors.New("global 'config' object is not a dictionary")
	}

	pipeline := &Pipeline{
		Targets: make(map[string]*target.Target),
	}

	for _, item := range configDict.Items() {
		name := item.Index(0).(starlark.String).GoString()
		value := item.Index(1)
		if dict, ok := value.(*starlark.Dict); ok {
			t, err := parseTarget(name, dict)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to parse target %s", name)
			}

			pipeline.Targets[name] = t
		}
	}

	if defaultValue, ok := globals["default"]; ok {
		str, ok := defaultValue.(starlark.String)
		if !ok {
			return nil, errors.Errorf("global 'default' must be a string, got %s", defaultValue.Type())
		}
		pipeline.Default = str.GoString()
	}

	if err := pipeline.validate(); err != nil {
		return nil, err
	}

	return pipeline, nil
}

func (p *Pipeline) validate() error {
	for name, t := range p.Targets {
		if err := t.Validate(); err != nil {
			return err
		}
		for _, dep := range t.TargetDeps {
			if _, ok := p.Targets[dep]; !ok {
				return errors.Errorf("target %s depends on unknown target %s", name, dep)
			}
		}
	}

	if p.Default != "" {
		if _, ok := p.Targets[p.Default]; !ok {
			return errors.Errorf("default target %s is not defined", p.Default)
		}
	}

	return nil
}

func parseTarget(name string, dict *starlark.Dict) (*target.Target, error) {
	t := &target.Target{Name: name}

	if path, ok, err := getStringValue(dict, "path"); err != nil {
		return nil, err
	} else if ok {
		t.Path = path
	}

	if url, ok, err := getStringValue(dict, "url"); err != nil {
		return nil, err
	} else if ok {
		t.URL = url
	}

	if sha, ok, err := getStringValue(dict, "sha256"); err != nil {
		return nil, err
	} else if ok {
		t.SHA256 = sha
	}

	if archive, ok, err := getStringValue(dict, "archive"); err != nil {
		return nil, err
	} else if ok {
		t.Archive = archive
	}

	if strip, ok, err := getIntValue(dict, "strip_components"); err != nil {
		return nil, err
	} else if ok {
		t.StripComponents = strip
	}

	if cmd, ok, err := getStringValue(dict, "cmd"); err != nil {
		return nil, err
	} else if ok {
		t.Cmd = cmd
	}

	if workdir, ok, err := getStringValue(dict, "workdir"); err != nil {
		return nil, err
	} else if ok {
		t.Workdir = workdir
	}

	if outputs, ok, err := getStringList(dict, "outputs"); err != nil {
		return nil, err
	} else if ok {
		t.Outputs = outputs
	}

	if targetDeps, ok, err := getStringList(dict, "target_deps"); err != nil {
		return nil, err
	} else if ok {
		t.TargetDeps = targetDeps
	}

	return t, nil
}

func getStringValue(dict *starlark.Dict, key string) (string, bool, error) {
	value, found, err := dict.Get(starlark.String(key))
	if err != nil || !found {
		return "", false, err
	}

	strValue, ok := value.(starlark.String)
	if !ok {
		return "", false, fmt.Errorf("expected string for key %s, got %T", key, value)
	}

	return strValue.GoString(), true, nil
}

func getIntValue(dict *starlark.Dict, key string) (int, bool, error) {
	value, found, err := dict.Get(starlark.String(key))
	if err != nil || !found {
		return 0, false, err
	}

	intValue, ok := value.(starlark.Int)
	if !ok {
		return 0, false, fmt.Errorf("expected int for key %s, got %T", key, value)
	}

	i, ok := intValue.Int64()
	if !ok {
		return 0, false, fmt.Errorf("value for key %s overflows int64", key)
	}

	return int(i), true, nil
}

func getStringList(dict *starlark.Dict, key string) ([]string, bool, error) {
	value, found, err := dict.Get(starlark.String(key))
	if err != nil || !found {
		return nil, false, err
	}

	list, ok := value.(*starlark.List)
	if !ok {
		return nil, false, fmt.Errorf("expected list for key %s, got %T", key, value)
	}

	var result []string
	iter := list.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		str, ok := x.(starlark.String)
		if !ok {
			return nil, false, fmt.Errorf("expected string in list for key %s, got %T", key, x)
		}
		result = append(result, str.GoString())
	}

	return result, true, nil
}
