package runner

import (
	"os"

	"github.com/ZacxDev/fetchooni/logger"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Clean removes the named target's artifact and declared outputs,
// together with those of everything that depends on it; artifacts
// built from a removed prerequisite are no longer trustworthy. An
// empty name cleans every target.
func (tr *TaskRunner) Clean(name string) error {
	var names []string
	if name == "" {
		order, err := tr.dag.TopologicalSort()
		if err != nil {
			return err
		}
		names = order
	} else {
		if _, ok := tr.Targets[name]; !ok {
			return errors.Errorf("unknown target %s", name)
		}
		names = append(tr.dag.Dependents(name), name)
	}

	// Remove dependents before their prerequisites.
	order, err := tr.dag.TopologicalSort()
	if err != nil {
		return err
	}
	slices.Reverse(order)

	for _, n := range order {
		if !slices.Contains(names, n) {
			continue
		}
		if err := tr.cleanTarget(n); err != nil {
			return err
		}
	}

	return tr.manifest.Save()
}

func (tr *TaskRunner) cleanTarget(name string) error {
	t := tr.Targets[name]

	paths := []string{t.Path}
	for _, pattern := range t.Outputs {
		matches, err := tr.fs.DoublestarGlob(pattern)
		if err != nil {
			return errors.Wrapf(err, "error expanding glob pattern %s for target %s", pattern, name)
		}
		paths = append(paths, matches...)
	}

	for _, path := range paths {
		if _, err := tr.fs.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrapf(err, "failed to stat %s", path)
		}
		if err := tr.fs.RemoveAll(path); err != nil {
			return errors.Wrapf(err, "failed to remove %s", path)
		}
		logger.Infof("[%s] removed %s", name, path)
	}

	tr.manifest.Delete(name)
	return nil
}
