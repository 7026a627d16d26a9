package runner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ZacxDev/fetchooni/archive"
	"github.com/ZacxDev/fetchooni/fetch"
	"github.com/ZacxDev/fetchooni/fs"
	"github.com/ZacxDev/fetchooni/logger"
	"github.com/ZacxDev/fetchooni/manifest"
	"github.com/ZacxDev/fetchooni/target"
	"github.com/pkg/errors"
)

// Fetcher downloads a URL to a local path.
type Fetcher interface {
	Download(ctx context.Context, url, path, wantSHA256 string) (*fetch.Result, error)
}

// Extractor unpacks an archive into a directory.
type Extractor interface {
	Extract(src, dest string, stripComponents int) error
}

type archiveExtractor struct{}

func (archiveExtractor) Extract(src, dest string, stripComponents int) error {
	return archive.Extract(src, dest, stripComponents)
}

// TaskRunner ensures targets depth-first: every missing or stale
// prerequisite is built exactly once, in dependency order, before the
// requested target's own action runs. Execution is sequential; the
// first failure aborts the chain.
type TaskRunner struct {
	Targets map[string]*target.Target

	dag       DAGManager
	status    StatusManager
	manifest  manifest.Manager
	fetcher   Fetcher
	extractor Extractor
	shell     ShellExecutor
	fs        fs.FileSystem
	force     bool
	logLine   func(name, line string)
}

func NewTaskRunner(m manifest.Manager, filesystem fs.FileSystem) *TaskRunner {
	tr := &TaskRunner{
		Targets:   make(map[string]*target.Target),
		dag:       NewDAGManager(),
		status:    NewStatusManager(),
		manifest:  m,
		fetcher:   fetch.NewClient(),
		extractor: archiveExtractor{},
		shell:     RealShellExecutor{},
		fs:        filesystem,
	}
	tr.logLine = func(name, line string) {
		tr.status.AppendLog(name, line)
		fmt.Printf("[%s] %s\n", name, line)
	}
	return tr
}

func (tr *TaskRunner) AddTarget(t *target.Target) {
	tr.Targets[t.Name] = t
	tr.dag.AddNode(t.Name, t.TargetDeps)
	tr.status.SetStatus(t.Name, StatusQueued)
}

func (tr *TaskRunner) StatusManager() StatusManager { return tr.status }
func (tr *TaskRunner) DAG() DAGManager              { return tr.dag }
func (tr *TaskRunner) Manifest() manifest.Manager   { return tr.manifest }

func (tr *TaskRunner) SetForce(force bool)            { tr.force = force }
func (tr *TaskRunner) SetFetcher(f Fetcher)           { tr.fetcher = f }
func (tr *TaskRunner) SetExtractor(e Extractor)       { tr.extractor = e }
func (tr *TaskRunner) SetShell(s ShellExecutor)       { tr.shell = s }
func (tr *TaskRunner) SetFS(filesystem fs.FileSystem) { tr.fs = filesystem }

// SetLogSink replaces the default stdout log line handler. Lines are
// still recorded in the status manager.
func (tr *TaskRunner) SetLogSink(sink func(name, line string)) {
	tr.logLine = func(name, line string) {
		tr.status.AppendLog(name, line)
		if sink != nil {
			sink(name, line)
		}
	}
}

// Ensure builds name and everything it depends on. The manifest is
// saved even on failure so completed intermediate targets stay
// recorded.
func (tr *TaskRunner) Ensure(ctx context.Context, name string) error {
	if _, ok := tr.Targets[name]; !ok {
		return errors.Errorf("unknown target %s", name)
	}

	ensureErr := tr.ensure(ctx, name, make(map[string]int))

	if err := tr.manifest.Save(); err != nil {
		if ensureErr == nil {
			return err
		}
		logger.Warnf("failed to save manifest: %v", err)
	}

	return ensureErr
}

func (tr *TaskRunner) ensure(ctx context.Context, name string, state map[string]int) error {
	switch state[name] {
	case visited:
		return nil
	case visiting:
		return errors.Errorf("dependency cycle involving target %s", name)
	}
	state[name] = visiting

	t := tr.Targets[name]
	for _, dep := range t.TargetDeps {
		if _, ok := tr.Targets[dep]; !ok {
			return errors.Errorf("target %s depends on unknown target %s", name, dep)
		}
		if err := tr.ensure(ctx, dep, state); err != nil {
			return err
		}
	}
	state[name] = visited

	fresh, err := tr.isFresh(t)
	if err != nil {
		return err
	}
	if fresh {
		tr.status.SetStatus(name, StatusUpToDate)
		if _, ok := tr.manifest.Entry(name); !ok {
			// Pre-existing artifact with no recorded provenance.
			// Adopt it rather than rebuilding.
			tr.manifest.Put(name, manifest.Entry{
				Fingerprint: manifest.Fingerprint(t),
				ProducedAt:  time.Now(),
			})
		}
		logger.Debugf("[%s] up to date (%s)", name, t.Path)
		return nil
	}

	return tr.run(ctx, t)
}

// isFresh reports whether a target's artifact can be kept as is:
// present, produced from the current definition, and no newer than
// any prerequisite artifact.
func (tr *TaskRunner) isFresh(t *target.Target) (bool, error) {
	if tr.force {
		return false, nil
	}

	info, err := tr.fs.Stat(t.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to stat %s", t.Path)
	}

	if entry, ok := tr.manifest.Entry(t.Name); ok && entry.Fingerprint != manifest.Fingerprint(t) {
		return false, nil
	}

	for _, dep := range t.TargetDeps {
		depInfo, err := tr.fs.Stat(tr.Targets[dep].Path)
		if err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, errors.Wrapf(err, "failed to stat %s", tr.Targets[dep].Path)
		}
		if depInfo.ModTime().After(info.ModTime()) {
			return false, nil
		}
	}

	return true, nil
}

func (tr *TaskRunner) run(ctx context.Context, t *target.Target) error {
	tr.status.MarkStarted(t.Name)
	logger.Infof("[%s] %s -> %s", t.Name, t.Kind(), t.Path)

	var artifactSHA string
	var err error

	switch t.Kind() {
	case target.KindFetch:
		var res *fetch.Result
		res, err = tr.fetcher.Download(ctx, t.URL, t.Path, t.SHA256)
		if err == nil {
			artifactSHA = res.SHA256
		}
	case target.KindExtract:
		err = tr.extractor.Extract(t.Archive, t.Path, t.StripComponents)
	case target.KindCommand:
		err = tr.shell.Run(ctx, t.Workdir, t.Cmd, func(line string) {
			tr.logLine(t.Name, line)
		})
	}

	if err != nil {
		tr.status.MarkFinished(t.Name, StatusFailed)
		return errors.Wrapf(err, "target %s failed", t.Name)
	}

	if _, err := tr.fs.Stat(t.Path); err != nil {
		tr.status.MarkFinished(t.Name, StatusFailed)
		return errors.Errorf("target %s did not produce %s", t.Name, t.Path)
	}

	tr.manifest.Put(t.Name, manifest.Entry{
		Fingerprint:    manifest.Fingerprint(t),
		ArtifactSHA256: artifactSHA,
		ProducedAt:     time.Now(),
	})
	tr.status.MarkFinished(t.Name, StatusCompleted)
	logger.Infof("[%s] completed", t.Name)

	return nil
}

// TopologicalOrder returns every known target with dependencies before
// dependents.
func (tr *TaskRunner) TopologicalOrder() ([]string, error) {
	return tr.dag.TopologicalSort()
}
