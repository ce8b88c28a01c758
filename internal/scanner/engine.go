package scanner

import (
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sadopc/diskly/internal/model"
	"go.uber.org/zap"
)

// Engine builds size-annotated trees. It holds no per-scan state and may be
// shared by concurrent scans.
type Engine struct {
	fsys FileSystem
	opts Options
	log  *zap.Logger
}

// NewEngine creates an engine over fsys.
func NewEngine(fsys FileSystem, opts Options) *Engine {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{fsys: fsys, opts: opts, log: log}
}

// Options returns the engine configuration.
func (e *Engine) Options() Options {
	return e.opts
}

// walk carries the state of a single Scan call.
type walk struct {
	*Engine
	pool     *Pool
	token    *Token
	registry *Registry
	counter  *atomic.Uint64
	reporter Reporter
	dirsDone atomic.Uint64
}

// Scan walks root and returns its tree. Entry-level failures never abort
// the walk; they degrade to zero-size nodes flagged with model.FlagError and
// are passed to reporter.ReportError.
//
// Once token is cancelled no new subdirectory scans start, while scans
// already running finish with partial subtrees. The caller must check the
// token afterwards and discard a cancelled result.
func (e *Engine) Scan(root string, pool *Pool, token *Token, registry *Registry, counter *atomic.Uint64, reporter Reporter) model.Node {
	if reporter == nil {
		reporter = NopReporter{}
	}
	if pool == nil {
		pool, _ = NewPool(1)
	}
	if token == nil {
		token = NewToken()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if counter == nil {
		counter = new(atomic.Uint64)
	}
	w := &walk{
		Engine:   e,
		pool:     pool,
		token:    token,
		registry: registry,
		counter:  counter,
		reporter: reporter,
	}

	name := baseName(root)
	info, err := e.fsys.Lstat(root)
	if err != nil {
		w.entryError("lstat", root, err)
		return model.NewDir(name, root, nil, model.FlagError)
	}
	if info.IsDir() {
		return w.scanDir(root, name, true)
	}
	return w.scanLeaf(root, name, info)
}

func (w *walk) scanLeaf(p, name string, info fs.FileInfo) model.Node {
	w.counter.Add(1)

	if info.Mode()&fs.ModeSymlink != 0 {
		return model.NewLeaf(name, p, nonNegative(info.Size()), true, model.FlagSymlink)
	}

	size, flag := w.effectiveSize(p, info)
	return model.NewLeaf(name, p, size, true, flag)
}

func (w *walk) scanDir(p, name string, root bool) model.Node {
	if !root {
		w.counter.Add(1)
	}
	if w.token.Cancelled() {
		return model.NewDir(name, p, nil, model.FlagNone)
	}

	entries, err := w.fsys.ReadDir(p)
	if err != nil {
		w.entryError("readdir", p, err)
		return model.NewDir(name, p, nil, model.FlagError)
	}

	// Each entry writes only its own slot, so no lock is needed.
	children := make([]model.Node, len(entries))
	filled := make([]bool, len(entries))

	var wg sync.WaitGroup
	for i, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if w.token.Cancelled() {
			break
		}
		childName := entry.Name()
		childPath := w.fsys.Join(p, childName)
		filled[i] = true
		w.pool.Go(&wg, func() {
			children[i] = w.scanDir(childPath, childName, false)
		})
	}

	for i, entry := range entries {
		if entry.IsDir() {
			continue
		}
		childName := entry.Name()
		childPath := w.fsys.Join(p, childName)
		info, err := entry.Info()
		if err != nil {
			w.counter.Add(1)
			w.entryError("lstat", childPath, err)
			children[i] = model.NewLeaf(childName, childPath, 0, true, model.FlagError)
		} else {
			children[i] = w.scanLeaf(childPath, childName, info)
		}
		filled[i] = true
	}

	wg.Wait()

	kept := children[:0]
	for i := range children {
		if filled[i] {
			kept = append(kept, children[i])
		}
	}

	node := model.NewDir(name, p, kept, model.FlagNone)
	w.progress(p, node)
	return node
}

func (w *walk) progress(p string, node model.Node) {
	done := w.dirsDone.Add(1)
	every := uint64(1)
	if w.opts.ProgressEvery > 1 {
		every = uint64(w.opts.ProgressEvery)
	}
	if (done-1)%every != 0 {
		return
	}
	w.reporter.ReportDirectory(Progress{Path: p, Node: node, TotalScanned: w.counter.Load()})
}

// effectiveSize measures a regular file and applies identity dedup: only the
// first observer of an identity counts its bytes.
func (w *walk) effectiveSize(p string, info fs.FileInfo) (uint64, model.NodeFlag) {
	size, flag := w.measure(info)
	if w.opts.Dedup == DedupOff {
		return size, flag
	}

	id, nlink, ok := IdentityOf(info)
	if !ok {
		if _, local := w.fsys.(OSFileSystem); local {
			id, nlink, ok = identityByPath(p, info)
		}
	}
	if !ok {
		return size, flag
	}
	if w.opts.Dedup == DedupLinked && nlink <= 1 {
		return size, flag
	}
	if w.registry.Observe(id) {
		return size, flag
	}
	return 0, flag | model.FlagHardlink
}

func (w *walk) measure(info fs.FileInfo) (uint64, model.NodeFlag) {
	if w.opts.Accounting != AccountDiskUsage {
		return nonNegative(info.Size()), model.FlagNone
	}
	if usage, ok := diskUsage(info); ok {
		return usage, model.FlagNone
	}
	if est, ok := w.fsys.(UsageEstimator); ok {
		return est.EstimateUsage(info), model.FlagUsageEstimated
	}
	return nonNegative(info.Size()), model.FlagNone
}

func (w *walk) entryError(op, p string, err error) {
	w.log.Debug("entry unreadable", zap.String("op", op), zap.String("path", p), zap.Error(err))
	w.reporter.ReportError(&EntryError{Op: op, Path: p, Err: err})
}

func nonNegative(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}

// baseName handles both OS and slash-separated remote paths.
func baseName(p string) string {
	seps := "/" + string(filepath.Separator)
	trimmed := strings.TrimRight(p, seps)
	if trimmed == "" {
		return p
	}
	if i := strings.LastIndexAny(trimmed, seps); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
