// Package policy decides which interests may leave the engine in an export.
//
// Decisions are made by Cedar policies. Each interest is a resource of type
// Interest carrying sector, subsector and intent_state attributes; the
// exporting view is the principal; the action is always Action::"export".
package policy

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cedar-policy/cedar-go"
	"github.com/fsnotify/fsnotify"

	"github.com/lazypower/pulse/internal/taxonomy"
)

//go:embed default.cedar
var defaultPolicy []byte

// Consumers of an export.
const (
	ConsumerProfile  = "profile"
	ConsumerMatching = "matching"
)

const reloadDebounce = 500 * time.Millisecond

// Request describes one interest about to be exported.
type Request struct {
	// Path is a full tag path or a sector/subsector area.
	Path      string
	Consumer  string
	Score     float64
	HasIntent bool
}

// Gate evaluates export requests against a hot-swappable policy set.
type Gate struct {
	policySet atomic.Pointer[cedar.PolicySet]
	version   atomic.Pointer[string]
	path      string
	logger    *slog.Logger

	watcher    *fsnotify.Watcher
	stopWatch  chan struct{}
	stopOnce   sync.Once
	reloadLock sync.Mutex
}

// NewGate loads policies from path, or the built-in policy when path is empty.
func NewGate(path string, logger *slog.Logger) (*Gate, error) {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		path:      path,
		logger:    logger.With("component", "policy"),
		stopWatch: make(chan struct{}),
	}
	if err := g.reload(); err != nil {
		return nil, err
	}
	return g, nil
}

// Default returns a gate with the built-in policy.
func Default() *Gate {
	g, err := NewGate("", nil)
	if err != nil {
		panic(fmt.Sprintf("built-in policy: %v", err))
	}
	return g
}

// Version is a short hash of the active policy text.
func (g *Gate) Version() string {
	if g == nil {
		return ""
	}
	v := g.version.Load()
	if v == nil {
		return ""
	}
	return *v
}

// Path returns the policy file path, empty for the built-in policy.
func (g *Gate) Path() string {
	if g == nil {
		return ""
	}
	return g.path
}

func (g *Gate) reload() error {
	data, name := defaultPolicy, "default.cedar"
	if g.path != "" {
		name = g.path
		var err error
		data, err = os.ReadFile(g.path)
		if err != nil {
			return fmt.Errorf("read policy file: %w", err)
		}
	}

	ps, err := parsePolicies(name, data)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(data)
	version := hex.EncodeToString(sum[:])[:12]
	g.policySet.Store(ps)
	g.version.Store(&version)
	return nil
}

// parsePolicies parses a Cedar document. A document without any policy is
// an error.
func parsePolicies(name string, data []byte) (*cedar.PolicySet, error) {
	ps, err := cedar.NewPolicySetFromBytes(name, data)
	if err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if len(ps.Map()) == 0 {
		return nil, fmt.Errorf("no policies found")
	}
	return ps, nil
}

// Allow reports whether r may be exported. A nil gate allows everything.
func (g *Gate) Allow(r Request) bool {
	if g == nil {
		return true
	}
	ps := g.policySet.Load()
	if ps == nil {
		return false
	}

	sector, subsector, state := taxonomy.SplitPath(r.Path)
	attrs := cedar.RecordMap{
		"sector":       cedar.String(sector),
		"subsector":    cedar.String(subsector),
		"intent_state": cedar.String(state),
	}

	consumer := r.Consumer
	if consumer == "" {
		consumer = ConsumerProfile
	}
	resource := cedar.NewEntityUID("Interest", cedar.String(r.Path))
	entities := cedar.EntityMap{
		resource: cedar.Entity{
			UID:        resource,
			Attributes: cedar.NewRecord(attrs),
		},
	}
	req := cedar.Request{
		Principal: cedar.NewEntityUID("Consumer", cedar.String(consumer)),
		Action:    cedar.NewEntityUID("Action", "export"),
		Resource:  resource,
		Context: cedar.NewRecord(cedar.RecordMap{
			"consumer":   cedar.String(consumer),
			"score":      cedar.Long(int64(r.Score * 100)),
			"has_intent": cedar.Boolean(r.HasIntent),
		}),
	}

	ok, _ := cedar.Authorize(ps, entities, req)
	return bool(ok)
}

// StartHotReload watches the policy file and swaps in new policies when it
// changes. A file that fails to parse leaves the previous policies active.
func (g *Gate) StartHotReload() error {
	if g.path == "" {
		return fmt.Errorf("built-in policy cannot be watched")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(g.path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch policy file: %w", err)
	}
	g.watcher = watcher
	go g.watchLoop()

	g.logger.Info("hot reload enabled", "path", g.path)
	return nil
}

// Stop ends hot reloading.
func (g *Gate) Stop() {
	if g == nil || g.watcher == nil {
		return
	}
	g.stopOnce.Do(func() {
		close(g.stopWatch)
		g.watcher.Close()
	})
}

func (g *Gate) watchLoop() {
	var debounceTimer *time.Timer
	for {
		select {
		case event, ok := <-g.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, func() {
				g.reloadLock.Lock()
				defer g.reloadLock.Unlock()

				old := g.Version()
				if err := g.reload(); err != nil {
					g.logger.Warn("reload failed", "err", err)
					return
				}
				g.logger.Info("policy reloaded", "from", old, "to", g.Version())
			})
		case err, ok := <-g.watcher.Errors:
			if !ok {
				return
			}
			g.logger.Warn("watcher error", "err", err)
		case <-g.stopWatch:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		}
	}
}
