package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// registryFile is the on-disk shape of the site registry.
type registryFile struct {
	Sites []*Site `yaml:"sites"`
}

// FileDirectory is a Directory backed by a YAML site registry. The registry
// is loaded into an immutable snapshot and swapped atomically on reload, so
// lookups never observe a half-applied file.
type FileDirectory struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	snapshot *MemoryDirectory

	// onReload is invoked with the IDs of sites whose records changed,
	// after a successful reload. Used to invalidate per-site caches.
	onReload func(changedSiteIDs []string)

	watcher      *fsnotify.Watcher
	stopCh       chan struct{}
	running      bool
	debounceTime time.Duration
}

// NewFileDirectory loads the registry at path. The logger may be nil.
func NewFileDirectory(path string, logger *slog.Logger) (*FileDirectory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &FileDirectory{
		path:         path,
		logger:       logger,
		stopCh:       make(chan struct{}),
		debounceTime: 1 * time.Second, // Debounce multiple rapid changes
	}
	if err := d.reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// SetReloadHook registers a callback invoked after each successful reload
// with the IDs of changed or removed sites. Must be called before Watch.
func (d *FileDirectory) SetReloadHook(hook func(changedSiteIDs []string)) {
	d.onReload = hook
}

// ByDomain matches the primary domain or any alias.
func (d *FileDirectory) ByDomain(ctx context.Context, hostname string) (*Site, error) {
	return d.current().ByDomain(ctx, hostname)
}

// ByVisitorHostname matches ProxyVisitorHostname for reverse_proxy sites.
func (d *FileDirectory) ByVisitorHostname(ctx context.Context, hostname string) (*Site, error) {
	return d.current().ByVisitorHostname(ctx, hostname)
}

func (d *FileDirectory) current() *MemoryDirectory {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshot
}

// reload reads and parses the registry file, then swaps the snapshot.
func (d *FileDirectory) reload() error {
	//nolint:gosec // Registry path is controlled by the operator
	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("failed to read site registry %s: %w", d.path, err)
	}

	var reg registryFile
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return fmt.Errorf("failed to parse site registry %s: %w", d.path, err)
	}

	next := NewMemoryDirectory()
	for i, s := range reg.Sites {
		if s == nil {
			continue
		}
		if s.ID == "" {
			return fmt.Errorf("site registry %s: entry %d has no id", d.path, i)
		}
		if s.DeploymentMode == "" {
			s.DeploymentMode = ModeStandalone
		}
		next.Add(s)
	}

	d.mu.Lock()
	prev := d.snapshot
	d.snapshot = next
	d.mu.Unlock()

	if d.onReload != nil && prev != nil {
		if changed := changedSites(prev, next); len(changed) > 0 {
			d.onReload(changed)
		}
	}

	d.logger.Info("Site registry loaded", "path", d.path, "sites", len(next.byID))
	return nil
}

// changedSites returns the IDs present in either snapshot whose records
// differ, including removed sites.
func changedSites(prev, next *MemoryDirectory) []string {
	var changed []string
	for id, oldSite := range prev.byID {
		newSite, ok := next.byID[id]
		if !ok || !sameSite(oldSite, newSite) {
			changed = append(changed, id)
		}
	}
	for id := range next.byID {
		if _, ok := prev.byID[id]; !ok {
			changed = append(changed, id)
		}
	}
	return changed
}

func sameSite(a, b *Site) bool {
	if a.PrimaryDomain != b.PrimaryDomain ||
		a.BasePath != b.BasePath ||
		a.DeploymentMode != b.DeploymentMode ||
		a.ProxyVisitorHostname != b.ProxyVisitorHostname ||
		len(a.DomainAliases) != len(b.DomainAliases) {
		return false
	}
	for i := range a.DomainAliases {
		if a.DomainAliases[i] != b.DomainAliases[i] {
			return false
		}
	}
	return true
}

// Watch begins watching the registry file for changes and reloading it.
func (d *FileDirectory) Watch(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.mu.Unlock()
		return err
	}
	d.watcher = watcher
	d.running = true
	d.mu.Unlock()

	// Watch the directory rather than the file because some editors and
	// config-management tools write a temp file and rename it over ours.
	if err := watcher.Add(filepath.Dir(d.path)); err != nil {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		_ = watcher.Close()
		return err
	}

	d.logger.Info("Site registry watcher started", "path", d.path)
	go d.watchLoop(ctx)
	return nil
}

// Stop stops the registry watcher.
func (d *FileDirectory) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	watcher := d.watcher
	d.mu.Unlock()

	close(d.stopCh)
	return watcher.Close()
}

func (d *FileDirectory) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if !d.isRegistryEvent(event) {
				continue
			}
			d.logger.Debug("Site registry event detected",
				"event", event.Op.String(),
				"file", event.Name)

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(d.debounceTime, d.triggerReload)
			}

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Error("Site registry watcher error", "error", err)

		case <-d.stopCh:
			d.logger.Info("Site registry watcher stopped")
			return

		case <-ctx.Done():
			d.logger.Info("Site registry watcher context cancelled")
			return
		}
	}
}

func (d *FileDirectory) isRegistryEvent(event fsnotify.Event) bool {
	eventPath, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	registryPath, err := filepath.Abs(d.path)
	if err != nil {
		return false
	}
	return eventPath == registryPath
}

func (d *FileDirectory) triggerReload() {
	start := time.Now()
	if err := d.reload(); err != nil {
		// Keep serving the previous snapshot on a bad edit.
		d.logger.Error("Site registry reload failed",
			"error", err,
			"duration", time.Since(start))
		return
	}
	d.logger.Info("Site registry reload completed",
		"duration", time.Since(start))
}
