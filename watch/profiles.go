// Package watch keeps the stored weight profiles in line with the YAML
// files admins edit under the profiles directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/Andrandra1na/AMER-SMA/scoring"
	"github.com/Andrandra1na/AMER-SMA/store"
)

// ProfileStore is where synced profiles land.
type ProfileStore interface {
	UpsertWeightProfile(ctx context.Context, p store.WeightProfile) error
}

func isProfile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// SyncFile parses one profile file and upserts it. A sum other than 100 is
// logged, not rejected.
func SyncFile(ctx context.Context, path string, st ProfileStore, log logrus.FieldLogger) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	p, err := scoring.ParseProfile(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	raw, err := p.JSON()
	if err != nil {
		return "", err
	}
	if warn := p.SumWarning(); warn != "" && log != nil {
		log.WithFields(logrus.Fields{"profile": p.Name, "file": path}).Warn(warn)
	}
	if err := st.UpsertWeightProfile(ctx, store.WeightProfile{
		Name:        p.Name,
		Description: p.Description,
		WeightsJSON: raw,
	}); err != nil {
		return "", fmt.Errorf("storing profile %s: %w", p.Name, err)
	}
	return p.Name, nil
}

// SyncDir syncs every profile file in dir. Bad files are logged and
// skipped; the names of the synced profiles are returned sorted.
func SyncDir(ctx context.Context, dir string, st ProfileStore, log logrus.FieldLogger) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !isProfile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		name, err := SyncFile(ctx, path, st, log)
		if err != nil {
			if log != nil {
				log.WithError(err).WithField("file", path).Warn("skipping weight profile")
			}
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Watcher re-syncs profile files as they are written.
type Watcher struct {
	dir   string
	store ProfileStore
	log   logrus.FieldLogger
	// synced, when set, is called after every successful file sync.
	synced func(name string)
}

func New(dir string, st ProfileStore, log logrus.FieldLogger) *Watcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Watcher{dir: dir, store: st, log: log.WithField("component", "profiles")}
}

// Start performs a full sync, then watches dir until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	names, err := SyncDir(ctx, w.dir, w.store, w.log)
	if err != nil {
		return err
	}
	w.log.WithField("profiles", names).Info("weight profiles synced")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 || !isProfile(evt.Name) {
					continue
				}
				if _, err := os.Stat(evt.Name); err != nil {
					// renamed away
					continue
				}
				name, err := SyncFile(ctx, evt.Name, w.store, w.log)
				if err != nil {
					w.log.WithError(err).WithField("file", evt.Name).Warn("weight profile not synced")
					continue
				}
				w.log.WithField("profile", name).Info("weight profile updated")
				if w.synced != nil {
					w.synced(name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.log.WithError(err).Warn("profile watcher error")
			}
		}
	}()
	return nil
}
