package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/brawer/globemesh/mesh"
	"github.com/fsnotify/fsnotify"
	"github.com/paulmach/go.geojson"
)

// Index keeps the served collections in memory and reloads a collection
// whenever its file changes on disk.
type Index struct {
	collections map[string]*Collection
	mutex       sync.RWMutex
	watcher     *fsnotify.Watcher
}

// Collection is an immutable snapshot of one GeoJSON file. A reload
// replaces the whole snapshot.
type Collection struct {
	Name         string
	Path         string
	Features     *geojson.FeatureCollection
	Bounds       mesh.BoundingBox
	LastModified time.Time

	byID map[string]int
}

func MakeIndex(collections map[string]string) (*Index, error) {
	index := &Index{collections: make(map[string]*Collection)}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	index.watcher = watcher

	for name, path := range collections {
		coll, err := ReadCollection(name, path)
		if err != nil {
			watcher.Close()
			return nil, err
		}
		index.collections[name] = coll
		collectionFeatures.WithLabelValues(name).Set(float64(len(coll.Features.Features)))
	}

	for _, c := range index.collections {
		if err := watcher.Add(c.Path); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	go index.watchFiles()
	return index, nil
}

// Close stops watching the collection files.
func (index *Index) Close() error {
	return index.watcher.Close()
}

// GetCollections returns the collection names in sorted order.
func (index *Index) GetCollections() []string {
	index.mutex.RLock()
	defer index.mutex.RUnlock()

	names := make([]string, 0, len(index.collections))
	for name := range index.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetCollection returns the current snapshot of a collection, or nil.
func (index *Index) GetCollection(name string) *Collection {
	index.mutex.RLock()
	defer index.mutex.RUnlock()
	return index.collections[name]
}

func (index *Index) watchFiles() {
	for {
		select {
		case event, ok := <-index.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				index.reload(event.Name)
			}

		case err, ok := <-index.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("watching collections failed", "err", err)
		}
	}
}

func (index *Index) reload(path string) {
	index.mutex.RLock()
	var names []string
	for name, c := range index.collections {
		if c.Path == path {
			names = append(names, name)
		}
	}
	index.mutex.RUnlock()

	for _, name := range names {
		coll, err := ReadCollection(name, path)
		if err != nil {
			// Editors often write files in several steps; keep serving the
			// old snapshot until the file parses again.
			slog.Warn("error reading collection", "collection", name, "path", path, "err", err)
			collectionReloads.WithLabelValues(name, "error").Inc()
			continue
		}
		index.replaceCollection(coll)
		collectionReloads.WithLabelValues(name, "ok").Inc()
		slog.Info("reloaded collection", "collection", name, "features", len(coll.Features.Features))
	}
}

func (index *Index) replaceCollection(c *Collection) {
	index.mutex.Lock()
	defer index.mutex.Unlock()

	if old, ok := index.collections[c.Name]; ok && old.Path == c.Path {
		index.collections[c.Name] = c
		collectionFeatures.WithLabelValues(c.Name).Set(float64(len(c.Features.Features)))
	}
}

// ReadCollection parses the GeoJSON FeatureCollection at path.
func ReadCollection(name, path string) (*Collection, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", name, err)
	}

	coll := &Collection{
		Name:         name,
		Path:         absPath,
		Features:     fc,
		Bounds:       mesh.EmptyBoundingBox(),
		LastModified: stat.ModTime(),
		byID:         make(map[string]int, len(fc.Features)),
	}
	for i, f := range fc.Features {
		coll.Bounds = coll.Bounds.Union(mesh.FeatureBounds(f))
		if f.ID != nil {
			coll.byID[fmt.Sprint(f.ID)] = i
		}
	}
	return coll, nil
}

// Feature looks up a feature by its id.
func (c *Collection) Feature(id string) (*geojson.Feature, bool) {
	i, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return c.Features.Features[i], true
}
