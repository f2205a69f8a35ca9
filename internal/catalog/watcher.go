package catalog

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind describes the type of definition change detected.
type ChangeKind int

const (
	ChangeModified ChangeKind = iota // component.toml edited
	ChangeRemoved                    // definition deleted
	ChangeAdded                      // new definition appeared
)

// Change represents a detected change to a component definition.
type Change struct {
	Kind      ChangeKind
	Component string // definition's component name (or empty on removal)
	File      string // absolute path of the changed definition file
}

// Watcher monitors a components source directory for definition
// changes using fsnotify. Component authors run it as a dev loop to
// re-validate the catalog graph as they edit definitions.
type Watcher struct {
	Dir     string
	Changes <-chan Change // read-only external channel

	changes chan Change
	done    chan struct{}
	watcher *fsnotify.Watcher

	// known tracks definition files seen so far, to tell a new
	// definition from an edit. Touched only by Start and the loop
	// goroutine.
	known map[string]bool
}

// NewWatcher creates a watcher over the components source directory.
func NewWatcher(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ch := make(chan Change, 16)
	return &Watcher{
		Dir:     dir,
		Changes: ch,
		changes: ch,
		done:    make(chan struct{}),
		watcher: fw,
		known:   make(map[string]bool),
	}, nil
}

// Start begins watching the source directory and every existing
// component subdirectory (fsnotify watches are not recursive).
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.Dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			dir := filepath.Join(w.Dir, e.Name())
			if err := w.watcher.Add(dir); err != nil {
				return err
			}
			def := filepath.Join(dir, DefinitionFileName)
			if _, err := os.Stat(def); err == nil {
				w.known[def] = true
			}
		}
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and channels.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	// Debounce: editors fire bursts of writes for one save.
	const debounce = 100 * time.Millisecond
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				for file := range pending {
					w.emitChange(file)
				}
				return
			}

			// A new component directory needs its own watch.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.watcher.Add(event.Name)
					continue
				}
			}

			if filepath.Base(event.Name) != DefinitionFileName {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				pending[event.Name] = time.Now()
			}

		case _, ok := <-ticker.C:
			if !ok {
				return
			}
			now := time.Now()
			for file, t := range pending {
				if now.Sub(t) >= debounce {
					w.emitChange(file)
					delete(pending, file)
				}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal for a dev loop.
		}
	}
}

func (w *Watcher) emitChange(file string) {
	desc, err := loadDefinition(filepath.Dir(file))
	if err != nil {
		delete(w.known, file)
		w.send(Change{Kind: ChangeRemoved, File: file})
		return
	}
	if _, err := os.Stat(file); os.IsNotExist(err) {
		delete(w.known, file)
		w.send(Change{Kind: ChangeRemoved, Component: desc.Name, File: file})
		return
	}
	kind := ChangeModified
	if !w.known[file] {
		kind = ChangeAdded
		w.known[file] = true
	}
	w.send(Change{Kind: kind, Component: desc.Name, File: file})
}

// send never blocks: once the consumer stops reading, a full buffer
// must not wedge the loop and deadlock Stop. Dropping a change is fine
// for a dev loop; the next save fires again.
func (w *Watcher) send(c Change) {
	select {
	case w.changes <- c:
	default:
	}
}
