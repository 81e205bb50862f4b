// Package inbox watches a drop folder and loads TIFF files placed there into
// the processing machine, as if they had been uploaded.
package inbox

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vrsandeep/oilspill-go/internal/jobs"
	"github.com/vrsandeep/oilspill-go/internal/uploads"
)

// WatcherService moves files from the inbox directory into the upload
// directory and hands them to the machine.
type WatcherService struct {
	ctx           jobs.JobContext
	dir           string
	watcher       *fsnotify.Watcher
	pending       map[string]bool
	mu            sync.Mutex
	debounceTimer *time.Timer
	debounceDelay time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

func NewWatcherService(ctx jobs.JobContext) *WatcherService {
	return &WatcherService{
		ctx:           ctx,
		dir:           ctx.Config().Inbox.Path,
		pending:       make(map[string]bool),
		debounceDelay: 2 * time.Second, // Writers of large files emit many events
		stopChan:      make(chan struct{}),
	}
}

// Start begins watching. Files already in the inbox are picked up too.
func (w *WatcherService) Start() error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		log.Printf("Inbox: could not list %s: %v", w.dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() && uploads.IsSupported(e.Name()) {
			w.enqueue(filepath.Join(w.dir, e.Name()))
		}
	}

	log.Printf("Inbox watcher started for: %s", w.dir)
	go w.processEvents()
	return nil
}

// Stop stops the watcher. Files still waiting for the debounce are left
// in the inbox.
func (w *WatcherService) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.mu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()
		if w.watcher != nil {
			err = w.watcher.Close()
		}
	})
	return err
}

func (w *WatcherService) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Inbox watcher error: %v", err)

		case <-w.stopChan:
			return
		}
	}
}

func (w *WatcherService) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !uploads.IsSupported(event.Name) {
		return
	}
	if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
		return
	}
	w.enqueue(event.Name)
}

func (w *WatcherService) enqueue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = true
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.ingestPending)
}

func (w *WatcherService) ingestPending() {
	select {
	case <-w.stopChan:
		return
	default:
	}

	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	// Each upload supersedes the previous one, so only the last file ends
	// up loaded. Sorting keeps that choice predictable.
	sort.Strings(paths)
	for _, p := range paths {
		w.ingest(p)
	}
}

func (w *WatcherService) ingest(path string) {
	handle, err := w.ctx.Uploads().Import(path)
	if err != nil {
		log.Printf("Inbox: could not import %s: %v", path, err)
		return
	}
	log.Printf("Inbox: loaded %s", handle.Name)
	w.ctx.Machine().UploadFile(handle)
}
