package core

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/vrsandeep/oilspill-go/internal/assets"
	"github.com/vrsandeep/oilspill-go/internal/config"
	"github.com/vrsandeep/oilspill-go/internal/db"
	"github.com/vrsandeep/oilspill-go/internal/history"
	"github.com/vrsandeep/oilspill-go/internal/imaging"
	"github.com/vrsandeep/oilspill-go/internal/inbox"
	"github.com/vrsandeep/oilspill-go/internal/jobs"
	"github.com/vrsandeep/oilspill-go/internal/models"
	"github.com/vrsandeep/oilspill-go/internal/processing"
	"github.com/vrsandeep/oilspill-go/internal/store"
	"github.com/vrsandeep/oilspill-go/internal/uploads"
	"github.com/vrsandeep/oilspill-go/internal/websocket"
)

// App holds the core components of the application that are shared
// between the HTTP server and background services.
type App struct {
	config     *config.Config
	db         *sql.DB
	store      *store.Store
	wsHub      *websocket.Hub
	jobManager *jobs.JobManager
	machine    *processing.Machine
	uploads    *uploads.Manager
	previews   *imaging.PreviewCache
	recorder   *history.Recorder
	Version    string

	scheduler *gocron.Scheduler
	inbox     *inbox.WatcherService
	unsubs    []func()
}

func (a *App) Config() *config.Config          { return a.config }
func (a *App) DB() *sql.DB                     { return a.db }
func (a *App) Store() *store.Store             { return a.store }
func (a *App) WsHub() *websocket.Hub           { return a.wsHub }
func (a *App) JobManager() *jobs.JobManager    { return a.jobManager }
func (a *App) Machine() *processing.Machine    { return a.machine }
func (a *App) Uploads() *uploads.Manager       { return a.uploads }
func (a *App) Previews() *imaging.PreviewCache { return a.previews }

// New loads the configuration, opens and migrates the database, and
// assembles the application around it.
func New(version string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.RunMigrations(database, assets.MigrationsFS); err != nil {
		// We can't proceed without a valid database schema.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	app, err := Build(cfg, database, version)
	if err != nil {
		database.Close()
		return nil, err
	}
	log.Println("Core application setup complete.")
	return app, nil
}

// Build assembles an App from an already migrated database. Extra machine
// options are applied after the ones derived from cfg.
func Build(cfg *config.Config, database *sql.DB, version string, opts ...processing.Option) (*App, error) {
	uploadManager, err := uploads.NewManager(cfg.Uploads.Path, cfg.Uploads.MaxBytes)
	if err != nil {
		return nil, err
	}

	st := store.New(database)
	if n, err := st.StopInterruptedRuns(time.Now()); err != nil {
		log.Printf("Warning: could not close interrupted runs: %v", err)
	} else if n > 0 {
		log.Printf("Marked %d interrupted run(s) as stopped", n)
	}

	machineOpts := []processing.Option{
		processing.WithUploadLatency(cfg.UploadLatency()),
		processing.WithTimeScale(cfg.Pipeline.TimeScale),
	}
	machine := processing.New(append(machineOpts, opts...)...)

	hub := websocket.NewHub()
	hub.OnConnect = func() ([]byte, error) {
		return json.Marshal(models.NewStateUpdate(machine.Snapshot()))
	}
	go hub.Run()

	app := &App{
		config:   cfg,
		db:       database,
		store:    st,
		wsHub:    hub,
		machine:  machine,
		uploads:  uploadManager,
		previews: imaging.NewPreviewCache(),
		recorder: history.NewRecorder(st),
		Version:  version,
	}
	app.jobManager = jobs.NewManager(app)
	jobs.RegisterAll(app.jobManager)

	app.unsubs = append(app.unsubs,
		app.recorder.Attach(machine),
		machine.Subscribe(app.previews.Listener()),
		machine.Subscribe(uploadManager.ReleaseSuperseded()),
		machine.SubscribeCommits(func(_, next processing.State) {
			hub.BroadcastJSON(models.NewStateUpdate(next))
		}),
	)
	return app, nil
}

// StartBackground starts the job scheduler and, when configured, the inbox
// watcher.
func (a *App) StartBackground() error {
	a.scheduler = jobs.StartJobs(a)

	if a.config.Inbox.Path == "" {
		log.Println("Inbox path not set, drop-folder ingestion is disabled.")
		return nil
	}
	a.inbox = inbox.NewWatcherService(a)
	if err := a.inbox.Start(); err != nil {
		a.inbox = nil
		return fmt.Errorf("failed to start inbox watcher: %w", err)
	}
	return nil
}

// Close stops background work and the machine, then closes the database.
func (a *App) Close() {
	if a.inbox != nil {
		a.inbox.Stop()
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.machine != nil {
		a.machine.Close()
	}
	for _, unsub := range a.unsubs {
		unsub()
	}
	if a.db != nil {
		a.db.Close()
	}
}
