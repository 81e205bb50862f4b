package processing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotInitialized is returned by FromContext when no Machine was attached
// to the context.
var ErrNotInitialized = errors.New("processing machine not initialized")

// TimestampLayout formats LogEntry.Timestamp.
const TimestampLayout = "3:04:05 PM"

// Listener observes one committed transition. Listeners run in commit order
// on the goroutine that caused the transition and must not call back into
// the Machine before returning.
type Listener func(prev, next State)

type Option func(*Machine)

// WithUploadLatency sets the simulated upload duration.
func WithUploadLatency(d time.Duration) Option {
	return func(m *Machine) { m.uploadLatency = d }
}

// WithScript replaces the pipeline steps.
func WithScript(steps []Step) Option {
	return func(m *Machine) { m.script = append([]Step(nil), steps...) }
}

// WithTimeScale multiplies every upload and step delay by f. Zero makes all
// delays instant; negative values are ignored.
func WithTimeScale(f float64) Option {
	return func(m *Machine) {
		if f >= 0 {
			m.timeScale = f
		}
	}
}

// WithClock sets the wall clock used for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithIDGenerator sets the function that produces log entry IDs.
func WithIDGenerator(gen func() string) Option {
	return func(m *Machine) { m.newID = gen }
}

// task is a cancellable unit of scheduled work: a pipeline run or a pending
// upload completion.
type task struct {
	ctx    context.Context
	cancel context.CancelFunc
}

type subscription struct {
	id     int
	fn     Listener
	commit bool
}

type transition struct {
	prev, next State
}

// Machine owns the application State. All intents are serialised; the
// scripted pipeline runs on its own goroutine and commits each step only
// while its run is still the live one.
type Machine struct {
	mu     sync.Mutex
	state  State
	run    *task
	upload *task
	closed bool
	subs   []subscription
	nextID int

	// notifyMu keeps listener delivery in commit order.
	notifyMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	script        []Step
	uploadLatency time.Duration
	timeScale     float64
	now           func() time.Time
	newID         func() string
}

// New returns a Machine in InitialState.
func New(opts ...Option) *Machine {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine{
		state:         InitialState(),
		ctx:           ctx,
		cancel:        cancel,
		script:        DefaultScript(),
		uploadLatency: DefaultUploadLatency,
		timeScale:     1,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	s.Logs = make([]LogEntry, len(m.state.Logs))
	copy(s.Logs, m.state.Logs)
	return s
}

// CanStart reports whether a file is loaded and no run is in progress.
func (m *Machine) CanStart() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CanStart()
}

// Subscribe registers fn for every future transition and returns a function
// that removes it.
func (m *Machine) Subscribe(fn Listener) func() {
	return m.subscribe(fn, false)
}

// SubscribeCommits is like Subscribe but fn is called once per intent, with
// the state before the intent's first command and after its last. An intent
// that sets a status and appends a log is seen as a single change.
func (m *Machine) SubscribeCommits(fn Listener) func() {
	return m.subscribe(fn, true)
}

func (m *Machine) subscribe(fn Listener, commit bool) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscription{id: id, fn: fn, commit: commit})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// UploadFile makes file the current file and simulates its transfer. A nil
// file is ignored. A newer upload supersedes the pending completion of an
// older one.
func (m *Machine) UploadFile(file *FileHandle) {
	if file == nil {
		return
	}
	m.mu.Lock()
	if m.upload != nil {
		m.upload.cancel()
		m.upload = nil
	}
	ts := m.commitLocked(
		SetFile{File: file},
		SetUploadStatus{Status: UploadUploading},
		AddLog{Entry: m.entryLocked(fmt.Sprintf(MsgUploadStarted, file.Name), SeverityInfo)},
	)
	var u *task
	if !m.closed {
		u = m.newTaskLocked()
		m.upload = u
	}
	m.unlockAndNotify(ts)

	if u != nil {
		go m.completeUpload(u)
	}
}

func (m *Machine) completeUpload(u *task) {
	defer m.wg.Done()
	if !sleep(u.ctx, m.scaled(m.uploadLatency)) {
		return
	}
	m.mu.Lock()
	if m.upload != u || u.ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.upload = nil
	u.cancel()
	ts := m.commitLocked(
		SetUploadStatus{Status: UploadCompleted},
		AddLog{Entry: m.entryLocked(MsgUploadCompleted, SeveritySuccess)},
		AddLog{Entry: m.entryLocked(MsgReadyForAnalysis, SeverityInfo)},
	)
	m.unlockAndNotify(ts)
}

// StartProcessing begins the scripted pipeline. It does nothing when no file
// is loaded or the processing status is not idle.
func (m *Machine) StartProcessing() {
	m.start()
}

// TryStartProcessing is StartProcessing for callers that need to know
// whether this call began a run.
func (m *Machine) TryStartProcessing() bool {
	return m.start()
}

func (m *Machine) start() bool {
	m.mu.Lock()
	if !m.state.CanStart() {
		m.mu.Unlock()
		return false
	}
	ts := m.commitLocked(
		SetProcessingStatus{Status: ProcessingRunning},
		AddLog{Entry: m.entryLocked(MsgAnalysisStarted, SeverityInfo)},
	)
	var r *task
	if !m.closed {
		r = m.newTaskLocked()
		m.run = r
	}
	steps := m.script
	m.unlockAndNotify(ts)

	if r != nil {
		go m.drive(r, steps)
	}
	return true
}

func (m *Machine) drive(r *task, steps []Step) {
	defer m.wg.Done()
	defer r.cancel()
	for _, step := range steps {
		if !sleep(r.ctx, m.scaled(step.Delay)) {
			return
		}
		m.mu.Lock()
		if !m.ownsLocked(r) {
			m.mu.Unlock()
			return
		}
		ts := m.commitLocked(AddLog{Entry: m.entryLocked(step.Message, SeverityInfo)})
		m.unlockAndNotify(ts)
	}

	m.mu.Lock()
	if !m.ownsLocked(r) {
		m.mu.Unlock()
		return
	}
	ts := m.commitLocked(
		SetProcessingStatus{Status: ProcessingCompleted},
		AddLog{Entry: m.entryLocked(MsgAnalysisCompleted, SeveritySuccess)},
	)
	m.unlockAndNotify(ts)
}

// StopProcessing sets the processing status to idle whatever it was and
// cancels the running pipeline, if any.
func (m *Machine) StopProcessing() {
	m.mu.Lock()
	ts := m.commitLocked(
		SetProcessingStatus{Status: ProcessingIdle},
		AddLog{Entry: m.entryLocked(MsgStoppedByUser, SeverityWarning)},
	)
	m.unlockAndNotify(ts)
}

// ResetProcessing restores the initial state, keeping the current file.
func (m *Machine) ResetProcessing() {
	m.mu.Lock()
	ts := m.commitLocked(
		Reset{},
		AddLog{Entry: m.entryLocked(MsgSystemReset, SeverityInfo)},
	)
	m.unlockAndNotify(ts)
}

// ToggleLayer flips the visibility of one layer. It does not check whether
// the layer has anything to show.
func (m *Machine) ToggleLayer(layer Layer) {
	m.dispatch(ToggleLayer{Layer: layer})
}

// SetPredictionOpacity stores opacity unchanged. Callers clamp it.
func (m *Machine) SetPredictionOpacity(opacity float64) {
	m.dispatch(SetPredictionOpacity{Opacity: opacity})
}

// AddLog appends a log entry. An empty severity means info.
func (m *Machine) AddLog(message string, severity Severity) {
	if severity == "" {
		severity = SeverityInfo
	}
	m.mu.Lock()
	ts := m.commitLocked(AddLog{Entry: m.entryLocked(message, severity)})
	m.unlockAndNotify(ts)
}

// SetUploadStatus lets collaborators report upload problems.
func (m *Machine) SetUploadStatus(status UploadStatus) {
	m.dispatch(SetUploadStatus{Status: status})
}

// SetProcessingStatus lets collaborators move the processing status
// directly. Leaving the processing status cancels the running pipeline.
func (m *Machine) SetProcessingStatus(status ProcessingStatus) {
	m.dispatch(SetProcessingStatus{Status: status})
}

// Close cancels all scheduled work and waits for it to return. Intents
// issued afterwards still change state but schedule nothing.
func (m *Machine) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

func (m *Machine) dispatch(cmds ...Command) {
	m.mu.Lock()
	ts := m.commitLocked(cmds...)
	m.unlockAndNotify(ts)
}

// commitLocked applies cmds in order. Whenever the result is no longer
// processing, the live run is cancelled.
func (m *Machine) commitLocked(cmds ...Command) []transition {
	ts := make([]transition, 0, len(cmds))
	for _, cmd := range cmds {
		prev := m.state
		m.state = Reduce(prev, cmd)
		ts = append(ts, transition{prev: prev, next: m.state})
		if m.run != nil && m.state.ProcessingStatus != ProcessingRunning {
			m.run.cancel()
			m.run = nil
		}
	}
	return ts
}

// unlockAndNotify releases mu and delivers ts to every listener. It must be
// called with mu held.
func (m *Machine) unlockAndNotify(ts []transition) {
	m.notifyMu.Lock()
	subs := append([]subscription(nil), m.subs...)
	m.mu.Unlock()
	defer m.notifyMu.Unlock()

	if len(ts) == 0 {
		return
	}
	for _, s := range subs {
		if s.commit {
			s.fn(ts[0].prev, ts[len(ts)-1].next)
			continue
		}
		for _, t := range ts {
			s.fn(t.prev, t.next)
		}
	}
}

func (m *Machine) ownsLocked(r *task) bool {
	return m.run == r && r.ctx.Err() == nil && m.state.ProcessingStatus == ProcessingRunning
}

func (m *Machine) newTaskLocked() *task {
	ctx, cancel := context.WithCancel(m.ctx)
	m.wg.Add(1)
	return &task{ctx: ctx, cancel: cancel}
}

func (m *Machine) entryLocked(message string, severity Severity) LogEntry {
	return LogEntry{
		ID:        m.newID(),
		Timestamp: m.now().Format(TimestampLayout),
		Message:   message,
		Severity:  severity,
	}
}

func (m *Machine) scaled(d time.Duration) time.Duration {
	return time.Duration(float64(d) * m.timeScale)
}

// sleep waits for d or until ctx is done and reports whether the full
// delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying m.
func NewContext(ctx context.Context, m *Machine) context.Context {
	return context.WithValue(ctx, contextKey{}, m)
}

// FromContext returns the Machine stored by NewContext, or
// ErrNotInitialized when there is none.
func FromContext(ctx context.Context) (*Machine, error) {
	m, ok := ctx.Value(contextKey{}).(*Machine)
	if !ok || m == nil {
		return nil, ErrNotInitialized
	}
	return m, nil
}
