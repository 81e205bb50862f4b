package processing

// Command is one state transition request. The set of commands is closed;
// only types in this package implement it.
type Command interface {
	command()
}

type SetFile struct{ File *FileHandle }

type SetUploadStatus struct{ Status UploadStatus }

type SetProcessingStatus struct{ Status ProcessingStatus }

type ToggleLayer struct{ Layer Layer }

type SetPredictionOpacity struct{ Opacity float64 }

// AddLog appends Entry as is. ID and Timestamp must already be filled in
// so that Reduce stays deterministic.
type AddLog struct{ Entry LogEntry }

type ClearLogs struct{}

// Reset restores InitialState but keeps the current file.
type Reset struct{}

func (SetFile) command()              {}
func (SetUploadStatus) command()      {}
func (SetProcessingStatus) command()  {}
func (ToggleLayer) command()          {}
func (SetPredictionOpacity) command() {}
func (AddLog) command()               {}
func (ClearLogs) command()            {}
func (Reset) command()                {}

// Reduce returns the state that results from applying cmd to s. It never
// modifies s or anything s refers to.
func Reduce(s State, cmd Command) State {
	switch c := cmd.(type) {
	case SetFile:
		s.CurrentFile = c.File
	case SetUploadStatus:
		s.UploadStatus = c.Status
	case SetProcessingStatus:
		s.ProcessingStatus = c.Status
	case ToggleLayer:
		switch c.Layer {
		case LayerOriginal:
			s.LayerVisibility.Original = !s.LayerVisibility.Original
		case LayerPrediction:
			s.LayerVisibility.Prediction = !s.LayerVisibility.Prediction
		}
	case SetPredictionOpacity:
		s.PredictionOpacity = c.Opacity
	case AddLog:
		s.Logs = appendLog(s.Logs, c.Entry)
	case ClearLogs:
		s.Logs = []LogEntry{}
	case Reset:
		file := s.CurrentFile
		s = InitialState()
		s.CurrentFile = file
	}
	return s
}

// appendLog copies logs into a fresh slice, appends entry and keeps only the
// newest MaxLogs entries.
func appendLog(logs []LogEntry, entry LogEntry) []LogEntry {
	start := 0
	if len(logs)+1 > MaxLogs {
		start = len(logs) + 1 - MaxLogs
	}
	out := make([]LogEntry, 0, len(logs)-start+1)
	out = append(out, logs[start:]...)
	return append(out, entry)
}

// NewEntries returns the entries of next that were appended after prev.
// Logs only grow at the end, lose entries at the front or get cleared, so
// the newest entry of prev marks where the new ones begin.
func NewEntries(prev, next []LogEntry) []LogEntry {
	if len(prev) == 0 {
		return next
	}
	last := prev[len(prev)-1].ID
	for i := len(next) - 1; i >= 0; i-- {
		if next[i].ID == last {
			return next[i+1:]
		}
	}
	return next
}
