package heatmap

import (
	"image"
	"sort"
	"sync"
	"time"
)

// SurveyEntry is the latest processed state of one named survey
type SurveyEntry struct {
	Name       string
	Survey     *SurveyFile
	DataSet    *DataSet
	Result     *Result
	Summary    *SurveySummary
	Background image.Image // nil when the survey has no floor plan
	UpdatedAt  time.Time
}

// StateTracker holds processed surveys for the HTTP endpoints
type StateTracker struct {
	mu      sync.RWMutex
	surveys map[string]*SurveyEntry
}

// NewStateTracker creates an empty state tracker
func NewStateTracker() *StateTracker {
	return &StateTracker{
		surveys: make(map[string]*SurveyEntry),
	}
}

// Update stores entry, replacing any earlier run of the same survey
func (st *StateTracker) Update(entry *SurveyEntry) {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now()
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.surveys[entry.Name] = entry
}

// Get returns the entry for a survey
func (st *StateTracker) Get(name string) (*SurveyEntry, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	e, ok := st.surveys[name]
	return e, ok
}

// Remove forgets a survey
func (st *StateTracker) Remove(name string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.surveys, name)
}

// Len returns the number of tracked surveys
func (st *StateTracker) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.surveys)
}

// Names returns the tracked survey names in sorted order
func (st *StateTracker) Names() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	names := make([]string, 0, len(st.surveys))
	for name := range st.surveys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summaries returns the summary of every tracked survey, sorted by name
func (st *StateTracker) Summaries() []*SurveySummary {
	names := st.Names()
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*SurveySummary, 0, len(names))
	for _, name := range names {
		if e, ok := st.surveys[name]; ok && e.Summary != nil {
			out = append(out, e.Summary)
		}
	}
	return out
}

// DataSets returns the data set of every tracked survey, sorted by name
func (st *StateTracker) DataSets() []*DataSet {
	names := st.Names()
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*DataSet, 0, len(names))
	for _, name := range names {
		if e, ok := st.surveys[name]; ok && e.DataSet != nil {
			out = append(out, e.DataSet)
		}
	}
	return out
}
