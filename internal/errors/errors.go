// Package errors provides the structured error taxonomy used across spoon:
// lexical and syntax errors that carry a source location, cache persistence
// failures, and a collector for batch compiles.
package errors

import (
	"sort"
	"sync"
)

// Failure records one source file that did not compile.
type Failure struct {
	Source string
	Err    error
}

// Collector collects per-source failures from batch compiles.
type Collector struct {
	failures []Failure
	mutex    sync.RWMutex
}

// NewCollector creates a new error collector
func NewCollector() *Collector {
	return &Collector{
		failures: make([]Failure, 0),
	}
}

// Add records a failure for source. Nil errors are ignored.
func (c *Collector) Add(source string, err error) {
	if err == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.failures = append(c.failures, Failure{Source: source, Err: err})
}

// Failures returns the collected failures ordered by source.
func (c *Collector) Failures() []Failure {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	// Return a copy to avoid race conditions
	result := make([]Failure, len(c.failures))
	copy(result, c.failures)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Source < result[j].Source
	})
	return result
}

// HasErrors returns true if there are any errors
func (c *Collector) HasErrors() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.failures) > 0
}

// Len returns the number of collected failures.
func (c *Collector) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.failures)
}

// CountByType returns how many failures fall into each error type.
func (c *Collector) CountByType() map[ErrorType]int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	counts := make(map[ErrorType]int)
	for _, f := range c.failures {
		var se *SpoonError
		if As(f.Err, &se) {
			counts[se.Type]++
		} else {
			counts[ErrorTypeInternal]++
		}
	}
	return counts
}

// Clear clears all errors
func (c *Collector) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.failures = c.failures[:0]
}
