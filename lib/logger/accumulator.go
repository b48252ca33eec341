package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Represents a logging priority.
type Priority int

const (
	DebugPriority Priority = iota
	InfoPriority
	WarnPriority
	ErrorPriority
)

// Event represents something that was logged.
type Event struct {
	Time     time.Time
	Priority Priority
	Message  string
}

// Accumulator is a thread safe Logger keeping all the messages logged in memory.
//
// Mostly useful in tests, to verify that a condition was logged.
type Accumulator struct {
	lock  sync.Mutex
	event []Event
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Retrieve returns all the events accumulated so far, and forgets them.
func (dl *Accumulator) Retrieve() []Event {
	dl.lock.Lock()
	defer dl.lock.Unlock()
	events := dl.event
	dl.event = nil
	return events
}

// Contains returns true if a message with the given priority containing text was logged.
func (dl *Accumulator) Contains(prio Priority, text string) bool {
	dl.lock.Lock()
	defer dl.lock.Unlock()
	for _, ev := range dl.event {
		if ev.Priority == prio && strings.Contains(ev.Message, text) {
			return true
		}
	}
	return false
}

func (dl *Accumulator) Add(prio Priority, format string, args ...interface{}) {
	dl.lock.Lock()
	defer dl.lock.Unlock()

	dl.event = append(dl.event, Event{
		Priority: prio,
		Message:  fmt.Sprintf(format, args...),
		Time:     time.Now(),
	})
}

func (dl *Accumulator) Debugf(format string, args ...interface{}) {
	dl.Add(DebugPriority, format, args...)
}
func (dl *Accumulator) Infof(format string, args ...interface{}) {
	dl.Add(InfoPriority, format, args...)
}
func (dl *Accumulator) Errorf(format string, args ...interface{}) {
	dl.Add(ErrorPriority, format, args...)
}
func (dl *Accumulator) Warnf(format string, args ...interface{}) {
	dl.Add(WarnPriority, format, args...)
}
func (dl *Accumulator) SetOutput(writer io.Writer) {
}
