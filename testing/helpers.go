// Package testing provides test utilities for meld.
package testing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/meld"
)

// ComposeCall records one MockClient.Compose invocation.
type ComposeCall struct {
	Entries     []meld.Entry
	Destination string
	ContentType string
}

// MockClient is an in-memory meld.Client that records calls.
// When Store is set, Compose concatenates source objects into the destination.
type MockClient struct {
	Store      *MemoryStore
	Err        error
	IsOutdated bool

	calls []ComposeCall
	mu    sync.Mutex
}

// NewMockClient creates a client that composes into store. store may be nil.
func NewMockClient(store *MemoryStore) *MockClient {
	return &MockClient{Store: store}
}

// Compose records the call and, if a store is attached, writes the concatenation.
func (m *MockClient) Compose(_ context.Context, entries []meld.Entry, destination, contentType string) error {
	m.mu.Lock()
	m.calls = append(m.calls, ComposeCall{
		Entries:     append([]meld.Entry(nil), entries...),
		Destination: destination,
		ContentType: contentType,
	})
	err := m.Err
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if m.Store == nil {
		return nil
	}
	bucket, err := meld.BucketOf(destination)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, e := range entries {
		data, ok := m.Store.Get(bucket + e.Name)
		if !ok {
			return fmt.Errorf("%w: %s", meld.ErrNotFound, bucket+e.Name)
		}
		buf.Write(data)
	}
	m.Store.Put(destination, buf.Bytes(), contentType)
	return nil
}

// Outdated reports IsOutdated.
func (m *MockClient) Outdated() bool {
	return m.IsOutdated
}

// Calls returns a copy of all recorded calls.
func (m *MockClient) Calls() []ComposeCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]ComposeCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// Reset clears recorded calls.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = nil
}

// MemoryStore is an in-memory meld.ObjectStore keyed by full /bucket/object path.
type MemoryStore struct {
	data         map[string][]byte
	contentTypes map[string]string
	opened       []string
	openErr      map[string]error
	mu           sync.RWMutex
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:         make(map[string][]byte),
		contentTypes: make(map[string]string),
		openErr:      make(map[string]error),
	}
}

// Put stores a copy of data at path.
func (m *MemoryStore) Put(path string, data []byte, contentType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	m.data[path] = stored
	m.contentTypes[path] = contentType
}

// Get returns a copy of the data at path.
func (m *MemoryStore) Get(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[path]
	if !ok {
		return nil, false
	}
	result := make([]byte, len(data))
	copy(result, data)
	return result, true
}

// ContentType returns the content type recorded for path.
func (m *MemoryStore) ContentType(path string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.contentTypes[path]
}

// FailOpen makes Open fail for path with err.
func (m *MemoryStore) FailOpen(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.openErr[path] = err
}

// Opened returns the paths passed to Open, in call order.
func (m *MemoryStore) Opened() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, len(m.opened))
	copy(result, m.opened)
	return result
}

// Open returns a reader over a snapshot of the data at path.
func (m *MemoryStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opened = append(m.opened, path)
	if err, ok := m.openErr[path]; ok {
		return nil, err
	}
	data, ok := m.data[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", meld.ErrNotFound, path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Create returns a writer that stores its contents at path on Close.
func (m *MemoryStore) Create(_ context.Context, path, contentType string) (io.WriteCloser, error) {
	return &memoryWriter{store: m, path: path, contentType: contentType}, nil
}

type memoryWriter struct {
	store       *MemoryStore
	path        string
	contentType string
	buf         bytes.Buffer
	closed      bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.store.Put(w.path, w.buf.Bytes(), w.contentType)
	return nil
}

// Ensure the mocks implement the meld interfaces.
var (
	_ meld.Client          = (*MockClient)(nil)
	_ meld.VersionReporter = (*MockClient)(nil)
	_ meld.ObjectStore     = (*MemoryStore)(nil)
)

// CapturedEvent represents an event captured during testing.
type CapturedEvent struct {
	Signal    capitan.Signal
	Fields    []capitan.Field
	Timestamp time.Time
}

// EventCapture captures meld events for verification in tests.
type EventCapture struct {
	events []CapturedEvent
	mu     sync.Mutex
}

// NewEventCapture creates a new event capture utility.
func NewEventCapture() *EventCapture {
	return &EventCapture{
		events: make([]CapturedEvent, 0),
	}
}

// Handler returns a capitan.EventCallback that captures events.
func (c *EventCapture) Handler() capitan.EventCallback {
	return func(_ context.Context, e *capitan.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.events = append(c.events, CapturedEvent{
			Signal:    e.Signal(),
			Fields:    e.Fields(),
			Timestamp: time.Now(),
		})
	}
}

// Events returns a copy of all captured events.
func (c *EventCapture) Events() []CapturedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]CapturedEvent, len(c.events))
	copy(result, c.events)
	return result
}

// Count returns the number of captured events.
func (c *EventCapture) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.events)
}

// Reset clears all captured events.
func (c *EventCapture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = make([]CapturedEvent, 0)
}

// WaitForCount blocks until the specified number of events are captured or timeout.
func (c *EventCapture) WaitForCount(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.Count() >= n {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return c.Count() >= n
}

// EventsBySignal returns events filtered by signal.
func (c *EventCapture) EventsBySignal(sig capitan.Signal) []CapturedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]CapturedEvent, 0)
	for _, e := range c.events {
		if e.Signal == sig {
			result = append(result, e)
		}
	}
	return result
}
