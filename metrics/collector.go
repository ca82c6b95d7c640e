// Package metrics provides process-wide counters for artifact ingestion.
//
// The Collector accumulates counters across every session the process
// serves. It is a leaf package with no internal dependencies; the
// Prometheus exporter reads Snapshot on every scrape rather than
// maintaining a second set of counters.
package metrics

import (
	"maps"
	"sync"
)

// Snapshot is an immutable point-in-time view of all counters.
// Safe to read concurrently after creation.
type Snapshot struct {
	// Sessions
	SessionsOpened  int64
	SessionsEvicted int64
	Resets          int64
	Selections      int64

	// Ingestion
	PartsReceived   int64
	ArtifactParts   int64
	PartsForwarded  int64
	StaleDropped    int64
	DecodeErrors    int64
	ActionsByKind   map[string]int64
	ArtifactsByType map[string]int64

	// Lifecycle sinks
	ArchiveWriteSuccess int64
	ArchiveWriteFailure int64
	NotifySuccess       int64
	NotifyFailure       int64

	// Dimensions (informational, set at construction)
	Policy         string
	StorageBackend string
	Adapter        string
}

// Collector accumulates counters. Thread-safe via sync.Mutex.
// All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	sessionsOpened  int64
	sessionsEvicted int64
	resets          int64
	selections      int64

	partsReceived   int64
	artifactParts   int64
	partsForwarded  int64
	staleDropped    int64
	decodeErrors    int64
	actionsByKind   map[string]int64
	artifactsByType map[string]int64

	archiveWriteSuccess int64
	archiveWriteFailure int64
	notifySuccess       int64
	notifyFailure       int64

	policy         string
	storageBackend string
	adapter        string
}

// NewCollector creates a Collector with dimension labels.
// Empty dimensions are reported as "none".
func NewCollector(policy, storageBackend, adapter string) *Collector {
	return &Collector{
		actionsByKind:   make(map[string]int64),
		artifactsByType: make(map[string]int64),
		policy:          orNone(policy),
		storageBackend:  orNone(storageBackend),
		adapter:         orNone(adapter),
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func (c *Collector) inc(field *int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// --- Sessions ---

// IncSessionOpened records a new session in the registry.
func (c *Collector) IncSessionOpened() {
	if c == nil {
		return
	}
	c.inc(&c.sessionsOpened)
}

// IncSessionEvicted records a session dropped by the registry.
func (c *Collector) IncSessionEvicted() {
	if c == nil {
		return
	}
	c.inc(&c.sessionsEvicted)
}

// IncReset records a session reset.
func (c *Collector) IncReset() {
	if c == nil {
		return
	}
	c.inc(&c.resets)
}

// IncSelection records a history card selection.
func (c *Collector) IncSelection() {
	if c == nil {
		return
	}
	c.inc(&c.selections)
}

// --- Ingestion ---

// IncPartReceived records one inbound data part of any type.
func (c *Collector) IncPartReceived() {
	if c == nil {
		return
	}
	c.inc(&c.partsReceived)
}

// IncPartForwarded records a non-artifact part handed to the forward policy.
func (c *Collector) IncPartForwarded() {
	if c == nil {
		return
	}
	c.inc(&c.partsForwarded)
}

// IncStaleDropped records an update or error that did not match the
// current artifact.
func (c *Collector) IncStaleDropped() {
	if c == nil {
		return
	}
	c.inc(&c.staleDropped)
}

// IncDecodeErrors records a frame or line that could not be decoded.
func (c *Collector) IncDecodeErrors() {
	if c == nil {
		return
	}
	c.inc(&c.decodeErrors)
}

// RecordAction records one dispatched artifact action. Stream actions
// also count toward the artifact type.
func (c *Collector) RecordAction(kind, artifactType string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.artifactParts++
	c.actionsByKind[kind]++
	if kind == "stream" {
		c.artifactsByType[artifactType]++
	}
	c.mu.Unlock()
}

// --- Lifecycle sinks ---
// Archive counters are per write call, not per record.

// IncArchiveWriteSuccess records a successful archive write.
func (c *Collector) IncArchiveWriteSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.archiveWriteSuccess)
}

// IncArchiveWriteFailure records a failed archive write.
func (c *Collector) IncArchiveWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.archiveWriteFailure)
}

// IncNotifySuccess records a delivered lifecycle notification.
func (c *Collector) IncNotifySuccess() {
	if c == nil {
		return
	}
	c.inc(&c.notifySuccess)
}

// IncNotifyFailure records a lifecycle notification that exhausted retries.
func (c *Collector) IncNotifyFailure() {
	if c == nil {
		return
	}
	c.inc(&c.notifyFailure)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		SessionsOpened:  c.sessionsOpened,
		SessionsEvicted: c.sessionsEvicted,
		Resets:          c.resets,
		Selections:      c.selections,

		PartsReceived:   c.partsReceived,
		ArtifactParts:   c.artifactParts,
		PartsForwarded:  c.partsForwarded,
		StaleDropped:    c.staleDropped,
		DecodeErrors:    c.decodeErrors,
		ActionsByKind:   maps.Clone(c.actionsByKind),
		ArtifactsByType: maps.Clone(c.artifactsByType),

		ArchiveWriteSuccess: c.archiveWriteSuccess,
		ArchiveWriteFailure: c.archiveWriteFailure,
		NotifySuccess:       c.notifySuccess,
		NotifyFailure:       c.notifyFailure,

		Policy:         c.policy,
		StorageBackend: c.storageBackend,
		Adapter:        c.adapter,
	}
}
