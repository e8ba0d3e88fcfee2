package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// FingerprintEvent represents one step of a pipeline operation
type FingerprintEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	Operation      string                 `json:"operation"`
	Source         string                 `json:"source"`
	ProcessingTime time.Duration          `json:"processing_time"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of pipeline event
type EventType string

const (
	// OperationStarted when an entry point begins
	OperationStarted EventType = "operation_started"
	// OperationCompleted when an entry point finishes without warnings
	OperationCompleted EventType = "operation_completed"
	// OperationPartial when an entry point finishes with degraded stages
	OperationPartial EventType = "operation_partial"
	// OperationFailed when an entry point fails
	OperationFailed EventType = "operation_failed"
	// ImageResolved when an input reference is loaded
	ImageResolved EventType = "image_resolved"
	// ImageResolveFailed when an input reference cannot be loaded
	ImageResolveFailed EventType = "image_resolve_failed"
	// ArtifactStored when an output is persisted
	ArtifactStored EventType = "artifact_stored"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event FingerprintEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event FingerprintEvent)
}

// LoggingObserver logs pipeline events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles pipeline events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event FingerprintEvent) {
	fields := logrus.Fields{
		"event_type":         event.EventType,
		"operation":          event.Operation,
		"source":             event.Source,
		"processing_time_ms": event.ProcessingTime.Milliseconds(),
	}

	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}

	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case OperationStarted:
		entry.Debug("Fingerprint operation started")
	case OperationCompleted:
		entry.Info("Fingerprint operation completed")
	case OperationPartial:
		entry.Warn("Fingerprint operation completed with degraded stages")
	case OperationFailed:
		entry.Error("Fingerprint operation failed")
	case ImageResolved, ArtifactStored:
		entry.Debug("Fingerprint image transferred")
	case ImageResolveFailed:
		entry.Error("Fingerprint image could not be loaded")
	default:
		entry.Info("Fingerprint event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsSnapshot is a point in time copy of the collected counters
type MetricsSnapshot struct {
	Started             int64            `json:"started" cbor:"started"`
	Completed           int64            `json:"completed" cbor:"completed"`
	Partial             int64            `json:"partial" cbor:"partial"`
	Failed              int64            `json:"failed" cbor:"failed"`
	InFlight            int64            `json:"in_flight" cbor:"in_flight"`
	AvgProcessingTimeMs float64          `json:"avg_processing_time_ms" cbor:"avg_processing_time_ms"`
	ByOperation         map[string]int64 `json:"by_operation" cbor:"by_operation"`
}

// MetricsObserver collects counters from pipeline events
type MetricsObserver struct {
	mu                  sync.RWMutex
	started             int64
	completed           int64
	partial             int64
	failed              int64
	totalProcessingTime time.Duration
	byOperation         map[string]int64
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{byOperation: make(map[string]int64)}
}

// OnEvent handles pipeline events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event FingerprintEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case OperationStarted:
		o.started++
		o.byOperation[event.Operation]++
	case OperationCompleted:
		o.completed++
		o.totalProcessingTime += event.ProcessingTime
	case OperationPartial:
		o.partial++
		o.totalProcessingTime += event.ProcessingTime
	case OperationFailed:
		o.failed++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics. The average covers operations that produced a result.
func (o *MetricsObserver) GetMetrics() MetricsSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snapshot := MetricsSnapshot{
		Started:     o.started,
		Completed:   o.completed,
		Partial:     o.partial,
		Failed:      o.failed,
		InFlight:    o.started - o.completed - o.partial - o.failed,
		ByOperation: make(map[string]int64, len(o.byOperation)),
	}
	if finished := o.completed + o.partial; finished > 0 {
		snapshot.AvgProcessingTimeMs = float64(o.totalProcessingTime.Milliseconds()) / float64(finished)
	}
	for op, n := range o.byOperation {
		snapshot.ByOperation[op] = n
	}
	return snapshot
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() Subject {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers event to every observer concurrently and returns once all have handled it
func (p *EventPublisher) NotifyObservers(ctx context.Context, event FingerprintEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var wg sync.WaitGroup
	for _, observer := range observers {
		wg.Add(1)
		go func(obs Observer) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					// Log panic but don't crash the application
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
	wg.Wait()
}
