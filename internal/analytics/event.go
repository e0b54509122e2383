// Package analytics provides the metrics aggregation pipeline: buffered event
// collection, periodic flush with per-type processing, rolling-window averages,
// percentile computation, and health probing of the pipeline's dependencies.
package analytics

import (
	"time"
)

// Kind identifies the type of a metric event.
type Kind string

// Metric event kinds.
const (
	KindLeadResponse     Kind = "lead_response"
	KindConversion       Kind = "conversion"
	KindAPIPerformance   Kind = "api_performance"
	KindQueuePerformance Kind = "queue_performance"
)

// Event is a single raw metric observation. The set of implementations is
// closed: every event carries its own payload shape, and the flush dispatcher
// matches on the concrete type rather than a free-form type string.
type Event interface {
	Kind() Kind
	OccurredAt() time.Time

	// isEvent seals the interface to this package.
	isEvent()
}

// LeadResponseEvent records how long a lead waited for a first response.
type LeadResponseEvent struct {
	LeadID       string
	ResponseTime float64 // seconds
	Timestamp    time.Time
}

func (LeadResponseEvent) Kind() Kind              { return KindLeadResponse }
func (e LeadResponseEvent) OccurredAt() time.Time { return e.Timestamp }
func (LeadResponseEvent) isEvent()                {}

// ConversionEvent records a funnel stage outcome for a lead.
type ConversionEvent struct {
	LeadID    string
	Stage     string
	Success   bool
	Timestamp time.Time
}

func (ConversionEvent) Kind() Kind              { return KindConversion }
func (e ConversionEvent) OccurredAt() time.Time { return e.Timestamp }
func (ConversionEvent) isEvent()                {}

// APICallEvent records a single handled HTTP request.
type APICallEvent struct {
	Endpoint     string
	Method       string
	ResponseTime float64 // milliseconds
	StatusCode   int
	Timestamp    time.Time
}

func (APICallEvent) Kind() Kind              { return KindAPIPerformance }
func (e APICallEvent) OccurredAt() time.Time { return e.Timestamp }
func (APICallEvent) isEvent()                {}

// QueueJobEvent records a processed background job.
type QueueJobEvent struct {
	QueueName      string
	JobType        string
	ProcessingTime float64 // milliseconds
	Success        bool
	Timestamp      time.Time
}

func (QueueJobEvent) Kind() Kind              { return KindQueuePerformance }
func (e QueueJobEvent) OccurredAt() time.Time { return e.Timestamp }
func (QueueJobEvent) isEvent()                {}

// groupByKind splits a batch into per-kind groups, preserving the order kinds
// were first seen and the arrival order of events within each group.
func groupByKind(batch []Event) ([]Kind, map[Kind][]Event) {
	var order []Kind
	groups := make(map[Kind][]Event)
	for _, e := range batch {
		k := e.Kind()
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], e)
	}
	return order, groups
}
