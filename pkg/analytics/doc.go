// Package analytics records flag evaluations and registration checks.
//
// Callers on the request path use a Recorder: it enqueues events into a
// bounded buffer and returns immediately, and background workers write them
// to a Sink. When the buffer is full the event is dropped. An optional
// circuit breaker stops hammering a failing sink.
//
// Sinks: OpenSearchSink (opensearch-go/v2 index API), LogSink (slog debug
// lines) and MemorySink (tests).
package analytics
