// Package manager provides the model cache, statistics, and per-request
// orchestration for the OCR service. It is structured into small files by
// concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - key.go: canonicalization of language sets into cache keys.
//   - handle.go: Handle, one built model with a drain-on-close lifecycle.
//   - cache.go: the Key -> Handle map with single-build-per-key coordination,
//     optional LRU capacity, list/clear.
//   - stats.go: request counters and the bounded latency window.
//   - errors.go: error types and helpers (IsInvalidInput, IsModelBuildFailed, ...).
//   - decode.go: base64 + image decoding for request validation.
//   - recognize.go: the request orchestrator and result shaping.
//   - warmup.go: proactive model builds without recognition.
//   - status_report.go: health/models/stats/info projections.
//   - metrics.go: Prometheus collectors for builds, cache traffic, evictions.
//
// Engines are pluggable: the Manager only sees engine.Builder and
// engine.Engine. Handles published into the cache are read-only from the
// orchestrator's perspective; whether Recognize may run concurrently on one
// engine is that engine's documented contract.
//
// External packages should treat this package as the orchestration layer and
// use public methods only (New/NewWithConfig, Recognize, Warmup, Health,
// Models, ClearModels, Stats, Info, Ready). Internal types are subject to
// change.
package manager
