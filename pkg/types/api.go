package types

// OcrRequest represents an OCR request payload.
type OcrRequest struct {
	// Base64 encoded image data (PNG, JPEG, GIF, BMP, TIFF or WebP).
	// example: iVBORw0KGgoAAAANSUhEUg...
	Image string `json:"image" example:"iVBORw0KGgoAAAANSUhEUg..."`
	// Language codes for the recognition model (order does not matter).
	// example: ["en"]
	Languages []string `json:"languages" example:"en"`
	// Detail level: 0 returns text only, 1 adds bounding boxes and confidence.
	// example: 1
	Detail int `json:"detail" example:"1"`
	// Prefer GPU acceleration when the engine supports it.
	// example: true
	GPU bool `json:"gpu" example:"true"`
}

// OcrResult is a single recognized text span.
type OcrResult struct {
	// Four (x, y) corner points in the order produced by the engine.
	// Omitted when detail is 0.
	Bbox [][]int `json:"bbox,omitempty"`
	// Recognized text; not guaranteed to be ASCII.
	// example: HELLO
	Text string `json:"text" example:"HELLO"`
	// Confidence score in [0, 1]. Zero when detail is 0.
	// example: 0.95
	Confidence float64 `json:"confidence" example:"0.95"`
}

// OcrResponse is returned by POST /api/v1/ocr.
type OcrResponse struct {
	// Overall request status.
	// example: success
	Status string `json:"status" example:"success"`
	// Unique identifier generated for this request.
	// example: 9f4f6a0e-6c7a-4a0e-8e5a-1d2f3c4b5a69
	RequestID string `json:"request_id" example:"9f4f6a0e-6c7a-4a0e-8e5a-1d2f3c4b5a69"`
	// Recognized spans, shaped by the requested detail level.
	Results []OcrResult `json:"results"`
	// Total time spent handling the request, in milliseconds.
	// example: 182.4
	ProcessingTimeMs float64 `json:"processing_time_ms" example:"182.4"`
	// Time attributable to model acquisition; zero on a cache hit.
	// example: 0
	ModelLoadTimeMs float64 `json:"model_load_time_ms" example:"0"`
	// RFC 3339 server timestamp.
	// example: 2025-01-02T15:04:05Z
	Timestamp string `json:"timestamp" example:"2025-01-02T15:04:05Z"`
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	// example: healthy
	Status string `json:"status" example:"healthy"`
	// Cache keys of currently loaded models.
	ModelsLoaded []string `json:"models_loaded"`
	// example: 3600
	UptimeSeconds float64 `json:"uptime_seconds" example:"3600"`
}

// ModelInfo describes one cached model.
type ModelInfo struct {
	// Canonical language set the model was built for.
	Languages []string `json:"languages"`
	// Unix seconds at which the model finished loading.
	// example: 1700000000
	LoadedAt float64 `json:"loaded_at" example:"1700000000"`
	// Whether the model was built with the accelerator preference on.
	// example: true
	GPUEnabled bool `json:"gpu_enabled" example:"true"`
}

// ModelsResponse is returned by GET /api/v1/models.
type ModelsResponse struct {
	Models map[string]ModelInfo `json:"models"`
	// example: 2
	Count int `json:"count" example:"2"`
}

// WarmupRequest is the body of POST /api/v1/models/warmup.
type WarmupRequest struct {
	// example: ["en","fr"]
	Languages []string `json:"languages" example:"en,fr"`
	// example: true
	GPU bool `json:"gpu" example:"true"`
}

// WarmupResponse acknowledges a warmup.
type WarmupResponse struct {
	// example: success
	Status string `json:"status" example:"success"`
	// Canonical language set that was loaded.
	Languages []string `json:"languages"`
}

// ClearModelsResponse is returned by DELETE /api/v1/models.
type ClearModelsResponse struct {
	// example: cleared
	Status string `json:"status" example:"cleared"`
	// example: 2
	ModelsCleared int `json:"models_cleared" example:"2"`
}

// StatsResponse is returned by GET /api/v1/stats.
type StatsResponse struct {
	// example: 120
	TotalRequests uint64 `json:"total_requests" example:"120"`
	// example: 117
	SuccessfulRequests uint64 `json:"successful_requests" example:"117"`
	// example: 3
	FailedRequests uint64 `json:"failed_requests" example:"3"`
	// Success percentage; 0 when no requests were served yet.
	// example: 97.5
	SuccessRate float64 `json:"success_rate" example:"97.5"`
	// Mean of the retained latency window, in milliseconds.
	// example: 84.2
	AverageProcessingTimeMs float64 `json:"average_processing_time_ms" example:"84.2"`
	// Cache keys of currently loaded models.
	LoadedModels []string `json:"loaded_models"`
	// example: 3600
	UptimeSeconds float64 `json:"uptime_seconds" example:"3600"`
}

// InfoResponse is returned by GET /api/v1/info.
type InfoResponse struct {
	// example: ocrd
	Name string `json:"name" example:"ocrd"`
	// example: 1.0.0
	Version string `json:"version" example:"1.0.0"`
	// example: OCR API with multi-language model caching
	Description string `json:"description" example:"OCR API with multi-language model caching"`
	// Number of language codes the active engine can load.
	// example: 83
	SupportedLanguages int `json:"supported_languages" example:"83"`
	// example: false
	GPUAvailable bool `json:"gpu_available" example:"false"`
	// example: 3600
	UptimeSeconds float64 `json:"uptime_seconds" example:"3600"`
	// Route map for discovery.
	Endpoints map[string]string `json:"endpoints"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid image data
	Error string `json:"error" example:"invalid image data"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
