package manager

import (
	"sort"

	"ocrd/internal/registry"
	"ocrd/pkg/types"
)

// apiEndpoints is the route map advertised by / and /api/v1/info.
var apiEndpoints = map[string]string{
	"ocr":     "/api/v1/ocr",
	"health":  "/api/v1/health",
	"info":    "/api/v1/info",
	"stats":   "/api/v1/stats",
	"models":  "/api/v1/models",
	"clear":   "/api/v1/models",
	"warmup":  "/api/v1/models/warmup",
	"metrics": "/metrics",
}

// loadedKeys returns the sorted cache keys currently resident.
func (m *Manager) loadedKeys() []string {
	handles := m.cache.list()
	keys := make([]string, 0, len(handles))
	for _, h := range handles {
		keys = append(keys, string(h.Key()))
	}
	sort.Strings(keys)
	return keys
}

// Health builds the response for GET /api/v1/health.
func (m *Manager) Health() types.HealthResponse {
	return types.HealthResponse{
		Status:        "healthy",
		ModelsLoaded:  m.loadedKeys(),
		UptimeSeconds: m.uptimeSeconds(),
	}
}

// Models builds the response for GET /api/v1/models.
func (m *Manager) Models() types.ModelsResponse {
	handles := m.cache.list()
	models := make(map[string]types.ModelInfo, len(handles))
	for _, h := range handles {
		models[string(h.Key())] = types.ModelInfo{
			Languages:  h.Languages(),
			LoadedAt:   float64(h.LoadedAt().UnixMilli()) / 1000.0,
			GPUEnabled: h.GPU(),
		}
	}
	return types.ModelsResponse{Models: models, Count: len(models)}
}

// ClearModels drops all cached models and reports how many were dropped.
// In-flight recognitions on already-obtained handles complete normally.
func (m *Manager) ClearModels() int {
	n := m.cache.clear()
	m.log.Info().Int("dropped", n).Msg("model cache cleared")
	return n
}

// Stats builds the response for GET /api/v1/stats.
func (m *Manager) Stats() types.StatsResponse {
	snap := m.stats.Snapshot()
	return types.StatsResponse{
		TotalRequests:           snap.Total,
		SuccessfulRequests:      snap.Success,
		FailedRequests:          snap.Fail,
		SuccessRate:             snap.SuccessRate,
		AverageProcessingTimeMs: snap.AverageMs,
		LoadedModels:            m.loadedKeys(),
		UptimeSeconds:           snap.UptimeSeconds,
	}
}

// Info builds the response for GET /api/v1/info.
func (m *Manager) Info() types.InfoResponse {
	endpoints := make(map[string]string, len(apiEndpoints))
	for k, v := range apiEndpoints {
		endpoints[k] = v
	}
	return types.InfoResponse{
		Name:               m.cfg.Name,
		Version:            m.cfg.Version,
		Description:        defaultDescription,
		SupportedLanguages: registry.Count(),
		GPUAvailable:       m.cfg.GPUAvailable,
		UptimeSeconds:      m.uptimeSeconds(),
		Endpoints:          endpoints,
	}
}
