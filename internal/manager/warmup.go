package manager

import "context"

// Warmup builds the model for the given language set without performing any
// recognition. Idempotent when the model is already cached. Returns the
// canonical language set that was loaded.
func (m *Manager) Warmup(ctx context.Context, languages []string, gpu bool) ([]string, error) {
	langs, err := Canonicalize(languages)
	if err != nil {
		return nil, err
	}
	key := KeyFor(langs, gpu)
	if _, _, err := m.cache.getOrBuild(ctx, key, langs, gpu); err != nil {
		return nil, err
	}
	return langs, nil
}
