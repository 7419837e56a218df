package manager

import (
	"sort"
	"strings"
)

// Key identifies one cached model: a canonical language set plus the
// accelerator preference it was built with.
type Key string

func (k Key) String() string { return string(k) }

// Canonicalize lower-cases and trims language codes, drops empties and
// duplicates, and sorts the rest lexicographically. It fails when nothing
// remains. Pure function; two requests with the same language *set* in any
// order canonicalize identically.
func Canonicalize(languages []string) ([]string, error) {
	seen := make(map[string]struct{}, len(languages))
	out := make([]string, 0, len(languages))
	for _, l := range languages {
		code := strings.ToLower(strings.TrimSpace(l))
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	if len(out) == 0 {
		return nil, invalidLanguageListError{}
	}
	sort.Strings(out)
	return out, nil
}

// KeyFor derives the cache key from an already-canonical language list.
func KeyFor(languages []string, gpu bool) Key {
	suffix := "|cpu"
	if gpu {
		suffix = "|gpu"
	}
	return Key(strings.Join(languages, ",") + suffix)
}

// CanonicalKey canonicalizes languages and derives the cache key in one step.
func CanonicalKey(languages []string, gpu bool) (Key, error) {
	langs, err := Canonicalize(languages)
	if err != nil {
		return "", err
	}
	return KeyFor(langs, gpu), nil
}
