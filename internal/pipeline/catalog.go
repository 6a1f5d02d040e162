package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/buger/jsonparser"

	"github.com/mush42/piper-rt-maker/internal/voice"
)

// DeriveCatalog filters the third-party voice catalog down to the voices in
// the published set and rewrites each entry for its streaming variant: the
// original key moves to "base", "key" becomes the derived name, "streaming"
// is set, and "files" lists exactly the derived archive. Entry fields other
// than the rewritten ones are preserved verbatim.
func DeriveCatalog(catalog map[string]json.RawMessage, published map[string]bool) (map[string]json.RawMessage, error) {
	derived := make(map[string]json.RawMessage)
	for name, entry := range catalog {
		if !published[name] {
			continue
		}
		derivedName, err := voice.DeriveName(name)
		if err != nil {
			return nil, fmt.Errorf("catalog key %q: %w", name, err)
		}

		rewritten, err := rewriteCatalogEntry(entry, derivedName)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %q: %w", name, err)
		}
		derived[derivedName] = rewritten
	}
	return derived, nil
}

func rewriteCatalogEntry(entry json.RawMessage, derivedName string) (json.RawMessage, error) {
	base, err := jsonparser.GetString(entry, "key")
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}

	// Work on a copy so the caller's catalog bytes stay intact.
	out := append(json.RawMessage(nil), entry...)

	baseVal, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("encode base: %w", err)
	}
	if out, err = jsonparser.Set(out, baseVal, "base"); err != nil {
		return nil, fmt.Errorf("set base: %w", err)
	}

	keyVal, err := json.Marshal(derivedName)
	if err != nil {
		return nil, fmt.Errorf("encode key: %w", err)
	}
	if out, err = jsonparser.Set(out, keyVal, "key"); err != nil {
		return nil, fmt.Errorf("set key: %w", err)
	}

	if out, err = jsonparser.Set(out, []byte("true"), "streaming"); err != nil {
		return nil, fmt.Errorf("set streaming: %w", err)
	}

	filesVal, err := json.Marshal([]string{derivedName + ".tar.gz"})
	if err != nil {
		return nil, fmt.Errorf("encode files: %w", err)
	}
	if out, err = jsonparser.Set(out, filesVal, "files"); err != nil {
		return nil, fmt.Errorf("set files: %w", err)
	}

	return out, nil
}
