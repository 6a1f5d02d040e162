// Package voice holds the pipeline's unit of work: one logical text-to-speech
// model discovered in the upstream checkpoint repo, plus the discovery and
// delta-resolution logic that decides which voices need a fresh export.
package voice

import (
	"fmt"
	"strings"
)

// Voice is one logical TTS model in the upstream checkpoint repo. Records are
// built fresh on every run and never mutated after construction; Etag is an
// opaque change-detection token read from remote metadata.
type Voice struct {
	Name       string `json:"name"`
	Config     string `json:"config"`
	Checkpoint string `json:"checkpoint"`
	Etag       string `json:"etag"`
}

// DeriveName rewrites a three-part voice name (lang-base-quality) into its
// streaming-variant name (lang-base+RT-quality).
func DeriveName(name string) (string, error) {
	parts := strings.Split(name, "-")
	if len(parts) != 3 {
		return "", fmt.Errorf("voice name %q: want exactly three dash-separated parts", name)
	}
	return strings.Join([]string{parts[0], parts[1] + "+RT", parts[2]}, "-"), nil
}

// DerivedName returns the streaming-variant name for this voice.
func (v Voice) DerivedName() (string, error) {
	return DeriveName(v.Name)
}
