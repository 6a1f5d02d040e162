package voice

import (
	"reflect"
	"testing"
)

func TestDelta_NewCheckpointDetected(t *testing.T) {
	published := []Voice{
		{Name: "en-amy-medium", Config: "a", Checkpoint: "b", Etag: "x"},
	}
	discovered := []Voice{
		{Name: "en-amy-medium", Config: "a", Checkpoint: "b", Etag: "x"},
		{Name: "en-amy-medium", Config: "a", Checkpoint: "c", Etag: "y"},
	}

	got := Delta(discovered, published)
	want := []Voice{discovered[1]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Delta = %+v; want %+v", got, want)
	}
}

func TestDelta_NameNotCompared(t *testing.T) {
	published := []Voice{
		{Name: "old-name-here", Config: "a", Checkpoint: "b", Etag: "x"},
	}
	discovered := []Voice{
		{Name: "new-name-here", Config: "a", Checkpoint: "b", Etag: "x"},
	}

	if got := Delta(discovered, published); len(got) != 0 {
		t.Errorf("Delta = %+v; a renamed but otherwise identical voice should be skipped", got)
	}
}

func TestDelta_ChangedEtagTriggersReexport(t *testing.T) {
	published := []Voice{
		{Name: "en-amy-medium", Config: "a", Checkpoint: "b", Etag: "x"},
	}
	discovered := []Voice{
		{Name: "en-amy-medium", Config: "a", Checkpoint: "b", Etag: "z"},
	}

	got := Delta(discovered, published)
	if len(got) != 1 || got[0].Etag != "z" {
		t.Errorf("Delta = %+v; a changed etag should make the voice new", got)
	}
}

func TestDelta_EmptyBaselineEverythingNew(t *testing.T) {
	discovered := []Voice{
		{Name: "en-amy-medium", Config: "a", Checkpoint: "b", Etag: "x"},
		{Name: "ar-kareem-low", Config: "c", Checkpoint: "d", Etag: "y"},
	}

	got := Delta(discovered, nil)
	if !reflect.DeepEqual(got, discovered) {
		t.Errorf("Delta = %+v; want all discovered voices", got)
	}
}

func TestDelta_PureAndIdempotent(t *testing.T) {
	published := []Voice{
		{Name: "en-amy-medium", Config: "a", Checkpoint: "b", Etag: "x"},
	}
	discovered := []Voice{
		{Name: "en-amy-medium", Config: "a", Checkpoint: "b", Etag: "x"},
		{Name: "ar-kareem-low", Config: "c", Checkpoint: "d", Etag: "y"},
	}
	discoveredCopy := append([]Voice(nil), discovered...)
	publishedCopy := append([]Voice(nil), published...)

	first := Delta(discovered, published)
	second := Delta(discovered, published)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated Delta differs: %+v vs %+v", first, second)
	}
	if !reflect.DeepEqual(discovered, discoveredCopy) || !reflect.DeepEqual(published, publishedCopy) {
		t.Error("Delta mutated its inputs")
	}
}
