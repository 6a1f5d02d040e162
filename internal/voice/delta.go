package voice

// Delta returns the discovered voices that have no exact match in the
// published baseline. A match requires config path, checkpoint path and etag
// to all be equal; the name is deliberately excluded, so a checkpoint whose
// content changed under the same name is re-exported. Pure function: neither
// slice is modified.
func Delta(discovered, published []Voice) []Voice {
	var delta []Voice
	for _, v := range discovered {
		if !Contains(published, v) {
			delta = append(delta, v)
		}
	}
	return delta
}

// Contains reports whether voices holds a record matching v on the
// (config, checkpoint, etag) tuple.
func Contains(voices []Voice, v Voice) bool {
	for _, p := range voices {
		if p.Config == v.Config && p.Checkpoint == v.Checkpoint && p.Etag == v.Etag {
			return true
		}
	}
	return false
}
