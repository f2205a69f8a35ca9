package metastore

// DeepMerge merges overlay onto base recursively and returns a new
// mapping; neither input is mutated. Where both sides hold a nested
// mapping at the same key the two are merged; otherwise the overlay
// value wins. Sibling keys untouched by the overlay are preserved, so
// one component's update never clobbers another's records.
func DeepMerge(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, ov := range overlay {
		bm, baseIsMap := out[k].(map[string]any)
		om, overlayIsMap := ov.(map[string]any)
		if baseIsMap && overlayIsMap {
			out[k] = DeepMerge(bm, om)
			continue
		}
		out[k] = ov
	}
	return out
}
