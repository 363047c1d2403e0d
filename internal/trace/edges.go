package trace

// ExtractEdges scans consecutive sample pairs and emits rise and fall edges
// for every monitored channel. An edge is stamped with the index of the
// second sample of the transition converted to seconds, the sample where the
// new level is first observed. Chart comparisons against reference captures
// depend on this convention; do not move the timestamp to the first sample.
//
// A channel that never toggles maps to an empty sequence. An empty capture
// or a non-positive sample rate yields empty sequences for every channel.
func ExtractEdges(samples []Sample, channels []Channel, sampleRate float64) map[Channel][]Edge {
	edges := make(map[Channel][]Edge, len(channels))
	for _, ch := range channels {
		edges[ch] = nil
	}
	if sampleRate <= 0 {
		return edges
	}

	dt := 1 / sampleRate
	for i := 1; i < len(samples); i++ {
		for _, ch := range channels {
			mask := ch.Bit()
			prev := samples[i-1]&mask != 0
			curr := samples[i]&mask != 0

			switch {
			case curr && !prev:
				edges[ch] = append(edges[ch], Edge{Kind: Rise, Time: float64(i) * dt})
			case !curr && prev:
				edges[ch] = append(edges[ch], Edge{Kind: Fall, Time: float64(i) * dt})
			}
		}
	}
	return edges
}
