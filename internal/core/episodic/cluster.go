package episodic

import (
	"sort"

	"github.com/animahq/anima/internal/core/common"
	"github.com/animahq/anima/internal/core/model"
)

// ClusterBySimilarity partitions episodes with label propagation over an
// embedding-similarity graph. Two episodes are neighbors when their cosine
// similarity reaches the threshold. Every episode lands in exactly one
// cluster; unrelated episodes come back as singletons.
func ClusterBySimilarity(episodes []*model.Episode, threshold float64, maxIterations int) [][]*model.Episode {
	if len(episodes) == 0 {
		return nil
	}
	if maxIterations <= 0 {
		maxIterations = 20
	}

	// Adjacency by index, weighted 1 per qualifying pair.
	adj := make(map[int]map[int]int, len(episodes))
	for i := range episodes {
		adj[i] = make(map[int]int)
	}
	for i := 0; i < len(episodes); i++ {
		for j := i + 1; j < len(episodes); j++ {
			if common.Cosine(episodes[i].Embedding, episodes[j].Embedding) >= threshold {
				adj[i][j]++
				adj[j][i]++
			}
		}
	}

	// Each episode starts with its own label.
	labels := make([]string, len(episodes))
	for i, ep := range episodes {
		labels[i] = ep.UUID
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := 0

		for i := range episodes {
			neighbors := adj[i]
			if len(neighbors) == 0 {
				continue
			}

			counts := make(map[string]int)
			maxCount := 0
			for j, weight := range neighbors {
				counts[labels[j]] += weight
				if counts[labels[j]] > maxCount {
					maxCount = counts[labels[j]]
				}
			}

			var candidates []string
			for label, count := range counts {
				if count == maxCount {
					candidates = append(candidates, label)
				}
			}
			// Deterministic tie-break: lexicographically largest label.
			sort.Strings(candidates)
			best := candidates[len(candidates)-1]

			if labels[i] != best {
				labels[i] = best
				changed++
			}
		}

		if changed == 0 {
			break
		}
	}

	grouped := make(map[string][]*model.Episode)
	order := make([]string, 0)
	for i, ep := range episodes {
		if _, seen := grouped[labels[i]]; !seen {
			order = append(order, labels[i])
		}
		grouped[labels[i]] = append(grouped[labels[i]], ep)
	}

	clusters := make([][]*model.Episode, 0, len(order))
	for _, label := range order {
		clusters = append(clusters, grouped[label])
	}
	return clusters
}
