package mixing

import (
	"fmt"
	"sort"

	"github.com/desertthunder/setlist/internal/models"
)

// DefaultMaxClusters is the upper bound on groups produced by [Grouper].
const DefaultMaxClusters = 8

// Assignment maps each input position to a dense cluster label in 0..k-1.
type Assignment []int

// Clusterer partitions points given a precomputed symmetric distance matrix.
//
// Implementations must return exactly len(dist) labels, dense in 0..k-1, for 0 < k <= len(dist).
type Clusterer interface {
	Cluster(dist [][]float64, k int) (Assignment, error)
}

// CompleteLinkage is agglomerative clustering where the distance between two clusters is the largest
// distance between any of their members.
//
// Clusters are kept ordered by their lowest member index. On equal distances the pair found first in that
// order merges first, and labels follow that order, so results are reproducible.
type CompleteLinkage struct{}

// Cluster merges the closest pair of clusters until k remain.
func (CompleteLinkage) Cluster(dist [][]float64, k int) (Assignment, error) {
	n := len(dist)
	for i, row := range dist {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidDistances, i, len(row), n)
		}
	}
	if k <= 0 {
		return nil, ErrInvalidClusterCount
	}
	if n == 0 {
		return Assignment{}, nil
	}
	k = min(k, n)

	members := make([][]int, n)
	link := make([][]float64, n)
	for i := range n {
		members[i] = []int{i}
		link[i] = append([]float64(nil), dist[i]...)
	}

	for len(members) > k {
		a, b := 0, 1
		best := link[0][1]
		for i := range members {
			for j := i + 1; j < len(members); j++ {
				if link[i][j] < best {
					a, b, best = i, j, link[i][j]
				}
			}
		}

		members[a] = append(members[a], members[b]...)
		for c := range members {
			d := max(link[a][c], link[b][c])
			link[a][c] = d
			link[c][a] = d
		}
		link[a][a] = 0

		members = append(members[:b], members[b+1:]...)
		link = append(link[:b], link[b+1:]...)
		for c := range link {
			link[c] = append(link[c][:b], link[c][b+1:]...)
		}
	}

	labels := make(Assignment, n)
	for label, group := range members {
		for _, idx := range group {
			labels[idx] = label
		}
	}
	return labels, nil
}

// DistanceMatrix builds the symmetric matrix fed to a [Clusterer].
//
// The cost function is directional, so only the forward cost from the earlier track to the later one (i < j)
// is computed and mirrored to (j, i). The diagonal is zero.
func DistanceMatrix(scorer Scorer, records []models.FeatureRecord) [][]float64 {
	n := len(records)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := range n {
		for j := i + 1; j < n; j++ {
			d := scorer.Cost(records[i], records[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// Grouping is the result of [Grouper.Group]. Order and Clusters come from the same clustering step.
type Grouping struct {
	Order    []string         `json:"order"`    // Track IDs, clusters concatenated by ascending label
	Indices  []int            `json:"indices"`  // Positions into the input slice, aligned with Order
	Clusters map[int][]string `json:"clusters"` // Label to tempo-sorted member IDs
	Labels   Assignment       `json:"labels"`   // Label per input position
}

// Grouper clusters tracks by transition cost and orders them cluster by cluster.
type Grouper struct {
	scorer      Scorer
	clusterer   Clusterer
	maxClusters int
}

// NewGrouper returns a [Grouper]. A nil clusterer selects [CompleteLinkage].
func NewGrouper(scorer Scorer, clusterer Clusterer, maxClusters int) (*Grouper, error) {
	if maxClusters <= 0 {
		return nil, ErrInvalidClusterCount
	}
	if clusterer == nil {
		clusterer = CompleteLinkage{}
	}
	return &Grouper{scorer: scorer, clusterer: clusterer, maxClusters: maxClusters}, nil
}

// Group partitions records into at most min(maxClusters, len(records)) clusters, sorts each cluster by
// tempo ascending, and concatenates clusters in ascending label order.
func (g *Grouper) Group(records []models.FeatureRecord) (Grouping, error) {
	n := len(records)
	if n == 0 {
		return Grouping{Clusters: map[int][]string{}, Labels: Assignment{}}, nil
	}

	k := min(g.maxClusters, n)
	labels, err := g.clusterer.Cluster(DistanceMatrix(g.scorer, records), k)
	if err != nil {
		return Grouping{}, fmt.Errorf("clustering failed: %w", err)
	}
	if len(labels) != n {
		return Grouping{}, fmt.Errorf("clustering failed: got %d labels for %d tracks", len(labels), n)
	}

	byLabel := make(map[int][]int, k)
	for idx, label := range labels {
		if label < 0 || label >= k {
			return Grouping{}, fmt.Errorf("clustering failed: label %d outside 0..%d", label, k-1)
		}
		byLabel[label] = append(byLabel[label], idx)
	}

	keys := make([]int, 0, len(byLabel))
	for label := range byLabel {
		keys = append(keys, label)
	}
	sort.Ints(keys)

	grouping := Grouping{
		Order:    make([]string, 0, n),
		Indices:  make([]int, 0, n),
		Clusters: make(map[int][]string, len(keys)),
		Labels:   labels,
	}
	for _, label := range keys {
		members := byLabel[label]
		sort.SliceStable(members, func(i, j int) bool {
			return records[members[i]].Tempo < records[members[j]].Tempo
		})

		ids := make([]string, len(members))
		for i, idx := range members {
			ids[i] = records[idx].ID
		}
		grouping.Clusters[label] = ids
		grouping.Order = append(grouping.Order, ids...)
		grouping.Indices = append(grouping.Indices, members...)
	}

	return grouping, nil
}
