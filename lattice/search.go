package lattice

import (
	"gonum.org/v1/gonum/spatial/kdtree"
)

// site is a particle position that remembers its index in the cloud
type site struct {
	X     [3]float64
	index int
}

func (s site) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return s.X[d] - c.(site).X[d]
}

func (s site) Dims() int { return 3 }

// Distance returns the squared Euclidean distance
func (s site) Distance(c kdtree.Comparable) float64 {
	q := c.(site)
	dx, dy, dz := s.X[0]-q.X[0], s.X[1]-q.X[1], s.X[2]-q.X[2]
	return dx*dx + dy*dy + dz*dz
}

type sites []site

func (p sites) Index(i int) kdtree.Comparable         { return p[i] }
func (p sites) Len() int                              { return len(p) }
func (p sites) Pivot(d kdtree.Dim) int                { return plane{sites: p, Dim: d}.Pivot() }
func (p sites) Slice(start, end int) kdtree.Interface { return p[start:end] }

type plane struct {
	kdtree.Dim
	sites
}

func (p plane) Less(i, j int) bool { return p.sites[i].X[p.Dim] < p.sites[j].X[p.Dim] }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.sites = p.sites[start:end]
	return p
}
func (p plane) Swap(i, j int) { p.sites[i], p.sites[j] = p.sites[j], p.sites[i] }

// neighborIndex answers fixed-radius queries over a static set of positions
type neighborIndex struct {
	tree *kdtree.Tree
}

func newNeighborIndex(xs [][3]float64) *neighborIndex {
	pts := make(sites, len(xs))
	for i, x := range xs {
		pts[i] = site{X: x, index: i}
	}
	return &neighborIndex{tree: kdtree.New(pts, false)}
}

// within returns the indices of all positions no farther than radius from
// x, excluding self
func (ni *neighborIndex) within(x [3]float64, self int, radius float64) []int {
	keeper := kdtree.NewDistKeeper(radius * radius)
	ni.tree.NearestSet(keeper, site{X: x, index: -1})

	idx := make([]int, 0, keeper.Len())
	for _, c := range keeper.Heap {
		if c.Comparable == nil {
			continue
		}
		if j := c.Comparable.(site).index; j != self {
			idx = append(idx, j)
		}
	}
	return idx
}
