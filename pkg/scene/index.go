package scene

import (
	"sort"

	"github.com/chazu/furnish/pkg/geom"
	"github.com/dhconnelly/rtreego"
)

// indexPad widens stored and query rectangles so that touching and
// degenerate boxes are still reported by the tree. Callers always follow
// up with an exact test.
const indexPad = 1e-6

// indexEntry is the value stored in the R-tree. Its rectangle is captured
// at insert time so Delete can find the leaf again after the object moves.
type indexEntry struct {
	handle Handle
	rect   rtreego.Rect
}

func (e *indexEntry) Bounds() rtreego.Rect {
	return e.rect
}

// Index is a 3D R-tree over placed object boxes.
type Index struct {
	tree    *rtreego.Rtree
	entries map[Handle]*indexEntry
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		tree:    rtreego.NewTree(3, 2, 8),
		entries: make(map[Handle]*indexEntry),
	}
}

func toRect(b geom.Box) rtreego.Rect {
	r, err := rtreego.NewRectFromPoints(
		rtreego.Point{b.Min.X - indexPad, b.Min.Y - indexPad, b.Min.Z - indexPad},
		rtreego.Point{b.Max.X + indexPad, b.Max.Y + indexPad, b.Max.Z + indexPad},
	)
	if err != nil {
		// Both points always have three coordinates.
		panic(err)
	}
	return r
}

// Insert adds h with box b, replacing any previous entry for h.
func (ix *Index) Insert(h Handle, b geom.Box) {
	ix.Delete(h)
	e := &indexEntry{handle: h, rect: toRect(b)}
	ix.entries[h] = e
	ix.tree.Insert(e)
}

// Update moves h to box b.
func (ix *Index) Update(h Handle, b geom.Box) {
	ix.Insert(h, b)
}

// Delete removes h. Unknown handles are ignored.
func (ix *Index) Delete(h Handle) {
	e, ok := ix.entries[h]
	if !ok {
		return
	}
	ix.tree.Delete(e)
	delete(ix.entries, h)
}

// Search returns the handles whose boxes intersect b, sorted.
func (ix *Index) Search(b geom.Box) []Handle {
	hits := ix.tree.SearchIntersect(toRect(b))
	out := make([]Handle, 0, len(hits))
	for _, sp := range hits {
		out = append(out, sp.(*indexEntry).handle)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of indexed handles.
func (ix *Index) Len() int {
	return len(ix.entries)
}
