package foldertree

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

func folder(id int64, parent int64) domain.Folder {
	f := domain.Folder{ID: id, Name: "f"}
	if parent != 0 {
		f.ParentID = domain.Ptr(parent)
	}
	return f
}

func TestPostOrderChildrenFirst(t *testing.T) {
	tr := NewTree([]domain.Folder{
		folder(1, 0),
		folder(2, 1),
		folder(3, 2),
		folder(4, 1),
		folder(5, 0),
	})

	assert.Equal(t, []int64{3, 2, 4, 1}, tr.PostOrder(1))
	assert.Equal(t, []int64{3, 2, 4, 1, 5}, tr.PostOrderAll())
	assert.Nil(t, tr.PostOrder(99))
}

func TestPostOrderAllVisitsCyclesOnce(t *testing.T) {
	tr := NewTree([]domain.Folder{
		folder(1, 0),
		folder(2, 3),
		folder(3, 2),
		folder(4, 4),
		folder(5, 42),
	})

	order := tr.PostOrderAll()
	assert.Len(t, order, 5)
	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5}, order)
}

func TestBreadcrumb(t *testing.T) {
	tr := NewTree([]domain.Folder{
		folder(1, 0),
		folder(2, 1),
		folder(3, 2),
		folder(7, 8),
		folder(8, 7),
	})

	crumbs := tr.Breadcrumb(3)
	ids := make([]int64, len(crumbs))
	for i, f := range crumbs {
		ids[i] = f.ID
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)

	assert.Len(t, tr.Breadcrumb(7), 2)
	assert.Empty(t, tr.Breadcrumb(99))

	assert.True(t, tr.IsWithin(3, 1))
	assert.True(t, tr.IsWithin(1, 1))
	assert.False(t, tr.IsWithin(1, 3))
}
