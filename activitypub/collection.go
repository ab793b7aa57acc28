package activitypub

import (
	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/util"
	log "github.com/sirupsen/logrus"
)

// Collection is an Activity Streams (Ordered)Collection or CollectionPage.
// Any of the page pointers may be absent, inline, or an id-only reference.
type Collection struct {
	ID         string
	Type       string
	TotalItems int64
	Items      []any

	First   *Collection
	Prev    *Collection
	Current *Collection
	Next    *Collection
	Last    *Collection
}

// CollectionFrom accepts an inline collection object or a bare id. It
// returns nil for anything else.
func CollectionFrom(v any) *Collection {
	obj, id := util.ObjectOrID(v)
	if obj == nil {
		if id == "" {
			return nil
		}
		return &Collection{ID: id}
	}
	return ParseCollection(obj)
}

func ParseCollection(obj util.JSONObject) *Collection {
	if obj == nil {
		return nil
	}
	c := &Collection{
		ID:         util.FirstString(obj, "id"),
		Type:       util.FirstString(obj, "type"),
		TotalItems: util.FirstInt(obj, "totalItems"),
		Items:      util.Array(obj, "orderedItems"),
	}
	if c.Items == nil {
		c.Items = util.Array(obj, "items")
	}
	c.First = CollectionFrom(obj["first"])
	c.Prev = CollectionFrom(obj["prev"])
	c.Current = CollectionFrom(obj["current"])
	c.Next = CollectionFrom(obj["next"])
	c.Last = CollectionFrom(obj["last"])
	return c
}

// IsEmpty reports whether the collection carries neither items nor pages.
func (c *Collection) IsEmpty() bool {
	if c == nil {
		return true
	}
	return len(c.Items) == 0 && c.First.IsEmpty() && c.Prev.IsEmpty() &&
		c.Current.IsEmpty() && c.Next.IsEmpty() && c.Last.IsEmpty()
}

// ID of a page pointer, or "".
func (c *Collection) PageID() string {
	if c == nil {
		return ""
	}
	return c.ID
}

func (c *Collection) pages() []*Collection {
	return []*Collection{c.First, c.Prev, c.Current, c.Next, c.Last}
}

// Emptiable is satisfied by the domain types produced from collection items.
type Emptiable interface {
	IsEmpty() bool
}

// MapAll flattens the items of the collection and of its inline pages in
// the order self, first, prev, current, next, last. Inline objects go to
// fromObject, bare ids to fromID; a nil fromID skips bare ids. Empty results
// are dropped and per-item errors are logged and skipped.
func MapAll[T Emptiable](c *Collection, fromObject func(util.JSONObject) (T, error), fromID func(string) (T, error)) []T {
	var out []T
	read, skipped := mapInto(c, fromObject, fromID, &out)
	if skipped > 0 {
		log.Warnf("Collection: Read %d items, skipped %d from %s", read, skipped, c.PageID())
	}
	return out
}

// MapObjects is MapAll that ignores bare id references.
func MapObjects[T Emptiable](c *Collection, fromObject func(util.JSONObject) (T, error)) []T {
	return MapAll[T](c, fromObject, nil)
}

func mapInto[T Emptiable](c *Collection, fromObject func(util.JSONObject) (T, error), fromID func(string) (T, error), out *[]T) (read, skipped int) {
	if c == nil {
		return 0, 0
	}
	for _, item := range c.Items {
		var (
			mapped T
			err    error
		)
		obj, id := util.ObjectOrID(item)
		switch {
		case obj != nil:
			mapped, err = fromObject(obj)
		case id != "" && fromID != nil:
			mapped, err = fromID(id)
		default:
			continue
		}
		read++
		if err != nil {
			skipped++
			log.WithError(err).Warnf("Collection: Skipping item of %s", c.PageID())
			continue
		}
		if mapped.IsEmpty() {
			continue
		}
		*out = append(*out, mapped)
	}
	for _, page := range c.pages() {
		r, s := mapInto(page, fromObject, fromID, out)
		read += r
		skipped += s
	}
	return read, skipped
}

// PageFrom wraps mapped items with the cursors of the collection. Activity
// Streams pages run newest first, so prev points to younger items and next
// to older ones.
func PageFrom[T any](c *Collection, items []T) *domain.InputPage[T] {
	page := domain.NewInputPage(items)
	if c == nil {
		page.AllLoaded = true
		return page
	}
	page.ThisPosition = domain.NewPosition(c.ID)
	page.FirstPosition = domain.NewPosition(c.First.PageID())
	page.YoungerPosition = domain.NewPosition(c.Prev.PageID())
	page.OlderPosition = domain.NewPosition(c.Next.PageID())
	if page.OlderPosition.IsEmpty() && c.First != nil {
		page.OlderPosition = domain.NewPosition(c.First.Next.PageID())
	}
	page.AllLoaded = page.OlderPosition.IsEmpty()
	return page
}
