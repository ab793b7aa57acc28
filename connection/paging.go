package connection

import (
	"net/url"
	"strconv"
)

// idPaging pages by item ids, as Twitter and Mastodon do.
type idPaging struct {
	limitParam string
}

func (p idPaging) Params(req TimelineRequest) (url.Values, string) {
	v := url.Values{}
	if req.Limit > 0 {
		v.Set(p.limitParam, strconv.Itoa(req.Limit))
	}
	if req.Youngest.IsPresent() {
		v.Set("since_id", req.Youngest.String())
	}
	if req.Oldest.IsPresent() {
		v.Set("max_id", req.Oldest.String())
	}
	return v, ""
}

func (p idPaging) Positions(page *Page, _ *Response, req TimelineRequest) {
	page.ThisPosition = req.Oldest
	if page.ThisPosition.IsEmpty() {
		page.ThisPosition = req.Youngest
	}
	if n := len(page.Items); n > 0 {
		page.OlderPosition = page.Items[0].Position()
		page.YoungerPosition = page.Items[n-1].Position()
	} else {
		page.OlderPosition = req.Oldest
		page.YoungerPosition = req.Youngest
	}
	page.AllLoaded = len(page.Items) == 0
}

func (p idPaging) NewestFirst() bool { return true }

// linkPaging adds Mastodon's Link header: without a "next" link there is
// nothing older to load.
type linkPaging struct {
	ids idPaging
}

func (p linkPaging) Params(req TimelineRequest) (url.Values, string) {
	return p.ids.Params(req)
}

func (p linkPaging) Positions(page *Page, resp *Response, req TimelineRequest) {
	p.ids.Positions(page, resp, req)
	if resp != nil && resp.Links != nil && !req.Youngest.IsPresent() {
		_, hasNext := resp.Links["next"]
		page.AllLoaded = page.AllLoaded || !hasNext
	}
}

func (p linkPaging) NewestFirst() bool { return true }

// collectionPaging follows Activity Streams page links, which are urls.
type collectionPaging struct{}

func (collectionPaging) Params(req TimelineRequest) (url.Values, string) {
	switch {
	case req.Oldest.IsPresent():
		return nil, req.Oldest.String()
	case req.Youngest.IsPresent():
		return nil, req.Youngest.String()
	}
	return nil, ""
}

func (collectionPaging) Positions(page *Page, _ *Response, req TimelineRequest) {
	if page.ThisPosition.IsEmpty() {
		page.ThisPosition = req.Oldest
	}
}

func (collectionPaging) NewestFirst() bool { return true }
