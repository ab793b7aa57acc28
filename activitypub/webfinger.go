package activitypub

import (
	"context"
	"net/url"
	"strings"

	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/util"
	"github.com/pkg/errors"
)

// WebFingerResource is the "acct:" resource for a user@host id.
func WebFingerResource(webFingerID string) string {
	return "acct:" + strings.TrimPrefix(webFingerID, "@")
}

// WebFingerURL is the well-known lookup url on the id's host.
func WebFingerURL(webFingerID string) (string, error) {
	if !domain.IsWebFingerIDValid(webFingerID) {
		return "", errors.Errorf("invalid webfinger id %q", webFingerID)
	}
	host := webFingerID[strings.LastIndex(webFingerID, "@")+1:]
	return "https://" + host + "/.well-known/webfinger?resource=" + url.QueryEscape(WebFingerResource(webFingerID)), nil
}

// ActorURLFromWebFinger picks the ActivityPub self link of a WebFinger
// document.
func ActorURLFromWebFinger(doc util.JSONObject) (string, error) {
	for _, v := range util.Array(doc, "links") {
		link, ok := v.(map[string]any)
		if !ok || util.FirstString(link, "rel") != "self" {
			continue
		}
		typ := util.FirstString(link, "type")
		if typ == ContentType || strings.HasPrefix(typ, "application/ld+json") {
			if href := util.FirstString(link, "href"); href != "" {
				return href, nil
			}
		}
	}
	return "", errors.Errorf("no activitypub self link for %s", util.FirstString(doc, "subject"))
}

// ResolveActorURL looks up user@host through WebFinger.
func ResolveActorURL(ctx context.Context, f Fetcher, webFingerID string) (string, error) {
	u, err := WebFingerURL(webFingerID)
	if err != nil {
		return "", err
	}
	doc, err := f.GetJSON(ctx, u)
	if err != nil {
		return "", errors.Wrapf(err, "webfinger %s", webFingerID)
	}
	return ActorURLFromWebFinger(doc)
}
