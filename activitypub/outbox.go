package activitypub

import (
	"time"

	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/util"
)

// Builders for client-to-server activities posted to the account's outbox.
// The server assigns ids, so none are set here.

func newActivity(typ, actorURI string, object any) util.JSONObject {
	return util.JSONObject{
		"@context": contextURL,
		"type":     typ,
		"actor":    actorURI,
		"object":   object,
	}
}

// NoteObject renders a note for Create and Update.
func NoteObject(note *domain.Note, actorURI, followersURI string) util.JSONObject {
	obj := util.JSONObject{
		"type":         "Note",
		"attributedTo": actorURI,
		"content":      note.Content,
	}
	if domain.IsRealOid(note.OID) {
		obj["id"] = note.OID
	}
	if note.Name != "" {
		obj["name"] = note.Name
	}
	if note.Summary != "" {
		obj["summary"] = note.Summary
	}
	if note.Sensitive {
		obj["sensitive"] = true
	}
	if reply := note.InReplyToNote(); reply != nil && domain.IsRealOid(reply.OID) {
		obj["inReplyTo"] = reply.OID
	}

	to, cc := recipients(note, followersURI)
	if len(to) > 0 {
		obj["to"] = to
	}
	if len(cc) > 0 {
		obj["cc"] = cc
	}

	var attachments []util.JSONObject
	for _, a := range note.Attachments {
		attachments = append(attachments, util.JSONObject{
			"type":      "Document",
			"url":       a.URI,
			"mediaType": a.MimeType,
		})
	}
	if len(attachments) > 0 {
		obj["attachment"] = attachments
	}
	return obj
}

func recipients(note *domain.Note, followersURI string) (to, cc []string) {
	v := note.Visibility()
	if v.IsPublic() {
		to = append(to, PublicCollection)
	}
	if v.IsFollowers() && followersURI != "" {
		cc = append(cc, followersURI)
	}
	for _, actor := range note.Audience().Actors() {
		if domain.IsRealOid(actor.OID) {
			to = append(to, actor.OID)
		}
	}
	return to, cc
}

// NewCreate builds a Create for a new note
func NewCreate(note *domain.Note, actorURI, followersURI string) util.JSONObject {
	create := newActivity("Create", actorURI, NoteObject(note, actorURI, followersURI))
	create["published"] = time.Now().UTC().Format(time.RFC3339)
	return create
}

func NewUpdate(note *domain.Note, actorURI, followersURI string) util.JSONObject {
	return newActivity("Update", actorURI, NoteObject(note, actorURI, followersURI))
}

func NewDelete(actorURI, noteOID string) util.JSONObject {
	return newActivity("Delete", actorURI, noteOID)
}

func NewLike(actorURI, noteOID string) util.JSONObject {
	return newActivity("Like", actorURI, noteOID)
}

func NewAnnounce(actorURI, noteOID string) util.JSONObject {
	announce := newActivity("Announce", actorURI, noteOID)
	announce["to"] = []string{PublicCollection}
	return announce
}

// NewFollow sends a Follow activity to a remote actor
func NewFollow(actorURI, objActorOID string) util.JSONObject {
	return newActivity("Follow", actorURI, objActorOID)
}

// NewUndo wraps a previously built activity.
func NewUndo(actorURI string, inner util.JSONObject) util.JSONObject {
	undone := util.JSONObject{}
	for k, v := range inner {
		if k != "@context" {
			undone[k] = v
		}
	}
	return newActivity("Undo", actorURI, undone)
}
