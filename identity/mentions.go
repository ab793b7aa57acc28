package identity

import (
	"context"
	"strings"

	"github.com/andstatus/fedsync/domain"
)

type mention struct {
	username string
	host     string
}

func (m mention) String() string {
	if m.host == "" {
		return "@" + m.username
	}
	return "@" + m.username + "@" + m.host
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isUsernameChar(c byte) bool {
	return isAlnum(c) || c == '_' || c == '.' || c == '-'
}

func isHostChar(c byte) bool {
	return isAlnum(c) || c == '.' || c == '-'
}

// readWhile returns the run of accepted characters starting at from, with
// trailing punctuation dropped, and the index right after it.
func readWhile(text string, from int, accept func(byte) bool) (string, int) {
	j := from
	for j < len(text) && accept(text[j]) {
		j++
	}
	s := strings.TrimRight(text[from:j], ".-")
	return s, from + len(s)
}

// scanMentions finds "@user", "@user@host" and bare "user@host" tokens in
// plain text, in order of appearance.
func scanMentions(text string) []mention {
	var out []mention
	for i := 0; i < len(text); i++ {
		if text[i] != '@' {
			continue
		}
		start := i
		for start > 0 && isUsernameChar(text[start-1]) {
			start--
		}
		if start < i {
			user := strings.TrimLeft(text[start:i], ".-")
			host, end := readWhile(text, i+1, isHostChar)
			if user != "" && strings.Contains(host, ".") {
				out = append(out, mention{username: user, host: host})
			}
			if end > i+1 {
				i = end - 1
			}
			continue
		}

		user, end := readWhile(text, i+1, isUsernameChar)
		if user == "" {
			continue
		}
		if end < len(text) && text[end] == '@' {
			if host, hostEnd := readWhile(text, end+1, isHostChar); strings.Contains(host, ".") {
				out = append(out, mention{username: user, host: host})
				i = hostEnd - 1
				continue
			}
		}
		out = append(out, mention{username: user})
		i = end - 1
	}
	return out
}

// ExtractActorsFromContent turns the mentions in plain text into actors.
// A mention without host is matched against the replied-to actor and the
// author first, then looked up on the known hosts.
func (r *Resolver) ExtractActorsFromContent(ctx context.Context, text string, author, inReplyTo *domain.Actor) ([]*domain.Actor, error) {
	var origin *domain.Origin
	switch {
	case author != nil && author.Origin != nil:
		origin = author.Origin
	case inReplyTo != nil:
		origin = inReplyTo.Origin
	}
	if origin == nil {
		return nil, nil
	}

	var actors []*domain.Actor
	add := func(a *domain.Actor) {
		if a.IsEmpty() {
			return
		}
		for _, existing := range actors {
			if existing.Equals(a) {
				return
			}
		}
		actors = append(actors, a)
	}

	for _, m := range scanMentions(text) {
		if m.host != "" {
			a := domain.ActorFromWebFingerID(origin, m.username+"@"+m.host)
			if !a.IsWebFingerIDValid() {
				continue
			}
			if _, err := r.LookupActorID(ctx, a); err != nil {
				return actors, err
			}
			add(r.Known(a))
			continue
		}
		a, err := r.resolveUsername(ctx, origin, m.username, author, inReplyTo)
		if err != nil {
			return actors, err
		}
		add(a)
	}
	return actors, nil
}

func (r *Resolver) resolveUsername(ctx context.Context, origin *domain.Origin, username string, author, inReplyTo *domain.Actor) (*domain.Actor, error) {
	for _, known := range []*domain.Actor{inReplyTo, author} {
		if known.NonEmpty() && strings.EqualFold(known.Username(), username) {
			return known, nil
		}
	}
	for _, host := range distinctHosts(author.Host(), inReplyTo.Host(), origin.Host) {
		candidate := domain.ActorFromWebFingerID(origin, username+"@"+host)
		if !candidate.IsWebFingerIDValid() {
			continue
		}
		id, err := r.store.ActorIDByWebFingerID(ctx, origin.ID, candidate.WebFingerID())
		if err != nil {
			return nil, err
		}
		if id != 0 {
			candidate.ActorID = id
			return r.Known(candidate), nil
		}
	}
	return domain.ActorFromUsername(origin, username), nil
}

func distinctHosts(hosts ...string) []string {
	var out []string
	for _, h := range hosts {
		if h == "" {
			continue
		}
		dup := false
		for _, o := range out {
			dup = dup || o == h
		}
		if !dup {
			out = append(out, h)
		}
	}
	return out
}
