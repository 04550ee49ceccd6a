package ledgertest

import (
	"github.com/RyanW02/chainsocial/pkg/types/social"
)

// The Seed functions set up ledger state directly, as if the writes had been confirmed long ago.

func (l *Ledger) SeedUser(id social.Identity, username, bio string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.register(id, username, bio)
}

func (l *Ledger) SeedPost(owner social.Identity, content, mediaURI string) social.Post {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createPost(owner, content, mediaURI)
}

func (l *Ledger) SeedFollow(follower, followee social.Identity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.follow(follower, followee)
}

// SeedLikes adds likes from each of the given identities.
func (l *Ledger) SeedLikes(key social.PostKey, likers ...social.Identity) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.findPost(key)
	if !ok {
		panic("seeding likes on unknown post " + key.String())
	}

	for _, id := range likers {
		l.likers[key] = append(l.likers[key], id)
		l.posts[key.Owner][i].LikesCount++
	}
}

func (l *Ledger) SeedComment(key social.PostKey, commenter social.Identity, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addComment(key, commenter, text)
}

// Post returns the current ledger state of a post.
func (l *Ledger) Post(key social.PostKey) (social.Post, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.findPost(key)
	if !ok {
		return social.Post{}, false
	}

	return l.posts[key.Owner][i], true
}

// The following must be called with mu held.

func (l *Ledger) register(id social.Identity, username, bio string) {
	if _, ok := l.profiles[id]; !ok {
		l.users = append(l.users, id)
	}

	profile := l.profiles[id]
	profile.Identity = id
	profile.Username = username
	profile.Bio = bio
	profile.Registered = true
	l.profiles[id] = profile
}

func (l *Ledger) createPost(owner social.Identity, content, mediaURI string) social.Post {
	l.nextPostId[owner]++

	post := social.Post{
		Owner:    owner,
		PostID:   l.nextPostId[owner],
		Content:  content,
		MediaURI: mediaURI,
	}

	l.posts[owner] = append(l.posts[owner], post)
	l.adjustProfile(owner, func(p *social.Profile) { p.PostCount++ })
	return post
}

func (l *Ledger) addComment(key social.PostKey, commenter social.Identity, text string) {
	l.comments[key] = append(l.comments[key], social.Comment{
		Commenter: commenter,
		Content:   text,
		Timestamp: l.now(),
	})

	if i, ok := l.findPost(key); ok {
		l.posts[key.Owner][i].CommentsCount++
	}
}

func (l *Ledger) follow(follower, followee social.Identity) {
	l.following[follower] = append(l.following[follower], followee)
	l.followers[followee] = append(l.followers[followee], follower)
	l.adjustProfile(follower, func(p *social.Profile) { p.FollowingCount++ })
	l.adjustProfile(followee, func(p *social.Profile) { p.FollowerCount++ })
}

func (l *Ledger) adjustProfile(id social.Identity, f func(p *social.Profile)) {
	profile, ok := l.profiles[id]
	if !ok {
		return
	}

	f(&profile)
	l.profiles[id] = profile
}
