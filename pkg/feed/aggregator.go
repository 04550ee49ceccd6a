package feed

import (
	"context"

	"github.com/RyanW02/chainsocial/internal/config"
	"github.com/RyanW02/chainsocial/pkg/interaction"
	"github.com/RyanW02/chainsocial/pkg/ledger"
	"github.com/RyanW02/chainsocial/pkg/profilecache"
	"github.com/RyanW02/chainsocial/pkg/session"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const defaultFanOut = 8

// Aggregator builds the views of the ledger shown to a viewer. Reads go straight to the ledger, except for profiles
// which go through the cache. Everything read is observed into the store before rendering, so that outstanding
// optimistic updates are displayed on top of it.
type Aggregator struct {
	config config.Sync
	logger *zap.Logger
	reader ledger.Reader
	cache  *profilecache.Cache
	store  *interaction.Store
}

type Feed struct {
	Viewer        social.Identity        `json:"viewer"`
	Posts         []interaction.PostView `json:"posts"`
	Sources       int                    `json:"sources"`
	FailedSources int                    `json:"failed_sources"`
}

// source is the result of reading one author's posts.
type source struct {
	author social.Identity
	posts  []social.Post
	liked  []bool
	err    error
}

func NewAggregator(
	cfg config.Sync,
	logger *zap.Logger,
	reader ledger.Reader,
	cache *profilecache.Cache,
	store *interaction.Store,
) *Aggregator {
	return &Aggregator{
		config: cfg,
		logger: logger,
		reader: reader,
		cache:  cache,
		store:  store,
	}
}

func (a *Aggregator) newLimiter() *semaphore.Weighted {
	fanOut := a.config.FeedFanOut
	if fanOut <= 0 {
		fanOut = defaultFanOut
	}

	return semaphore.NewWeighted(int64(fanOut))
}

// limited runs a ledger read once a permit is available. Waiting for a permit fails with a TransientFetchError if
// ctx is cancelled.
func limited[T any](ctx context.Context, limiter *semaphore.Weighted, op string, read func(ctx context.Context) (T, error)) (T, error) {
	if err := limiter.Acquire(ctx, 1); err != nil {
		var zero T
		return zero, ledger.NewTransientFetchError(op, err)
	}
	defer limiter.Release(1)

	return read(ctx)
}

// Build reads the viewer's follow-set, then the posts of every followee and whether the viewer liked each of them.
// A followee whose reads fail is left out of the feed and counted in FailedSources. Posts are in follow-set order,
// then in the order the ledger returned them.
func (a *Aggregator) Build(ctx context.Context, s *session.Session) (Feed, error) {
	if err := session.Require(s); err != nil {
		return Feed{}, err
	}

	viewer := s.Identity()
	epoch := a.store.Epoch()

	following, err := a.reader.GetFollowing(ctx, viewer)
	if err != nil {
		return Feed{}, err
	}

	limiter := a.newLimiter()
	sources := make([]source, len(following))

	group := new(errgroup.Group)
	for i, author := range following {
		i, author := i, author
		group.Go(func() error {
			sources[i] = a.readSource(ctx, limiter, viewer, author)
			return nil
		})
	}

	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return Feed{}, err
	}

	feed := Feed{
		Viewer:  viewer,
		Posts:   make([]interaction.PostView, 0),
		Sources: len(following),
	}

	for _, src := range sources {
		if src.err != nil {
			feed.FailedSources++
			a.logger.Warn("Failed to read feed source", zap.String("author", src.author.String()), zap.Error(src.err))
			continue
		}

		// Nobody is looking at the result any more, so nothing further may reach the store. Sources observed
		// before the cancellation are complete reads and stay.
		if err := ctx.Err(); err != nil {
			return Feed{}, err
		}

		a.store.ObservePosts(src.author, epoch, src.posts, src.liked)
	}

	for _, src := range sources {
		if src.err == nil {
			feed.Posts = append(feed.Posts, a.render(src)...)
		}
	}

	a.logger.Debug(
		"Built feed",
		zap.String("viewer", viewer.String()),
		zap.Int("sources", feed.Sources),
		zap.Int("failed_sources", feed.FailedSources),
		zap.Int("posts", len(feed.Posts)),
	)

	return feed, nil
}

// readSource reads an author's posts, and the viewer's like state of each. Any failure fails the whole source.
func (a *Aggregator) readSource(ctx context.Context, limiter *semaphore.Weighted, viewer, author social.Identity) source {
	src := source{author: author}

	posts, err := limited(ctx, limiter, "get_posts", func(ctx context.Context) ([]social.Post, error) {
		return a.reader.GetPosts(ctx, author)
	})
	if err != nil {
		src.err = err
		return src
	}

	liked := make([]bool, len(posts))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, post := range posts {
		i, key := i, post.Key()
		group.Go(func() error {
			didLike, err := limited(groupCtx, limiter, "did_like", func(ctx context.Context) (bool, error) {
				return a.reader.DidLike(ctx, viewer, key)
			})
			if err != nil {
				return err
			}

			liked[i] = didLike
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		src.err = err
		return src
	}

	src.posts = posts
	src.liked = liked
	return src
}

// render returns the displayed posts of a source. The store's copy of the author's list takes precedence, as it
// may have been committed after this read began.
func (a *Aggregator) render(src source) []interaction.PostView {
	if views, ok := a.store.RenderPosts(src.author); ok {
		return views
	}

	views := make([]interaction.PostView, len(src.posts))
	for i, post := range src.posts {
		views[i] = a.store.RenderPost(post)
	}

	return views
}
