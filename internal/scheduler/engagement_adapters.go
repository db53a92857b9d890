package scheduler

import (
	"context"
	"errors"

	"github.com/vouse/postqueue/internal/domain/engagement"
	"github.com/vouse/postqueue/internal/domain/post"
	"github.com/vouse/postqueue/internal/domain/user"
	"github.com/vouse/postqueue/internal/twitter"
)

// TwitterMetricsFetcher adapts the Twitter client to the engagement
// domain's narrow MetricsFetcher contract, keeping internal/domain/
// engagement free of the twitter package import.
type TwitterMetricsFetcher struct {
	users      *user.Service
	twitterCli *twitter.Client
}

func NewTwitterMetricsFetcher(users *user.Service, twitterCli *twitter.Client) *TwitterMetricsFetcher {
	return &TwitterMetricsFetcher{users: users, twitterCli: twitterCli}
}

func (f *TwitterMetricsFetcher) FetchMetrics(ctx context.Context, userID, tweetID string) (engagement.Snapshot, error) {
	tokens, err := f.users.GetPlaintextTokens(ctx, userID)
	if err != nil {
		return engagement.Snapshot{}, err
	}
	if tokens == nil {
		return engagement.Snapshot{}, engagement.ErrFetchFailed
	}

	m, err := f.twitterCli.GetTweetMetrics(ctx, userID, tweetID, tokens.AccessToken)
	if err != nil {
		return engagement.Snapshot{}, err
	}
	return engagement.Snapshot{
		Likes: m.Likes, Retweets: m.Retweets, Quotes: m.Quotes,
		Replies: m.Replies, Impressions: m.Impressions,
	}, nil
}

// PostStatusLookup adapts the post repository to engagement's narrow
// PostLookup contract. postID may be the internal post id, the X tweet
// id or the local id; they are tried in that order.
type PostStatusLookup struct {
	posts post.Repository
}

func NewPostStatusLookup(posts post.Repository) *PostStatusLookup {
	return &PostStatusLookup{posts: posts}
}

func (l *PostStatusLookup) IsPublished(ctx context.Context, userID, postID string) (postIDX, postIDLocal string, ok bool, err error) {
	p, err := l.posts.FindByID(ctx, userID, postID)
	if errors.Is(err, post.ErrPostNotFound) {
		p, err = l.posts.FindByXID(ctx, userID, postID)
	}
	if errors.Is(err, post.ErrPostNotFound) {
		p, err = l.posts.FindByLocalID(ctx, userID, postID)
	}
	if err != nil {
		return "", "", false, err
	}
	if p.Status() != post.StatusPublished {
		return "", "", false, nil
	}
	return p.PostIDX(), p.PostIDLocal(), true, nil
}
