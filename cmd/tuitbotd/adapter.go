package main

import (
	"context"

	"github.com/tuitbot/tuitbot-core/internal/xapi"
)

// threadPoster adapts *xapi.Client's (xapi.PostedTweet, error)-returning
// write methods to the (id string, err error) shape internal/loops.ThreadPoster
// and internal/loops.MentionPoster expect, the same narrowing x_tools.go's
// XPoster interface applies for the tool surface's own write path.
type threadPoster struct {
	client *xapi.Client
}

func (p threadPoster) PostTweet(ctx context.Context, text string) (string, error) {
	tw, err := p.client.PostTweet(ctx, text)
	if err != nil {
		return "", err
	}
	return tw.ID, nil
}

func (p threadPoster) ReplyToTweet(ctx context.Context, inReplyToID, text string) (string, error) {
	tw, err := p.client.Reply(ctx, text, inReplyToID)
	if err != nil {
		return "", err
	}
	return tw.ID, nil
}
