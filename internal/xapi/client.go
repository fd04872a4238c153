// Package xapi implements the HTTP client for the X (Twitter) API v2 that
// every loop engine and tool posts through: bearer-token auth behind a
// single-writer/many-reader lock, the typed error taxonomy, rate-limit
// header parsing, and fire-and-forget usage accounting (§4.5).
//
// Grounded directly on
// original_source/crates/tuitbot-core/src/x_api/client.rs's XApiHttpClient.
package xapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultBaseURL       = "https://api.x.com/2"
	defaultUploadBaseURL = "https://upload.twitter.com/1.1"

	tweetFields = "public_metrics,created_at,author_id,conversation_id"
	expansions  = "author_id"
	userFields  = "username,public_metrics"
)

// Option configures a Client.
type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithBaseURL(base, uploadBase string) Option {
	return func(c *Client) { c.baseURL = base; c.uploadBaseURL = uploadBase }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTokenSource wires an oauth2.TokenSource that Refresh uses to obtain a
// new bearer token, grounded on internal/auth/oauth.go's use of
// golang.org/x/oauth2's Config/TokenSource for the bearer-token flow.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokenSource = ts }
}

// WithUsageTracker wires a usage accounting sink.
func WithUsageTracker(u *UsageTracker) Option {
	return func(c *Client) { c.usage = u }
}

// Client is the X API v2 HTTP client. The access token is stored behind a
// sync.RWMutex so a background token refresh never blocks concurrent reads,
// the same single-writer/many-reader shape as the Rust client's
// Arc<RwLock<String>> access_token field.
type Client struct {
	http          *http.Client
	baseURL       string
	uploadBaseURL string
	logger        *slog.Logger
	usage         *UsageTracker
	tokenSource   oauth2.TokenSource

	tokenMu sync.RWMutex
	token   string
}

// New builds a Client with the given initial bearer token.
func New(accessToken string, opts ...Option) *Client {
	c := &Client{
		http:          &http.Client{Timeout: 30 * time.Second},
		baseURL:       defaultBaseURL,
		uploadBaseURL: defaultUploadBaseURL,
		logger:        slog.Default().With("component", "xapi.client"),
		token:         accessToken,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAccessToken replaces the current bearer token, used by a token
// manager after a refresh.
func (c *Client) SetAccessToken(token string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	c.token = token
}

func (c *Client) currentToken() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token
}

// Refresh pulls a fresh token from the configured oauth2.TokenSource and
// installs it, returning an *Error on failure (classified as AuthExpired if
// the source itself reports a token error).
func (c *Client) Refresh(ctx context.Context) error {
	if c.tokenSource == nil {
		return &Error{Kind: KindAuthExpired, Message: "no token source configured"}
	}
	tok, err := c.tokenSource.Token()
	if err != nil {
		return &Error{Kind: KindAuthExpired, Message: Redact(err.Error())}
	}
	c.SetAccessToken(tok.AccessToken)
	return nil
}

func parseRateLimitHeaders(h http.Header) RateLimitInfo {
	var info RateLimitInfo
	if v := h.Get("x-rate-limit-remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			info.Remaining, info.HasRemaining = n, true
		}
	}
	if v := h.Get("x-rate-limit-reset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			info.ResetAt, info.HasReset = n, true
		}
	}
	return info
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	full := c.baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("xapi: marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, full, reader)
	if err != nil {
		return nil, NewNetworkError(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.currentToken())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, NewNetworkError(err)
	}
	return resp, nil
}

// request performs a round trip, classifies non-2xx responses into the
// typed error taxonomy, records usage, and decodes a successful JSON body
// into out (when out is non-nil).
func (c *Client) request(ctx context.Context, method, path string, query url.Values, reqBody, out any) error {
	resp, err := c.do(ctx, method, path, query, reqBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	rateInfo := parseRateLimitHeaders(resp.Header)
	bodyBytes, _ := io.ReadAll(resp.Body)

	if c.usage != nil {
		c.usage.Record(path, method, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := extractErrorDetail(bodyBytes)
		return mapErrorResponse(resp.StatusCode, message, rateInfo)
	}

	if out != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, out); err != nil {
			return NewNetworkError(fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

type errorDetailEnvelope struct {
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

func extractErrorDetail(body []byte) string {
	var env errorDetailEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Detail != "" {
			return env.Detail
		}
		if env.Title != "" {
			return env.Title
		}
	}
	return string(body)
}

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

type searchEnvelope struct {
	Data     []Tweet `json:"data"`
	Includes struct {
		Users []User `json:"users"`
	} `json:"includes"`
	Meta struct {
		NextToken   string `json:"next_token"`
		ResultCount int    `json:"result_count"`
	} `json:"meta"`
}

// Search queries recent tweets matching a keyword query, grounded on
// client.rs's search_tweets.
func (c *Client) Search(ctx context.Context, query, sinceID, nextToken string) (SearchResult, error) {
	q := url.Values{
		"query":         {query},
		"tweet.fields":  {tweetFields},
		"expansions":    {expansions},
		"user.fields":   {userFields},
		"max_results":   {"25"},
	}
	if sinceID != "" {
		q.Set("since_id", sinceID)
	}
	if nextToken != "" {
		q.Set("next_token", nextToken)
	}

	var env searchEnvelope
	if err := c.request(ctx, http.MethodGet, "/tweets/search/recent", q, nil, &env); err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Tweets: env.Data, Users: env.Includes.Users, NextToken: env.Meta.NextToken, ResultCount: env.Meta.ResultCount}, nil
}

// Mentions fetches mentions of userID, grounded on client.rs's get_mentions.
func (c *Client) Mentions(ctx context.Context, userID, sinceID, nextToken string) (SearchResult, error) {
	q := url.Values{
		"tweet.fields": {tweetFields},
		"expansions":   {expansions},
		"user.fields":  {userFields},
		"max_results":  {"25"},
	}
	if sinceID != "" {
		q.Set("since_id", sinceID)
	}
	if nextToken != "" {
		q.Set("pagination_token", nextToken)
	}

	var env searchEnvelope
	path := fmt.Sprintf("/users/%s/mentions", userID)
	if err := c.request(ctx, http.MethodGet, path, q, nil, &env); err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Tweets: env.Data, Users: env.Includes.Users, NextToken: env.Meta.NextToken, ResultCount: env.Meta.ResultCount}, nil
}

type postTweetRequest struct {
	Text         string            `json:"text"`
	Reply        *replyPayload     `json:"reply,omitempty"`
	Media        *mediaPayload     `json:"media,omitempty"`
	QuoteTweetID string            `json:"quote_tweet_id,omitempty"`
}

type replyPayload struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type mediaPayload struct {
	MediaIDs []string `json:"media_ids"`
}

func (c *Client) postTweet(ctx context.Context, body postTweetRequest) (PostedTweet, error) {
	var env dataEnvelope[PostedTweet]
	if err := c.request(ctx, http.MethodPost, "/tweets", nil, body, &env); err != nil {
		return PostedTweet{}, err
	}
	return env.Data, nil
}

// PostTweet posts a standalone tweet.
func (c *Client) PostTweet(ctx context.Context, text string) (PostedTweet, error) {
	return c.postTweet(ctx, postTweetRequest{Text: text})
}

// Reply posts text as a reply to inReplyToID.
func (c *Client) Reply(ctx context.Context, text, inReplyToID string) (PostedTweet, error) {
	return c.postTweet(ctx, postTweetRequest{Text: text, Reply: &replyPayload{InReplyToTweetID: inReplyToID}})
}

// PostTweetWithMedia posts a tweet attaching previously-uploaded media IDs.
func (c *Client) PostTweetWithMedia(ctx context.Context, text string, mediaIDs []string) (PostedTweet, error) {
	return c.postTweet(ctx, postTweetRequest{Text: text, Media: &mediaPayload{MediaIDs: mediaIDs}})
}

// ReplyWithMedia replies attaching previously-uploaded media IDs.
func (c *Client) ReplyWithMedia(ctx context.Context, text, inReplyToID string, mediaIDs []string) (PostedTweet, error) {
	return c.postTweet(ctx, postTweetRequest{
		Text:  text,
		Reply: &replyPayload{InReplyToTweetID: inReplyToID},
		Media: &mediaPayload{MediaIDs: mediaIDs},
	})
}

// QuoteTweet posts text as a quote tweet of quotedID.
func (c *Client) QuoteTweet(ctx context.Context, text, quotedID string) (PostedTweet, error) {
	return c.postTweet(ctx, postTweetRequest{Text: text, QuoteTweetID: quotedID})
}

// GetTweet fetches a single tweet by ID.
func (c *Client) GetTweet(ctx context.Context, tweetID string) (Tweet, error) {
	q := url.Values{"tweet.fields": {tweetFields}, "expansions": {expansions}, "user.fields": {userFields}}
	var env dataEnvelope[Tweet]
	if err := c.request(ctx, http.MethodGet, "/tweets/"+tweetID, q, nil, &env); err != nil {
		return Tweet{}, err
	}
	return env.Data, nil
}

// GetMe fetches the authenticated user's profile.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var env dataEnvelope[User]
	if err := c.request(ctx, http.MethodGet, "/users/me", nil, nil, &env); err != nil {
		return User{}, err
	}
	return env.Data, nil
}

// GetUserByUsername looks up a user profile by handle.
func (c *Client) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var env dataEnvelope[User]
	if err := c.request(ctx, http.MethodGet, "/users/by/username/"+username, nil, nil, &env); err != nil {
		return User{}, err
	}
	return env.Data, nil
}

type boolDataEnvelope struct {
	Data struct {
		Liked     bool `json:"liked"`
		Following bool `json:"following"`
		Retweeted bool `json:"retweeted"`
		Deleted   bool `json:"deleted"`
	} `json:"data"`
}

// LikeTweet likes tweetID on behalf of userID.
func (c *Client) LikeTweet(ctx context.Context, userID, tweetID string) (bool, error) {
	var env boolDataEnvelope
	body := map[string]string{"tweet_id": tweetID}
	path := fmt.Sprintf("/users/%s/likes", userID)
	if err := c.request(ctx, http.MethodPost, path, nil, body, &env); err != nil {
		return false, err
	}
	return env.Data.Liked, nil
}

// FollowUser makes userID follow targetUserID.
func (c *Client) FollowUser(ctx context.Context, userID, targetUserID string) (bool, error) {
	var env boolDataEnvelope
	body := map[string]string{"target_user_id": targetUserID}
	path := fmt.Sprintf("/users/%s/following", userID)
	if err := c.request(ctx, http.MethodPost, path, nil, body, &env); err != nil {
		return false, err
	}
	return env.Data.Following, nil
}

// UnfollowUser makes userID unfollow targetUserID.
func (c *Client) UnfollowUser(ctx context.Context, userID, targetUserID string) (bool, error) {
	var env boolDataEnvelope
	path := fmt.Sprintf("/users/%s/following/%s", userID, targetUserID)
	if err := c.request(ctx, http.MethodDelete, path, nil, nil, &env); err != nil {
		return false, err
	}
	return !env.Data.Following, nil
}

// Retweet retweets tweetID on behalf of userID.
func (c *Client) Retweet(ctx context.Context, userID, tweetID string) (bool, error) {
	var env boolDataEnvelope
	body := map[string]string{"tweet_id": tweetID}
	path := fmt.Sprintf("/users/%s/retweets", userID)
	if err := c.request(ctx, http.MethodPost, path, nil, body, &env); err != nil {
		return false, err
	}
	return env.Data.Retweeted, nil
}

// Unretweet undoes a retweet of tweetID by userID.
func (c *Client) Unretweet(ctx context.Context, userID, tweetID string) (bool, error) {
	var env boolDataEnvelope
	path := fmt.Sprintf("/users/%s/retweets/%s", userID, tweetID)
	if err := c.request(ctx, http.MethodDelete, path, nil, nil, &env); err != nil {
		return false, err
	}
	return !env.Data.Retweeted, nil
}

// DeleteTweet deletes tweetID.
func (c *Client) DeleteTweet(ctx context.Context, tweetID string) (bool, error) {
	var env boolDataEnvelope
	if err := c.request(ctx, http.MethodDelete, "/tweets/"+tweetID, nil, nil, &env); err != nil {
		return false, err
	}
	return env.Data.Deleted, nil
}

// UploadMedia uploads media bytes via the three-phase INIT/APPEND/FINALIZE
// v1.1 media endpoint and returns the resulting media ID. See media.go.
func (c *Client) UploadMedia(ctx context.Context, data []byte, mediaType MediaType) (string, error) {
	return uploadMedia(ctx, c.http, c.uploadBaseURL, c.currentToken(), data, mediaType)
}

// RawRequest performs an arbitrary v2 API call and decodes its JSON body
// into a generic map, backing the admin-profile x_get/x_post escape hatch
// (§4.7's "admin: includes universal x_get/post/put/delete"). Unlike the
// typed methods above it applies none of the fixed field-set defaults;
// callers own the full path and query.
func (c *Client) RawRequest(ctx context.Context, method, path string, query url.Values, body any) (map[string]any, error) {
	var out map[string]any
	if err := c.request(ctx, method, path, query, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}
