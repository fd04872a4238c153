package xapi

import "time"

// RateLimitInfo carries the parsed x-rate-limit-* response headers,
// grounded on client.rs's parse_rate_limit_headers.
type RateLimitInfo struct {
	Remaining int
	HasRemaining bool
	ResetAt   int64 // unix seconds
	HasReset  bool
}

// SecondsUntilReset returns how many seconds remain until the rate limit
// resets, or 0 if unknown or already passed.
func (r RateLimitInfo) SecondsUntilReset() int {
	if !r.HasReset {
		return 0
	}
	now := time.Now().Unix()
	if r.ResetAt <= now {
		return 0
	}
	return int(r.ResetAt - now)
}

// Tweet is a tweet as returned by the X API, trimmed to the fields
// spec.md's loops and tool surface actually consume.
type Tweet struct {
	ID              string    `json:"id"`
	Text            string    `json:"text"`
	AuthorID        string    `json:"author_id"`
	ConversationID  string    `json:"conversation_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	LikeCount       int       `json:"like_count"`
	RetweetCount    int       `json:"retweet_count"`
	ReplyCount      int       `json:"reply_count"`
	QuoteCount      int       `json:"quote_count"`
}

// PostedTweet is the minimal response from a successful tweet mutation.
type PostedTweet struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// User is an X user profile, trimmed to fields the loops/tools consume.
type User struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Name            string `json:"name"`
	FollowersCount  int    `json:"followers_count"`
	FollowingCount  int    `json:"following_count"`
}

// SearchResult is one page of a tweet search/mentions query.
type SearchResult struct {
	Tweets      []Tweet
	// Users is the expanded author profile set the API returns alongside
	// Tweets when the request carries expansions=author_id (client.go's
	// searchEnvelope.Includes.Users) -- keyed by Tweet.AuthorID by callers
	// that need follower counts (discovery.go's scoring).
	Users       []User
	NextToken   string
	ResultCount int
}

// MediaType enumerates the media categories the upload endpoint accepts.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeGIF   MediaType = "gif"
	MediaTypeVideo MediaType = "video"
)

func (m MediaType) category() string {
	switch m {
	case MediaTypeGIF:
		return "tweet_gif"
	case MediaTypeVideo:
		return "tweet_video"
	default:
		return "tweet_image"
	}
}

func (m MediaType) mimeType() string {
	switch m {
	case MediaTypeGIF:
		return "image/gif"
	case MediaTypeVideo:
		return "video/mp4"
	default:
		return "image/jpeg"
	}
}
