package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dghubble/oauth1"
	"github.com/michimani/gotwi"
	"github.com/michimani/gotwi/tweet/managetweet"
	tweettypes "github.com/michimani/gotwi/tweet/managetweet/types"
	"github.com/michimani/gotwi/tweet/tweetlookup"
	lookuptypes "github.com/michimani/gotwi/tweet/tweetlookup/types"
	"github.com/michimani/gotwi/user/userlookup"
	usertypes "github.com/michimani/gotwi/user/userlookup/types"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/clintrovert/ourstreet/internal/config"
	"github.com/clintrovert/ourstreet/pkg/types"
)

const (
	requestTimeout     = 30 * time.Second
	defaultThreadDelay = 2 * time.Second
	postURLPrefix      = "https://twitter.com/i/web/status/"
)

// Publisher is what the posting workflow needs from the platform
type Publisher interface {
	IsReady() bool
	PostTweet(ctx context.Context, content types.TweetContent) types.TweetResult
	UploadMedia(ctx context.Context, data []byte, mimeType string) string
}

// AccountInfo identifies the account posts are published as
type AccountInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Post is a published post as returned by a lookup
type Post struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Option configures a Client
type Option func(*Client)

// WithThreadDelay overrides the pause between posts of a thread
func WithThreadDelay(d time.Duration) Option {
	return func(c *Client) {
		c.threadDelay = d
	}
}

// WithHTTPClient sets the transport used underneath the signed clients
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.baseHTTP = hc
	}
}

// Client talks to the X/Twitter API. v2 calls go through gotwi: posts and
// users/me with OAuth1 user context, post lookups with an app-only bearer
// token from the app key pair. Media goes to the v1.1 upload endpoint,
// OAuth1 signed.
//
// The credential configuration is read-only after NewClient, so a Client is
// safe for concurrent use.
type Client struct {
	user          *gotwi.Client
	appToken      oauth2.TokenSource
	uploadHTTP    *http.Client
	apiHTTP       *http.Client
	baseHTTP      *http.Client
	apiBaseURL    string
	uploadBaseURL string
	threadDelay   time.Duration
	ready         bool
	logger        *zap.Logger
}

// NewClient creates a platform client. Missing credentials leave the client
// not ready rather than failing.
func NewClient(cfg config.TwitterConfig, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		apiBaseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		uploadBaseURL: strings.TrimRight(cfg.UploadBaseURL, "/"),
		threadDelay:   defaultThreadDelay,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	if !cfg.Complete() {
		logger.Warn("X/Twitter credentials not configured, social media posting disabled")
		return c
	}
	apiBase, err := c.validateEndpoints()
	if err != nil {
		logger.Error("failed to initialize X/Twitter client", zap.Error(err))
		return c
	}

	transport := http.DefaultTransport
	if c.baseHTTP != nil && c.baseHTTP.Transport != nil {
		transport = c.baseHTTP.Transport
	}
	c.apiHTTP = &http.Client{
		Transport: rebase{base: apiBase, next: transport},
		Timeout:   requestTimeout,
	}

	user, err := gotwi.NewClient(&gotwi.NewClientInput{
		HTTPClient:           c.apiHTTP,
		AuthenticationMethod: gotwi.AuthenMethodOAuth1UserContext,
		APIKey:               cfg.APIKey,
		APIKeySecret:         cfg.APISecret,
		OAuthToken:           cfg.AccessToken,
		OAuthTokenSecret:     cfg.AccessSecret,
	})
	if err != nil {
		logger.Error("failed to initialize X/Twitter client", zap.Error(err))
		return c
	}
	c.user = user

	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, &http.Client{Transport: transport})
	c.uploadHTTP = oauth1.NewConfig(cfg.APIKey, cfg.APISecret).
		Client(ctx, oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret))
	c.uploadHTTP.Timeout = requestTimeout

	app := &clientcredentials.Config{
		ClientID:     cfg.APIKey,
		ClientSecret: cfg.APISecret,
		TokenURL:     c.apiBaseURL + "/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{
		Transport: transport,
		Timeout:   requestTimeout,
	})
	c.appToken = app.TokenSource(tokenCtx)

	c.ready = true
	logger.Info("X/Twitter client initialized")
	return c
}

func (c *Client) validateEndpoints() (*url.URL, error) {
	var api *url.URL
	for _, raw := range []string{c.apiBaseURL, c.uploadBaseURL} {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint %q: %w", raw, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid endpoint %q", raw)
		}
		if api == nil {
			api = u
		}
	}
	return api, nil
}

// rebase sends gotwi's fixed api.twitter.com requests to the configured API host
type rebase struct {
	base *url.URL
	next http.RoundTripper
}

func (r rebase) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme == r.base.Scheme && req.URL.Host == r.base.Host {
		return r.next.RoundTrip(req)
	}
	out := req.Clone(req.Context())
	out.URL.Scheme = r.base.Scheme
	out.URL.Host = r.base.Host
	out.Host = r.base.Host
	return r.next.RoundTrip(out)
}

// IsReady reports whether all credentials were present and the client
// initialized without error
func (c *Client) IsReady() bool {
	return c.ready && c.user != nil
}

// PostTweet publishes a post. It never returns an error: every failure is
// described in the result.
func (c *Client) PostTweet(ctx context.Context, content types.TweetContent) types.TweetResult {
	if !c.IsReady() {
		return types.Failure(NotConfiguredMessage)
	}

	length := utf8.RuneCountInString(content.Text)
	if length == 0 {
		return types.Failure("Tweet text cannot be empty")
	}
	if length > types.MaxPostLength {
		return types.Failure(fmt.Sprintf("Tweet too long: %d characters (max %d)", length, types.MaxPostLength))
	}

	in := &tweettypes.CreateInput{Text: gotwi.String(content.Text)}
	if len(content.MediaIDs) > 0 {
		in.Media = &tweettypes.CreateInputMedia{MediaIDs: content.MediaIDs}
	}
	if content.ReplyToID != "" {
		in.Reply = &tweettypes.CreateInputReply{InReplyToTweetID: content.ReplyToID}
	}

	out, err := managetweet.Create(ctx, c.user, in)
	if err != nil {
		err = fromGotwi(err)
		c.logger.Error("failed to post tweet", zap.Error(err))
		return types.Failure(describe(err))
	}
	id := gotwi.StringValue(out.Data.ID)
	if id == "" {
		return types.Failure("Failed to post tweet: response carried no post id")
	}

	result := types.TweetResult{
		Success: true,
		PostID:  id,
		URL:     postURLPrefix + id,
	}
	c.logger.Info("posted tweet",
		zap.String("post_id", result.PostID),
		zap.String("url", result.URL),
		zap.Int("media", len(content.MediaIDs)),
	)
	return result
}

// UploadMedia uploads an image and returns its media id, or "" on failure
func (c *Client) UploadMedia(ctx context.Context, data []byte, mimeType string) string {
	if !c.IsReady() {
		c.logger.Error("X/Twitter client not configured, cannot upload media")
		return ""
	}

	mediaID, err := c.uploadMedia(ctx, data, mimeType)
	if err != nil {
		c.logger.Error("failed to upload media", zap.String("mime_type", mimeType), zap.Error(err))
		return ""
	}

	c.logger.Info("uploaded media", zap.String("media_id", mediaID), zap.Int("bytes", len(data)))
	return mediaID
}

func (c *Client) uploadMedia(ctx context.Context, data []byte, mimeType string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("media_category", "tweet_image"); err != nil {
		return "", fmt.Errorf("failed to write media category: %w", err)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="media"; filename="media"`)
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create media part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write media part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadBaseURL+"/1.1/media/upload.json", &body)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := c.do(c.uploadHTTP, req, &resp); err != nil {
		return "", err
	}
	if resp.MediaIDString == "" {
		return "", fmt.Errorf("upload response carried no media id")
	}
	return resp.MediaIDString, nil
}

// PostThread publishes texts as a reply chain, pausing between posts. The
// first failure ends the thread and is returned.
func (c *Client) PostThread(ctx context.Context, texts []string) types.TweetResult {
	if !c.IsReady() {
		return types.Failure("X/Twitter client not configured")
	}
	if len(texts) == 0 {
		return types.Failure("Thread must contain at least one tweet")
	}

	var first types.TweetResult
	previousID := ""
	for i, text := range texts {
		result := c.PostTweet(ctx, types.TweetContent{Text: text, ReplyToID: previousID})
		if !result.Success {
			return result
		}
		if i == 0 {
			first = result
		}
		previousID = result.PostID

		if i < len(texts)-1 {
			select {
			case <-ctx.Done():
				return types.Failure(fmt.Sprintf("thread interrupted after %d posts: %v", i+1, ctx.Err()))
			case <-time.After(c.threadDelay):
			}
		}
	}

	c.logger.Info("posted thread", zap.Int("posts", len(texts)), zap.String("url", first.URL))
	return first
}

// VerifyCredentials checks the user credentials against the API
func (c *Client) VerifyCredentials(ctx context.Context) bool {
	info, err := c.GetAccountInfo(ctx)
	if err != nil {
		c.logger.Error("failed to verify X/Twitter credentials", zap.Error(err))
		return false
	}
	c.logger.Info("authenticated", zap.String("username", info.Username))
	return true
}

// GetAccountInfo returns the account posts are published as
func (c *Client) GetAccountInfo(ctx context.Context) (*AccountInfo, error) {
	if !c.IsReady() {
		return nil, ErrNotConfigured
	}

	out, err := userlookup.GetMe(ctx, c.user, &usertypes.GetMeInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get account info: %w", fromGotwi(err))
	}
	return &AccountInfo{
		ID:       gotwi.StringValue(out.Data.ID),
		Username: gotwi.StringValue(out.Data.Username),
		Name:     gotwi.StringValue(out.Data.Name),
	}, nil
}

// LookupPost reads a published post with the app-only token
func (c *Client) LookupPost(ctx context.Context, id string) (*Post, error) {
	if !c.IsReady() {
		return nil, ErrNotConfigured
	}

	app, err := c.appClient()
	if err != nil {
		return nil, fmt.Errorf("failed to look up post %s: %w", id, err)
	}
	out, err := tweetlookup.Get(ctx, app, &lookuptypes.GetInput{ID: id})
	if err != nil {
		return nil, fmt.Errorf("failed to look up post %s: %w", id, fromGotwi(err))
	}
	return &Post{
		ID:   gotwi.StringValue(out.Data.ID),
		Text: gotwi.StringValue(out.Data.Text),
	}, nil
}

// appClient builds a gotwi client around the current app-only bearer token.
// The token source caches the token until it expires.
func (c *Client) appClient() (*gotwi.Client, error) {
	token, err := c.appToken.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get app-only token: %w", err)
	}
	return gotwi.NewClientWithAccessToken(&gotwi.NewClientWithAccessTokenInput{
		HTTPClient:  c.apiHTTP,
		AccessToken: token.AccessToken,
	})
}

func (c *Client) do(hc *http.Client, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body apiErrorBody
		_ = json.Unmarshal(raw, &body)
		return &APIError{StatusCode: resp.StatusCode, Message: body.message()}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
