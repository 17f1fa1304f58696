// Package gcal talks to Google Calendar on behalf of users who have
// connected their account.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrNotConnected means the user never linked a calendar, or revoked it.
var ErrNotConnected = errors.New("calendar not connected")

// Event is a timed entry on a user's calendar.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// TokenStore keeps one OAuth token per user.
type TokenStore interface {
	Token(ctx context.Context, userID string) (*oauth2.Token, error)
	SaveToken(ctx context.Context, userID string, tok *oauth2.Token) error
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// NewOAuthConfig requests read/write access to events only.
func NewOAuthConfig(cfg OAuthConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{calendar.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}
}

type Client struct {
	oauth      *oauth2.Config
	tokens     TokenStore
	calendarID string
	opts       []option.ClientOption
}

// NewClient writes to each user's calendarID, "primary" when empty. Extra
// options are appended to every calendar.Service, e.g. option.WithEndpoint.
func NewClient(oauth *oauth2.Config, tokens TokenStore, calendarID string, opts ...option.ClientOption) *Client {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Client{oauth: oauth, tokens: tokens, calendarID: calendarID, opts: opts}
}

func (c *Client) CreateEvent(ctx context.Context, userID string, ev Event) (string, error) {
	svc, err := c.service(ctx, userID)
	if err != nil {
		return "", err
	}
	created, err := svc.Events.Insert(c.calendarID, &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.UTC().Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: ev.End.UTC().Format(time.RFC3339)},
	}).Context(ctx).Do()
	if err != nil {
		return "", classify(err)
	}
	return created.Id, nil
}

// DeleteEvent treats an already deleted event as success.
func (c *Client) DeleteEvent(ctx context.Context, userID, eventID string) error {
	svc, err := c.service(ctx, userID)
	if err != nil {
		return err
	}
	err = svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
		return nil
	}
	if err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) service(ctx context.Context, userID string) (*calendar.Service, error) {
	tok, err := c.tokens.Token(ctx, userID)
	if err != nil {
		return nil, err
	}
	src := &savingSource{
		base:   c.oauth.TokenSource(ctx, tok),
		last:   tok,
		save:   func(t *oauth2.Token) error { return c.tokens.SaveToken(ctx, userID, t) },
		userID: userID,
	}
	opts := append([]option.ClientOption{option.WithTokenSource(src)}, c.opts...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return svc, nil
}

// classify turns a revoked grant into ErrNotConnected.
func classify(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.ErrorCode == "invalid_grant" {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return err
}

// savingSource persists a token whenever the underlying source refreshes it.
type savingSource struct {
	base   oauth2.TokenSource
	last   *oauth2.Token
	save   func(*oauth2.Token) error
	userID string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if s.last == nil || tok.AccessToken != s.last.AccessToken {
		if err := s.save(tok); err != nil {
			return nil, fmt.Errorf("save refreshed token for %s: %w", s.userID, err)
		}
		s.last = tok
	}
	return tok, nil
}
