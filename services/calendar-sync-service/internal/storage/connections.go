// Package storage persists calendar connections and owns the schema.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopslot/shopslot/libs/db"
	"github.com/shopslot/shopslot/services/calendar-sync-service/internal/gcal"
	"golang.org/x/oauth2"
)

// Connections stores one Google token per user in calendar_connections.
type Connections struct {
	pool *db.Pool
}

func NewConnections(pool *db.Pool) *Connections {
	return &Connections{pool: pool}
}

func (c *Connections) Token(ctx context.Context, userID string) (*oauth2.Token, error) {
	tok := &oauth2.Token{}
	var expiry *time.Time
	err := c.pool.QueryRow(ctx, `
		SELECT access_token, refresh_token, token_type, expiry
		FROM calendar_connections
		WHERE user_id = $1
	`, userID).Scan(&tok.AccessToken, &tok.RefreshToken, &tok.TokenType, &expiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gcal.ErrNotConnected
	}
	if err != nil {
		return nil, err
	}
	if expiry != nil {
		tok.Expiry = *expiry
	}
	return tok, nil
}

// SaveToken keeps the stored refresh token when tok carries none, since
// Google only returns it on the first consent.
func (c *Connections) SaveToken(ctx context.Context, userID string, tok *oauth2.Token) error {
	var expiry *time.Time
	if !tok.Expiry.IsZero() {
		e := tok.Expiry.UTC()
		expiry = &e
	}
	_, err := c.pool.Exec(ctx, `
		INSERT INTO calendar_connections (user_id, access_token, refresh_token, token_type, expiry)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), calendar_connections.refresh_token),
		    token_type = EXCLUDED.token_type,
		    expiry = EXCLUDED.expiry,
		    updated_at = now()
	`, userID, tok.AccessToken, tok.RefreshToken, tok.TokenType, expiry)
	return err
}
