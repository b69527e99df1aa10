package auth

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// TokenSource returns a source of access tokens for account. The stored
// token is reused until it is within ExpiryDelta of expiring; refreshed
// tokens are written back to the store.
func (m *Manager) TokenSource(ctx context.Context, account string) (oauth2.TokenSource, error) {
	rec, err := LoadRecord(m.store, account)
	if err != nil {
		return nil, err
	}

	var refresher oauth2.TokenSource
	switch rec.Flow {
	case FlowDevice:
		refresher = &msalSource{ctx: ctx, m: m, rec: rec}
	default:
		if m.cfg.ClientID == "" {
			return nil, ErrNotConfigured
		}
		refresher = &refreshSource{
			ctx:          m.withHTTPClient(ctx),
			conf:         m.oauthConfig(""),
			refreshToken: rec.Token.RefreshToken,
		}
	}

	persisting := &persistingSource{
		src:   refresher,
		store: m.store,
		rec:   rec,
		log:   m.log,
	}

	return oauth2.ReuseTokenSourceWithExpiry(rec.Token, persisting, ExpiryDelta), nil
}

// refreshSource always redeems the refresh token. Expiry checks happen in
// the ReuseTokenSource wrapped around it.
type refreshSource struct {
	ctx          context.Context
	conf         *oauth2.Config
	refreshToken string
}

func (s *refreshSource) Token() (*oauth2.Token, error) {
	if s.refreshToken == "" {
		return nil, ErrNotLoggedIn
	}

	tok, err := s.conf.TokenSource(s.ctx, &oauth2.Token{RefreshToken: s.refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	// Azure may omit the refresh token when it is not rotated
	if tok.RefreshToken == "" {
		tok.RefreshToken = s.refreshToken
	}
	s.refreshToken = tok.RefreshToken

	return tok, nil
}

// persistingSource saves every token it hands out.
type persistingSource struct {
	src   oauth2.TokenSource
	store Store
	rec   *Record
	log   logrus.FieldLogger
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.rec.Token = tok
	if err := SaveRecord(s.store, s.rec); err != nil {
		// the token is still good for this run
		s.log.Warnf("Failed to save refreshed token for %s: %v", s.rec.Account, err)
	} else {
		s.log.WithField("account", s.rec.Account).Debug("saved refreshed token")
	}

	return tok, nil
}
