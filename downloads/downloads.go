// Package downloads stores the purchasable files and serves them through
// signed, expiring download links, so a fulfillment email grants access
// without exposing a permanent URL.
package downloads

import (
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/plugsnip/snip-backend/db"
)

var (
	// ErrAssetNotFound is returned when the requested asset is not in storage.
	ErrAssetNotFound = fmt.Errorf("asset not found")
	// ErrInvalidToken is returned when a download token is malformed,
	// forged or expired.
	ErrInvalidToken = fmt.Errorf("invalid download token")
)

// claim keys inside a download token
const (
	claimAsset = "asset"
	claimGrant = "grant"
)

// AssetStore provides the stored download files. db.MongoStorage satisfies it.
type AssetStore interface {
	Asset(assetID string) (*db.Asset, error)
}

// Config holds the configuration for the downloads service.
type Config struct {
	Store AssetStore
	// Secret signs the download tokens.
	Secret string
	// ServerURL prefixes generated download links.
	ServerURL string
	// LinkTTL bounds how long a fulfillment link stays valid.
	LinkTTL time.Duration
}

// Service mints download grants and serves the files they unlock. Assets
// are small and immutable, so reads go through an LRU cache.
type Service struct {
	store     AssetStore
	auth      *jwtauth.JWTAuth
	cache     *lru.Cache[string, db.Asset]
	serverURL string
	linkTTL   time.Duration
}

// New creates the downloads service.
func New(conf *Config) (*Service, error) {
	if conf == nil || conf.Store == nil {
		return nil, fmt.Errorf("invalid downloads configuration")
	}
	if conf.Secret == "" {
		return nil, fmt.Errorf("downloads token secret is required")
	}
	linkTTL := conf.LinkTTL
	if linkTTL == 0 {
		linkTTL = 72 * time.Hour
	}
	cache, err := lru.New[string, db.Asset](256)
	if err != nil {
		return nil, fmt.Errorf("cannot create cache: %w", err)
	}
	return &Service{
		store:     conf.Store,
		auth:      jwtauth.New("HS256", []byte(conf.Secret), nil),
		cache:     cache,
		serverURL: conf.ServerURL,
		linkTTL:   linkTTL,
	}, nil
}

// DownloadToken mints a signed token granting access to the given asset.
// The grant id ties the token to one fulfillment for auditing.
func (s *Service) DownloadToken(assetID, grantID string) (string, error) {
	claims := map[string]any{
		claimAsset: assetID,
		claimGrant: grantID,
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, s.linkTTL)
	_, token, err := s.auth.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("cannot sign download token: %w", err)
	}
	return token, nil
}

// DownloadURL is the absolute link delivered in fulfillment emails.
func (s *Service) DownloadURL(token string) string {
	return fmt.Sprintf("%s/downloads/%s", s.serverURL, token)
}

// Resolve validates a download token and returns the asset it grants.
// Expired and forged tokens fail with ErrInvalidToken.
func (s *Service) Resolve(token string) (*db.Asset, error) {
	parsed, err := jwtauth.VerifyToken(s.auth, token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	rawAsset, ok := parsed.Get(claimAsset)
	if !ok {
		return nil, ErrInvalidToken
	}
	assetID, ok := rawAsset.(string)
	if !ok || assetID == "" {
		return nil, ErrInvalidToken
	}

	if asset, ok := s.cache.Get(assetID); ok {
		return &asset, nil
	}
	asset, err := s.store.Asset(assetID)
	if err != nil {
		if err == db.ErrNotFound {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}
	s.cache.Add(assetID, *asset)
	return asset, nil
}
