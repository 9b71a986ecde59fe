package tokens

import (
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrMalformed        = errors.New("malformed token")
	ErrInvalidClaims    = errors.New("invalid token claims")
)

// Codec signs and verifies HS256 tokens with a single secret.
type Codec struct {
	secret   []byte
	audience string
	leeway   time.Duration
	now      func() time.Time
}

type Option func(*Codec)

func WithLeeway(d time.Duration) Option { return func(c *Codec) { c.leeway = d } }

func WithClock(now func() time.Time) Option { return func(c *Codec) { c.now = now } }

func WithAudience(aud string) Option { return func(c *Codec) { c.audience = aud } }

func NewCodec(secret []byte, opts ...Option) *Codec {
	c := &Codec{secret: secret, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Issue signs claims with iat=now and exp=now+ttl and returns the token
// together with its (second-truncated) expiry.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := c.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.Subject = strconv.FormatUint(uint64(claims.UserID), 10)
	if c.audience != "" {
		claims.Audience = jwt.ClaimStrings{c.audience}
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature, audience and expiry. now >= exp is expired.
func (c *Codec) Verify(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(c.now),
		jwt.WithLeeway(c.leeway),
		jwt.WithExpirationRequired(),
	}
	if c.audience != "" {
		opts = append(opts, jwt.WithAudience(c.audience))
	}
	return c.parse(raw, opts...)
}

// Inspect checks only the signature and audience. It lets logout recover the
// session id of an authentic token that has already expired.
func (c *Codec) Inspect(raw string) (*Claims, error) {
	claims, err := c.parse(raw, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	if c.audience != "" && !slices.Contains(claims.Audience, c.audience) {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

func (c *Codec) parse(raw string, opts ...jwt.ParserOption) (*Claims, error) {
	if raw == "" {
		return nil, ErrMalformed
	}
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	var claims Claims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		return nil, classify(err)
	}
	if !tkn.Valid {
		return nil, ErrInvalidSignature
	}
	return &claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrInvalidClaims
	}
}

type TrackCodecs struct {
	Access  *Codec
	Refresh *Codec
}

func NewTrackCodecs(t Track, accessSecret, refreshSecret []byte, opts ...Option) TrackCodecs {
	opts = append(opts, WithAudience(t.String()))
	return TrackCodecs{
		Access:  NewCodec(accessSecret, opts...),
		Refresh: NewCodec(refreshSecret, opts...),
	}
}

// Keyring holds the codecs of both tracks.
type Keyring struct {
	tracks map[Track]TrackCodecs
}

func NewKeyring(customer, admin TrackCodecs) *Keyring {
	return &Keyring{tracks: map[Track]TrackCodecs{
		Customer: customer,
		Admin:    admin,
	}}
}

func (k *Keyring) Access(t Track) *Codec { return k.tracks[t].Access }

func (k *Keyring) Refresh(t Track) *Codec { return k.tracks[t].Refresh }
