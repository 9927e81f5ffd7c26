package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/auth"
	"github.com/golang-jwt/jwt"
	errs "github.com/techagentng/collabhub/errors"
	"google.golang.org/api/option"
)

// IdentityProvider maps a bearer token to the uid of the signed-in user.
type IdentityProvider interface {
	CurrentUser(ctx context.Context, token string) (string, error)
}

// NewFirebaseApp initializes the Firebase app shared by auth and messaging.
func NewFirebaseApp(ctx context.Context, credentialsFile string) (*firebase.App, error) {
	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %v", err)
	}
	return app, nil
}

type firebaseIdentity struct {
	client *auth.Client
}

// NewFirebaseIdentity verifies Firebase ID tokens.
func NewFirebaseIdentity(ctx context.Context, app *firebase.App) (IdentityProvider, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting auth client: %v", err)
	}
	return &firebaseIdentity{client: client}, nil
}

func (f *firebaseIdentity) CurrentUser(ctx context.Context, token string) (string, error) {
	t, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", errs.Wrap(errs.ErrUnauthorized, "%v", err)
	}
	return t.UID, nil
}

// JWTIdentity accepts HS256 tokens whose subject is the uid. It stands in for
// Firebase in local development and tests.
type JWTIdentity struct {
	secret []byte
}

func NewJWTIdentity(secret string) *JWTIdentity {
	return &JWTIdentity{secret: []byte(secret)}
}

func (j *JWTIdentity) CurrentUser(ctx context.Context, token string) (string, error) {
	claims := &jwt.StandardClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", errs.Wrap(errs.ErrUnauthorized, "invalid token")
	}
	uid := strings.TrimSpace(claims.Subject)
	if uid == "" {
		return "", errs.Wrap(errs.ErrUnauthorized, "token has no subject")
	}
	return uid, nil
}

// Issue signs a token for uid valid for ttl.
func (j *JWTIdentity) Issue(uid string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.StandardClaims{
		Subject:   uid,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}
