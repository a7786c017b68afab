package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/brightwater/swereport/core"
	"github.com/brightwater/swereport/core/session"
)

const (
	contextSessionKey = "session"
	audience          = "swe-dashboard"
)

var signingMethod = jwt.SigningMethodHS256

// Claims identify the browser session carried by the session cookie.
type Claims struct {
	jwt.StandardClaims
}

func newClaims(conf *core.Config, sessionID string, now time.Time) *Claims {
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   sessionID,
			Audience:  audience,
			ExpiresAt: now.Add(conf.Session.TTL).Unix(),
			IssuedAt:  now.Unix(),
		},
	}
}

// GenerateToken generates a signed JWT token string representing the session Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(signingMethod, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// ParseToken verifies a session token and returns its claims.
func ParseToken(conf *core.Config, raw string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != signingMethod.Alg() {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(conf.SecretKey), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parsing token")
	}
	if !token.Valid || !claims.VerifyAudience(audience, true) || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// sessionMiddleware attaches the caller's session to the context, starting a new one
// when the cookie is missing, invalid or names an evicted session.
func sessionMiddleware(conf *core.Config, mgr *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			var id string
			if cookie, err := ctx.Cookie(conf.Session.CookieName); err == nil {
				if claims, err := ParseToken(conf, cookie.Value); err == nil {
					id = claims.Subject
				}
			}

			sess, _ := mgr.GetOrCreate(id)
			// refresh the cookie on every visit; the session is evicted after TTL of inactivity
			token, err := GenerateToken(conf, newClaims(conf, sess.ID(), time.Now()))
			if err != nil {
				return errors.Wrap(err, "generating session token")
			}
			ctx.SetCookie(&http.Cookie{
				Name:     conf.Session.CookieName,
				Value:    token,
				Path:     "/",
				MaxAge:   int(conf.Session.TTL / time.Second),
				HttpOnly: true,
				Secure:   conf.Env == "PROD",
				SameSite: http.SameSiteLaxMode,
			})

			ctx.Set(contextSessionKey, sess)
			return next(ctx)
		}
	}
}

func contextSession(ctx echo.Context) (*session.Session, bool) {
	sess, ok := ctx.Get(contextSessionKey).(*session.Session)
	return sess, ok
}
