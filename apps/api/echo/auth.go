package echoapi

import (
	"context"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/user"
	revocationsvc "github.com/toure-cloud/institutdeveloppement/services/revocation"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
	audience        = "Institut"
	bearerPrefix    = "Bearer "

	portalAdmin     = "admin"
	portalCandidate = "candidate"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsCandidate  bool     `json:"is_candidate,omitempty"` // -> CANDIDATE SPACE
	IsAdmin      bool     `json:"is_admin,omitempty"`     // -> DASHBOARD
	IsOwner      bool     `json:"is_owner,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

// Portal is the space the front end sends the user to after login.
func (c Claims) Portal() string {
	if c.IsAdmin {
		return portalAdmin
	}
	if c.IsCandidate {
		return portalCandidate
	}
	return ""
}

type authenticator struct {
	issuer        string
	signingKey    []byte
	expiration    time.Duration
	refreshExpiry time.Duration
	revocations   revocationsvc.List
	now           func() time.Time
}

func newAuthenticator(conf *core.Config, revocations revocationsvc.List) *authenticator {
	if revocations == nil {
		revocations = revocationsvc.NewMemoryList()
	}
	return &authenticator{
		issuer:        conf.AppName,
		signingKey:    []byte(conf.SecretKey),
		expiration:    conf.Server.JWTExpirationDelta,
		refreshExpiry: conf.Server.JWTRefreshExpirationDelta,
		revocations:   revocations,
		now:           time.Now,
	}
}

func (a *authenticator) jwtConfig() middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    a.signingKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// middleware validates the bearer token, then rejects logged out tokens.
func (a *authenticator) middleware() echo.MiddlewareFunc {
	jwtMiddleware := middleware.JWTWithConfig(a.jwtConfig())
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtMiddleware(func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			revoked, err := a.revocations.IsRevoked(ctx.Request().Context(), claims.Id)
			if err != nil {
				return errors.Wrap(err, "checking token revocation")
			}
			if revoked {
				return errTokenRevoked
			}
			return next(ctx)
		})
	}
}

func (a *authenticator) claims(usr user.User, origIat ...int64) *Claims {
	now := a.now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Issuer:    a.issuer,
			Subject:   usr.ID,
			Audience:  audience,
			ExpiresAt: now.Add(a.expiration).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		IsCandidate:  usr.IsCandidate(),
		IsAdmin:      usr.IsAdmin(),
		IsOwner:      usr.IsSuperuser(),
		Roles:        usr.Roles,
	}
}

// generateToken signs the claims.
func (a *authenticator) generateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// login issues a token for usr after recording the login.
func (a *authenticator) login(ctx context.Context, usr user.User, svc user.Service) (*Claims, string, error) {
	usr, err := svc.SetLastLogin(ctx, usr)
	if err != nil {
		return nil, "", errors.Wrap(err, "setting lastLogin")
	}
	claims := a.claims(usr)
	token, err := a.generateToken(claims)
	if err != nil {
		return nil, "", err
	}
	return claims, token, nil
}

// authenticate checks the credentials; uname may be a username or an email.
func authenticate(ctx context.Context, uname, pwd string, svc user.Service) (user.User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.Active() {
		return user.User{}, errAccountDeactivated
	}
	return usr, nil
}

func (a *authenticator) refresh(ctx echo.Context, svc user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := getContextUser(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if user is still active
	if !usr.Active() {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.refreshExpiry)
	if a.now().After(expTime) {
		return "", errRefreshExpired
	}

	return a.generateToken(a.claims(usr, claims.OrigIssuedAt))
}

// revoke blocks the context token until it expires.
func (a *authenticator) revoke(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	ttl := time.Unix(claims.ExpiresAt, 0).Sub(a.now())
	return errors.Wrap(a.revocations.Revoke(ctx.Request().Context(), claims.Id, ttl), "revoking token")
}

// viewerID returns the subject of a valid bearer token, if any. Used by public pages.
func (a *authenticator) viewerID(ctx echo.Context) string {
	header := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(header[len(bearerPrefix):], claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != middleware.AlgorithmHS256 {
			return nil, errors.Errorf("unexpected jwt signing method=%v", t.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil || !token.Valid {
		return ""
	}
	if revoked, err := a.revocations.IsRevoked(ctx.Request().Context(), claims.Id); err != nil || revoked {
		return ""
	}
	return claims.Subject
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc user.Service, clms ...Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting context claims")
		}
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}
