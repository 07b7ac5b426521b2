package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
)

const (
	contextTokenKey      = "userToken"
	contextInstructorKey = "instructor"
	tokenAudience        = "asistencia"
)

// Claims represents the authorization claims transmitted via a JWT.
// Tokens are issued by the auth provider; this API only verifies them.
type Claims struct {
	jwt.StandardClaims
	Email string `json:"email,omitempty"`
}

func (c Claims) Instructor() attendance.Instructor {
	return attendance.Instructor{ID: c.Subject, Email: c.Email}
}

func jwtConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.Server.JWTSecret),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// NewClaims returns the claims of a token valid for ttl.
func NewClaims(ins attendance.Instructor, ttl time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   ins.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email: ins.Email,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(secret))
	return ss, errors.Wrap(err, "signing token")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextInstructor returns the instructor behind the request.
func getContextInstructor(ctx echo.Context) (attendance.Instructor, error) {
	if ins, ok := ctx.Get(contextInstructorKey).(attendance.Instructor); ok {
		return ins, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return attendance.Instructor{}, err
	}
	ins := claims.Instructor()
	ctx.Set(contextInstructorKey, ins)
	return ins, nil
}
