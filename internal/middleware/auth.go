package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/services"
)

type contextKey string

const driverIDKey contextKey = "driverID"

// Auth validates driver bearer tokens issued by the identity collaborator.
type Auth struct {
	secret []byte
	log    zerolog.Logger
}

func NewAuth(secretKey string, log zerolog.Logger) *Auth {
	return &Auth{secret: []byte(secretKey), log: log}
}

// Driver requires a valid token and stores its driver_id claim in the
// request context. The token may also arrive as ?token= for WebSocket
// upgrades, where browsers cannot set headers.
func (a *Auth) Driver(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tokenString string

		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				services.SendAppError(w, apperrors.New(apperrors.CodeUnauthorized, "invalid authorization header format"))
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = r.URL.Query().Get("token")
		}
		if tokenString == "" {
			services.SendAppError(w, apperrors.New(apperrors.CodeUnauthorized, "authorization token required"))
			return
		}

		driverID, err := a.validateToken(tokenString)
		if err != nil {
			a.log.Debug().Err(err).Str("path", r.URL.Path).Msg("token rejected")
			services.SendAppError(w, apperrors.Wrap(apperrors.CodeUnauthorized, err, "invalid token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithDriverID(r.Context(), driverID)))
	})
}

func (a *Auth) validateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("token is not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}

	driverID, _ := claims["driver_id"].(string)
	if driverID == "" {
		driverID, _ = claims["sub"].(string)
	}
	if driverID == "" {
		return "", fmt.Errorf("token carries no driver_id")
	}
	return driverID, nil
}

// InternalKey guards collaborator endpoints with a shared API key.
func InternalKey(apiKey string, log zerolog.Logger) func(http.Handler) http.Handler {
	expected := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given := []byte(r.Header.Get("X-Internal-Key"))
			if len(expected) == 0 || subtle.ConstantTimeCompare(given, expected) != 1 {
				log.Warn().Str("path", r.URL.Path).Str("remote_addr", r.RemoteAddr).Msg("internal API key rejected")
				services.SendAppError(w, apperrors.New(apperrors.CodeUnauthorized, "invalid internal API key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithDriverID(ctx context.Context, driverID string) context.Context {
	return context.WithValue(ctx, driverIDKey, driverID)
}

func DriverIDFromContext(ctx context.Context) (string, bool) {
	driverID, ok := ctx.Value(driverIDKey).(string)
	return driverID, ok && driverID != ""
}
