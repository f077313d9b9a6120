package middleware

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Rohianon/chatcommerce/pkg/auth"
	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/pkg/logger"
)

// RequestID assigns an X-Request-ID and attaches a request-scoped logger to
// the user context so downstream code can call logger.WithContext.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Locals("request_id", requestID)
		c.Set("X-Request-ID", requestID)

		l := logger.Logger.With().Str("request_id", requestID).Logger()
		c.SetUserContext(logger.NewContext(c.UserContext(), l))

		return c.Next()
	}
}

func GetRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("request_id").(string); ok {
		return id
	}
	return ""
}

func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		return c.Next()
	}
}

func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		logger.Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("latency", time.Since(start)).
			Str("request_id", GetRequestID(c)).
			Msg("request")

		return err
	}
}

type RateLimitConfig struct {
	Max      int
	Duration time.Duration
	// KeyFunc selects the bucket; defaults to the client IP.
	KeyFunc func(c *fiber.Ctx) string
}

type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	config   RateLimitConfig
}

type visitor struct {
	count       int
	windowStart time.Time
}

// RateLimiter is a fixed-window limiter. Idle buckets are pruned lazily on
// each request once the window has passed twice.
func RateLimiter(config RateLimitConfig) fiber.Handler {
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *fiber.Ctx) string { return c.IP() }
	}
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		config:   config,
	}

	return func(c *fiber.Ctx) error {
		if !rl.allow(config.KeyFunc(c), time.Now()) {
			return apperrors.ErrRateLimited
		}
		return c.Next()
	}
}

func (rl *rateLimiter) allow(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for k, v := range rl.visitors {
		if now.Sub(v.windowStart) > rl.config.Duration*2 {
			delete(rl.visitors, k)
		}
	}

	v, ok := rl.visitors[key]
	if !ok || now.Sub(v.windowStart) > rl.config.Duration {
		rl.visitors[key] = &visitor{count: 1, windowStart: now}
		return true
	}
	if v.count >= rl.config.Max {
		return false
	}
	v.count++
	return true
}

// TokenValidator is satisfied by *auth.JWTManager.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// Auth requires a valid bearer token and, when roles are given, one of them.
func Auth(validator TokenValidator, roles ...string) fiber.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return apperrors.ErrUnauthorized
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			return apperrors.ErrUnauthorized.WithMessage("Invalid authorization header format")
		}

		claims, err := validator.Validate(tokenString)
		if err != nil {
			return err
		}

		if len(allowed) > 0 && !allowed[claims.Role] {
			return apperrors.ErrForbidden
		}

		c.Locals("username", claims.Username)
		c.Locals("role", claims.Role)

		return c.Next()
	}
}

func GetUsername(c *fiber.Ctx) string {
	if u, ok := c.Locals("username").(string); ok {
		return u
	}
	return ""
}

type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	MaxAge           int
}

func CORS(config CORSConfig) fiber.Handler {
	allowOrigins := strings.Join(config.AllowOrigins, ",")
	if len(config.AllowOrigins) == 0 {
		allowOrigins = "*"
	}

	allowMethods := strings.Join(config.AllowMethods, ",")
	if len(config.AllowMethods) == 0 {
		allowMethods = "GET,POST,PUT,DELETE,OPTIONS"
	}

	allowHeaders := strings.Join(config.AllowHeaders, ",")
	if len(config.AllowHeaders) == 0 {
		allowHeaders = "Origin,Content-Type,Accept,Authorization,X-Request-ID"
	}

	return func(c *fiber.Ctx) error {
		c.Set("Access-Control-Allow-Origin", allowOrigins)
		c.Set("Access-Control-Allow-Methods", allowMethods)
		c.Set("Access-Control-Allow-Headers", allowHeaders)

		if config.AllowCredentials {
			c.Set("Access-Control-Allow-Credentials", "true")
		}
		if config.MaxAge > 0 {
			c.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
		}

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}
