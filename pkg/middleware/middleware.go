package middleware

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/margindesk/admin-api/pkg/response"
	"golang.org/x/time/rate"
)

// Context keys set by JWTAuth.
const (
	ContextKeyAdminID = "admin_id"
	ContextKeyRole    = "role"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	visitors = make(map[string]*visitor)
	mu       sync.RWMutex

	// Configure limits per endpoint type
	authLimit     = rate.Limit(10.0 / 60.0)   // 10 requests per minute
	tradeLimit    = rate.Limit(100.0 / 60.0)  // 100 requests per minute
	internalLimit = rate.Limit(1000.0 / 60.0) // 1000 requests per minute
)

// Cleanup old visitors periodically
func init() {
	go cleanupVisitors()
}

func getLimiter(path, clientID string) *rate.Limiter {
	mu.Lock()
	defer mu.Unlock()

	key := clientID + ":" + path
	v, exists := visitors[key]

	if !exists {
		var limit rate.Limit
		switch {
		case strings.HasPrefix(path, "/api/v1/auth"):
			limit = authLimit
		case strings.HasPrefix(path, "/api/v1/trades"):
			limit = tradeLimit
		case strings.HasPrefix(path, "/api/v1/internal"):
			limit = internalLimit
		default:
			limit = rate.Inf // No limit for other paths
		}

		v = &visitor{
			limiter:  rate.NewLimiter(limit, 1), // burst of 1
			lastSeen: time.Now(),
		}
		visitors[key] = v
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func cleanupVisitors() {
	for {
		time.Sleep(time.Minute)

		mu.Lock()
		for ip, v := range visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(visitors, ip)
			}
		}
		mu.Unlock()
	}
}

func RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetString(ContextKeyAdminID)
		if clientID == "" {
			clientID = c.ClientIP()
		}

		limiter := getLimiter(c.FullPath(), clientID)
		if !limiter.Allow() {
			response.BadRequest(c, "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}

		c.Next()
	}
}

// JWTAuth validates the bearer token and puts admin_id and role into the
// request context. It verifies only the credential; whether the admin is
// still active is checked per operation against the database.
func JWTAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		bearerToken := strings.Split(authHeader, " ")
		if len(bearerToken) != 2 || strings.ToLower(bearerToken[0]) != "bearer" {
			response.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		tokenString := bearerToken[1]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})

		if err != nil {
			response.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			response.Unauthorized(c, "Invalid token claims")
			c.Abort()
			return
		}

		adminID, ok := claims["admin_id"].(string)
		if !ok || adminID == "" {
			response.Unauthorized(c, "Missing required claim: admin_id")
			c.Abort()
			return
		}

		c.Set(ContextKeyAdminID, adminID)
		if role, ok := claims["role"].(string); ok {
			c.Set(ContextKeyRole, role)
		}

		c.Next()
	}
}

// RequireSuperAdmin guards internal endpoints that regular admins must not
// reach regardless of assignment scope. The token's role claim is not
// trusted on its own: lookup re-checks the admin against the database, so
// deactivation or demotion takes effect immediately rather than at token
// expiry.
func RequireSuperAdmin(lookup func(adminID string) (role string, err error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := lookup(GetAdminID(c))
		if err != nil || role != "super_admin" {
			response.Forbidden(c, "Access denied: super admin required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetAdminID extracts the authenticated admin id from the Gin context.
func GetAdminID(c *gin.Context) string {
	return c.GetString(ContextKeyAdminID)
}
