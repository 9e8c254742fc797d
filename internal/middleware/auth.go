package middleware

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"backend/internal/model"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

func GetJWTSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			panic("FATAL: JWT_SECRET environment variable is required in production mode")
		}
		secret = "default_super_secret_key" // Development fallback only, DO NOT use in production
	}
	return []byte(secret)
}

// cookiePolicy picks SameSite/Secure for the deployment mode. Cross-origin
// production needs None+Secure; local development needs Lax without Secure.
func cookiePolicy() (http.SameSite, bool) {
	if os.Getenv("GIN_MODE") == "release" || os.Getenv("RENDER") != "" {
		return http.SameSiteNoneMode, true
	}
	return http.SameSiteLaxMode, false
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies
func SetTokenCookies(c *gin.Context, accessToken, refreshToken string) {
	sameSite, secure := cookiePolicy()
	c.SetSameSite(sameSite)
	c.SetCookie("access_token", accessToken, 3600*24, "/", "", secure, true)
	c.SetCookie("refresh_token", refreshToken, 3600*24*7, "/", "", secure, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies
func ClearTokenCookies(c *gin.Context) {
	sameSite, secure := cookiePolicy()
	c.SetSameSite(sameSite)
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
	c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
}

var (
	errNoCredentials = errors.New("authorization is missing")
	errBadAuthHeader = errors.New("invalid authorization format, expected 'Bearer <token>'")
)

// bearerToken pulls the access token from the cookie, falling back to the
// Authorization header for non-browser clients.
func bearerToken(c *gin.Context) (string, error) {
	if cookie, err := c.Cookie("access_token"); err == nil && cookie != "" {
		return cookie, nil
	}
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errNoCredentials
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", errBadAuthHeader
	}
	return token, nil
}

func hmacKeyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, jwt.ErrSignatureInvalid
	}
	return GetJWTSecret(), nil
}

// authenticate validates the request token, stores userID/userRole in the gin
// context and returns the role. On failure it aborts the request.
func authenticate(c *gin.Context) (string, bool) {
	tokenString, err := bearerToken(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return "", false
	}

	token, err := jwt.Parse(tokenString, hmacKeyFunc)
	if err != nil || !token.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "invalid token"))
		return "", false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "invalid token claims"))
		return "", false
	}
	role, ok := claims["role"].(string)
	if !ok {
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "role not found in token"))
		return "", false
	}

	c.Set("userID", claims["sub"])
	c.Set("userRole", role)
	return role, true
}

// RequireRole validates the JWT and checks the user's role against allowedRoles
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := authenticate(c)
		if !ok {
			return
		}
		for _, allowed := range allowedRoles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "access denied: insufficient permissions"))
	}
}

// --- Permission-based middleware ---

// rolePermCache caches permission codes per role name with a TTL so every
// request does not hit the database.
type rolePermCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]permCacheEntry
}

type permCacheEntry struct {
	codes     []string
	expiresAt time.Time
}

func (pc *rolePermCache) get(role string) ([]string, bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	entry, ok := pc.entries[role]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.codes, true
}

func (pc *rolePermCache) put(role string, codes []string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.entries[role] = permCacheEntry{codes: codes, expiresAt: time.Now().Add(pc.ttl)}
}

func (pc *rolePermCache) evict(role string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if role == "" {
		pc.entries = make(map[string]permCacheEntry)
		return
	}
	delete(pc.entries, role)
}

var permCache = &rolePermCache{
	ttl:     5 * time.Minute,
	entries: make(map[string]permCacheEntry),
}

// permDB is set once at startup via InitPermissionMiddleware
var permDB *gorm.DB

func InitPermissionMiddleware(db *gorm.DB) {
	permDB = db
}

// RequirePermission validates the JWT and checks that the user's role carries
// every listed permission code. The admin role passes every check.
func RequirePermission(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := authenticate(c)
		if !ok {
			return
		}
		if role == model.RoleAdmin {
			c.Next()
			return
		}

		granted, err := getPermissionsForRole(role)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "failed to verify permissions"))
			return
		}

		grantedSet := make(map[string]struct{}, len(granted))
		for _, code := range granted {
			grantedSet[code] = struct{}{}
		}
		for _, required := range requiredPerms {
			if _, ok := grantedSet[required]; !ok {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "access denied: missing permission '"+required+"'"))
				return
			}
		}
		c.Next()
	}
}

// getPermissionsForRole returns cached or freshly queried permission codes
func getPermissionsForRole(roleName string) ([]string, error) {
	if codes, ok := permCache.get(roleName); ok {
		return codes, nil
	}
	if permDB == nil {
		return nil, errors.New("permission middleware not initialized")
	}

	var codes []string
	err := permDB.Model(&model.Permission{}).
		Joins("JOIN role_permissions rp ON rp.permission_id = permissions.id").
		Joins("JOIN roles r ON r.id = rp.role_id").
		Where("r.name = ?", roleName).
		Pluck("permissions.code", &codes).Error
	if err != nil {
		return nil, err
	}

	permCache.put(roleName, codes)
	return codes, nil
}

// GetPermissionsForRoleFromDB exposes permission fetching for handlers (e.g. the /me endpoint)
func GetPermissionsForRoleFromDB(roleName string) ([]string, error) {
	return getPermissionsForRole(roleName)
}

// ClearPermissionCache drops cached permissions for a role, or every role
// when the name is empty. Role mutations call this so stale grants do not
// outlive the TTL.
func ClearPermissionCache(roleName string) {
	permCache.evict(roleName)
}
