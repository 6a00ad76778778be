package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/urbanisme-sn/portail/internal/audit"
	"github.com/urbanisme-sn/portail/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

const (
	// UserContextKey is the key used to store user in Gin context
	UserContextKey = "user"
	// TokenDuration is the validity period for JWT tokens
	TokenDuration = 24 * time.Hour
	// Issuer is the iss claim of locally issued tokens.
	Issuer = "portail"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Claims represents JWT claims. Tokens issued by the site backend carry the same claims.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 access tokens and issues them for local accounts.
type Authenticator struct {
	db        *gorm.DB
	jwtSecret []byte
	audit     *audit.Service
}

// NewAuthenticator creates an authenticator. auditSvc may be nil.
func NewAuthenticator(db *gorm.DB, jwtSecret string, auditSvc *audit.Service) *Authenticator {
	return &Authenticator{
		db:        db,
		jwtSecret: []byte(jwtSecret),
		audit:     auditSvc,
	}
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks if a password matches the hash
func VerifyPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Login authenticates a local account and returns a JWT token
func (a *Authenticator) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var user models.User
	result := a.db.WithContext(ctx).Where("username = ?", username).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			slog.Warn("Login attempt with non-existent username", "username", username)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	if !VerifyPassword(user.PasswordHash, password) {
		slog.Warn("Login attempt with incorrect password", "username", username)
		return nil, ErrInvalidCredentials
	}

	token, err := a.GenerateToken(&user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	if a.audit != nil {
		a.audit.Log(ctx, audit.Entry{
			UserID:     user.ID.String(),
			UserEmail:  user.Email,
			Action:     audit.ActionLogin,
			EntityType: "users",
			EntityID:   user.ID.String(),
			EntityName: user.Username,
		})
	}

	slog.Info("User logged in successfully", "user_id", user.ID, "username", user.Username)
	return &LoginResponse{
		Token: token,
		User:  &user,
	}, nil
}

// Logout records the end of the session of the user in c.
func (a *Authenticator) Logout(c *gin.Context) {
	user, err := GetUserFromContext(c)
	if err != nil || a.audit == nil {
		return
	}
	a.audit.Log(c.Request.Context(), audit.Entry{
		Action:     audit.ActionLogout,
		EntityType: "users",
		EntityID:   user.ID.String(),
		EntityName: user.Username,
	})
}

// GenerateToken creates a JWT token for a user
func (a *Authenticator) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
		Role:     user.RoleName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ValidateToken validates a JWT token and returns claims
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.UserID == "" {
			claims.UserID = claims.Subject
		}
		return claims, nil
	}

	return nil, ErrUnauthorized
}

// Middleware returns a Gin middleware for authentication. The token is read from the
// Authorization header, or the token query parameter when the header is absent. The request
// context carries the audit actor.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			c.Abort()
			return
		}

		user, err := a.validateAndLoadUser(c.Request.Context(), tokenString)
		if err != nil {
			slog.Warn("Invalid token", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(UserContextKey, user)
		c.Request = c.Request.WithContext(audit.WithActor(c.Request.Context(), audit.Actor{
			UserID:    user.ID.String(),
			Email:     user.Email,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}))
		c.Next()
	}
}

// validateAndLoadUser validates a token and loads the matching account. Accounts managed only by
// the site backend have no local row; they are described from the claims.
func (a *Authenticator) validateAndLoadUser(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := a.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in token: %w", err)
	}

	var user models.User
	result := a.db.WithContext(ctx).First(&user, "id = ?", userID)
	switch {
	case result.Error == nil:
		if user.RoleName == "" {
			user.RoleName = claims.Role
		}
		return &user, nil
	case errors.Is(result.Error, gorm.ErrRecordNotFound):
		return &models.User{
			ID:       userID,
			Username: claims.Username,
			Email:    claims.Email,
			RoleName: claims.Role,
		}, nil
	}
	return nil, fmt.Errorf("failed to load user: %w", result.Error)
}

// GetUserFromContext extracts the authenticated user from the Gin context
func GetUserFromContext(c *gin.Context) (*models.User, error) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return nil, ErrUnauthorized
	}

	user, ok := value.(*models.User)
	if !ok {
		return nil, errors.New("invalid user in context")
	}

	return user, nil
}

// Subject is the RBAC subject of user: its role when known, its id otherwise.
func Subject(user *models.User) string {
	if user.RoleName != "" {
		return user.RoleName
	}
	return user.ID.String()
}
