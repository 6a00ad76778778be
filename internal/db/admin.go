package db

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urbanisme-sn/portail/internal/models"
	"github.com/urbanisme-sn/portail/internal/rbac"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// CreateDefaultAdmin creates a default admin user if ADMIN_USERNAME and ADMIN_PASSWORD are set
// and no users exist in the database
func CreateDefaultAdmin(db *gorm.DB, enforcer *rbac.Enforcer) error {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	email := os.Getenv("ADMIN_EMAIL")

	// If no admin credentials provided, skip
	if username == "" || password == "" {
		slog.Info("No ADMIN_USERNAME or ADMIN_PASSWORD set, skipping default admin creation")
		return nil
	}

	// Set default email if not provided
	if email == "" {
		email = fmt.Sprintf("%s@urbanisme.gouv.sn", username)
	}

	// Check if any users exist
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}

	// If users already exist, skip
	if count > 0 {
		slog.Info("Users already exist, skipping default admin creation")
		return nil
	}

	user, err := CreateUser(db, enforcer, username, email, password, rbac.RoleAdmin)
	if err != nil {
		return err
	}

	slog.Info("Default admin user created", "username", user.Username, "email", user.Email)
	return nil
}

// CreateUser stores an account with a bcrypt-hashed password and grants it role.
func CreateUser(db *gorm.DB, enforcer *rbac.Enforcer, username, email, password, role string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		RoleName:     role,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := enforcer.AssignRole(user.ID.String(), role); err != nil {
		return nil, fmt.Errorf("failed to grant %s role: %w", role, err)
	}
	return &user, nil
}
