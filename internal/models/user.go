package models

import "time"

// User represents a user in the system
type User struct {
	UserID       string    `json:"user_id" dynamodbav:"user_id"`   // Primary Key
	Username     string    `json:"username" dynamodbav:"username"` // Unique username
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`   // bcrypt hash (never in JSON)
	CreatedAt    time.Time `json:"created_at" dynamodbav:"created_at"`
}

// LoginRequest represents login request payload
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest represents registration request payload
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse represents registration response
type RegisterResponse struct {
	Message  string `json:"message"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	ExpiresIn int    `json:"expires_in"` // seconds
}
