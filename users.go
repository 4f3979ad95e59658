package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = `
	id, user_name, email, password_hash, address, profile_image_url,
	is_active, is_admin, created_at, modified_at
`

func scanUser(scanner interface{ Scan(...any) error }) (User, error) {
	var u User
	err := scanner.Scan(
		&u.ID, &u.UserName, &u.Email, &u.PasswordHash, &u.Address, &u.ProfileImageURL,
		&u.IsActive, &u.IsAdmin, &u.CreatedAt, &u.ModifiedAt,
	)
	return u, err
}

func findUserByEmail(email string) (User, error) {
	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// registerUser creates a new account
func registerUser(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "error": err.Error()})
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while creating the account."})
		return
	}

	_, err = db.Exec(`
		INSERT INTO users (user_name, email, password_hash, address, profile_image_url)
		VALUES ($1, $2, $3, $4, $5)
	`, req.UserName, req.Email, hash, req.Address, req.ProfileImageURL)
	if isUniqueViolation(err) {
		c.JSON(http.StatusConflict, gin.H{"message": "User with this email already exists."})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while creating the account."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account created successfully!"})
}

// loginUser checks credentials and issues an access token
func loginUser(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "error": err.Error()})
		return
	}

	user, err := findUserByEmail(req.Email)
	if errors.Is(err, sql.ErrNoRows) {
		// keep the unknown-email path as slow as a wrong-password check
		checkPassword(dummyPasswordHash, req.Password)
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password."})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while logging in."})
		return
	}
	if !checkPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password."})
		return
	}

	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Your account is not active. Please contact admin for assistance."})
		return
	}

	token, err := generateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while logging in."})
		return
	}
	user.AccessToken = token

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

type googleUserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// googleUserinfoURL is swappable in tests
var googleUserinfoURL = "https://www.googleapis.com/oauth2/v1/userinfo"

// fetchGoogleUser verifies an access token against the Google userinfo endpoint
func fetchGoogleUser(accessToken string) (googleUserInfo, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(googleUserinfoURL + "?alt=json&access_token=" + url.QueryEscape(accessToken))
	if err != nil {
		return googleUserInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return googleUserInfo{}, errors.New("google rejected the access token")
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return googleUserInfo{}, err
	}
	return info, nil
}

// googleLogin signs in an existing account through a Google access token
func googleLogin(c *gin.Context) {
	var req GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "error": err.Error()})
		return
	}

	info, err := fetchGoogleUser(req.AccessToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid Google access token."})
		return
	}
	if info.Email != req.Email {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid Google login."})
		return
	}

	user, err := findUserByEmail(req.Email)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "User does not exist"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while logging in."})
		return
	}

	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Your account is not active. Please contact admin for assistance."})
		return
	}

	token, err := generateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while logging in."})
		return
	}
	user.AccessToken = token

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// getUser retrieves a user profile by id
func getUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid user id"})
		return
	}

	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while fetching user."})
		return
	}

	c.JSON(http.StatusOK, user)
}

// updateUser updates a user profile
func updateUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid user id"})
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "error": err.Error()})
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while updating the user."})
		return
	}

	res, err := db.Exec(`
		UPDATE users
		SET user_name = $1, email = $2, password_hash = $3, address = $4,
		    profile_image_url = $5, modified_at = CURRENT_TIMESTAMP
		WHERE id = $6
	`, req.UserName, req.Email, hash, req.Address, req.ProfileImageURL, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while updating the user."})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully."})
}

// softDeleteUser deactivates an account without removing its data
func softDeleteUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid user id"})
		return
	}

	_, err = db.Exec(`
		UPDATE users SET is_active = FALSE, modified_at = CURRENT_TIMESTAMP WHERE id = $1
	`, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while soft deleting the user."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User soft deleted successfully."})
}

// forgotPassword resets a password by email
func forgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "error": err.Error()})
		return
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while updating the password."})
		return
	}

	res, err := db.Exec(`
		UPDATE users SET password_hash = $1, modified_at = CURRENT_TIMESTAMP WHERE email = $2
	`, hash, req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while updating the password."})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully."})
}

// checkUserExists reports whether an account exists for an email
func checkUserExists(c *gin.Context) {
	var req EmailCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "error": err.Error()})
		return
	}

	var exists bool
	err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, req.Email).Scan(&exists)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while checking the user."})
		return
	}

	if exists {
		c.JSON(http.StatusOK, gin.H{"message": "User already exists", "is_exists": 1})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User does not exist", "is_exists": 0})
}
