package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
)

var ErrInvalidToken = errors.New("invalid token")

type TokenUser struct {
	UserID       string
	Name         string
	Role         string
	VendorStatus string
}

func CreateJWTToken(user TokenUser, jwtSecretKey string) (string, error) {
	claims := jwt.MapClaims{}
	claims["authorized"] = true
	claims["userID"] = user.UserID
	claims["name"] = user.Name
	claims["role"] = user.Role
	claims["vendorStatus"] = user.VendorStatus
	claims["exp"] = time.Now().Add(time.Hour * 24).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecretKey))
}

// ExtractTokenUser reads the claims the JWT middleware stored under "user".
func ExtractTokenUser(c echo.Context) (TokenUser, error) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok || token == nil || !token.Valid {
		return TokenUser{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return TokenUser{}, ErrInvalidToken
	}

	userID, _ := claims["userID"].(string)
	if userID == "" {
		return TokenUser{}, ErrInvalidToken
	}

	name, _ := claims["name"].(string)
	role, _ := claims["role"].(string)
	vendorStatus, _ := claims["vendorStatus"].(string)

	return TokenUser{UserID: userID, Name: name, Role: role, VendorStatus: vendorStatus}, nil
}
