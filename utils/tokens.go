package utils

import (
	"os"
	"time"

	"github.com/kataras/iris/v12/middleware/jwt"
)

type AccessToken struct {
	ID   uint   `json:"ID"`
	Role string `json:"role"`
}

func CreateAccessToken(id uint, role string) (string, error) {
	signer := jwt.NewSigner(jwt.HS256, os.Getenv("ACCESS_TOKEN_SECRET"), 24*time.Hour)

	claims := AccessToken{
		ID:   id,
		Role: role,
	}

	token, err := signer.Sign(claims)
	if err != nil {
		return "", err
	}

	return string(token), nil
}
