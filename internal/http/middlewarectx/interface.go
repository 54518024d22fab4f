package middlewarectx

import (
	jwtlib "github.com/magabrotheeeer/channel-access-bot/internal/lib/jwt"
)

// TokenParser описывает интерфейс разбора и проверки JWT токена.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwtlib.CustomClaims, error)
}
