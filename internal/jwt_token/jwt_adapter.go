package jwttoken

import (
	"github.com/google/uuid"

	id "propnest/pkg/domain"
	dErrors "propnest/pkg/domain-errors"
)

// ToActor maps validated claims onto the caller identity.
func ToActor(claims *Claims) (id.Actor, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return id.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	return id.Actor{UserID: id.UserID(userID), Role: id.ParseRole(claims.Role)}, nil
}

// JWTServiceAdapter satisfies the auth middleware's validator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (id.Actor, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return id.Actor{}, err
	}
	return ToActor(claims)
}
