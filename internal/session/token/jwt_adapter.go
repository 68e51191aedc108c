package token

import (
	authmw "alumnus/pkg/platform/middleware/auth"
)

// MiddlewareAdapter exposes JWTService through the auth middleware's
// validator interface.
type MiddlewareAdapter struct {
	service *JWTService
}

func NewMiddlewareAdapter(service *JWTService) *MiddlewareAdapter {
	return &MiddlewareAdapter{service: service}
}

func (a *MiddlewareAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{
		AccountID: claims.AccountID,
		ProfileID: claims.ProfileID,
		JTI:       claims.ID,
	}, nil
}
