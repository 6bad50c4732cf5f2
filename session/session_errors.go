package session

import "errors"

var (
	NotAuthenticatedErr = errors.New("not authenticated")
	RenewalFailedErr    = errors.New("token renewal failed")
	TornDownErr         = errors.New("session torn down")
	ExpiredTokenErr     = errors.New("token already expired")
	LogoutFailedErr     = errors.New("provider logout failed")
)
