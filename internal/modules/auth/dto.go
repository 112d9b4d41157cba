package auth

import "time"

type InitSessionRequest struct {
	Token string `json:"token" binding:"required"`
}

type ViewerResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

type SessionResponse struct {
	Viewer    ViewerResponse `json:"viewer"`
	ExpiresAt time.Time      `json:"expiresAt"`
}
