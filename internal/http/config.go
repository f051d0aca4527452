package http

import (
	"github.com/mrlokans/dancecoach/internal/auth"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database Pinger

	// Authentication
	AuthService    *auth.Service
	AuthMiddleware *auth.Middleware
	RateLimiter    *auth.RateLimiter // nil disables login throttling

	// Administration
	Accounts     AccountDirectory
	AuditService AuditReader
	AuditLogger  auth.AuditLogger

	// Task queue (optional, both nil when the queue is disabled)
	TaskClient   TaskStatusReader
	AuditCleanup CleanupTrigger

	// Serve Strict-Transport-Security on HTTPS requests
	EnableHSTS bool

	// Proxies allowed to set X-Forwarded-For. Empty trusts none, so the
	// client IP is the socket peer.
	TrustedProxies []string

	// Application info
	Version string
}
