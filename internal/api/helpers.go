package api

import (
	"crypto/subtle"

	"github.com/danielgtaylor/huma/v2"
)

// requireAdmin validates the admin API key supplied in the X-Admin-Key
// header. An empty configured key disables the admin surface entirely.
// The comparison is constant-time so the key cannot be probed byte by byte.
func (s *Server) requireAdmin(key string) error {
	if s.adminKey == "" {
		return huma.Error401Unauthorized("Admin API is disabled")
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.adminKey)) != 1 {
		return huma.Error401Unauthorized("Invalid admin API key")
	}
	return nil
}
