package wskit

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/fgrzl/claims"
)

const (
	ScopeAllChannels = "hub::*"
	ScopePrefix      = "hub::"
)

func NewClientSession() Session {
	return &session{allowAll: true}
}

// NewServerSession derives channel access from scopes: hub::* grants every
// channel, hub::<channel> grants one.
func NewServerSession(scopes []string) (Session, error) {
	allowed := make(map[string]struct{})

	for _, scope := range scopes {
		if scope == ScopeAllChannels {
			return &session{allowAll: true}, nil
		}

		if strings.HasPrefix(scope, ScopePrefix) {
			channel := strings.TrimPrefix(scope, ScopePrefix)
			if channel == "" {
				slog.Warn("ignoring empty channel scope", "scope", scope)
				continue
			}
			allowed[channel] = struct{}{}
		}
	}

	if len(allowed) == 0 {
		return nil, fmt.Errorf("invalid scope: expected %q or %q{channel}", ScopeAllChannels, ScopePrefix)
	}

	return &session{allowed: allowed}, nil
}

func NewPrincipalSession(principal claims.Principal) (Session, error) {
	return NewServerSession(principal.Scopes())
}

type Session interface {
	CanAccess(channel string) bool
	AllowedChannels() []string
	AllowAll() bool
}

type session struct {
	allowAll bool
	allowed  map[string]struct{}
}

func (s *session) CanAccess(channel string) bool {
	if s.allowAll {
		return true
	}
	_, ok := s.allowed[channel]
	return ok
}

func (s *session) AllowedChannels() []string {
	if s.allowAll {
		return nil // semantically means all
	}
	channels := make([]string, 0, len(s.allowed))
	for ch := range s.allowed {
		channels = append(channels, ch)
	}
	slices.Sort(channels)
	return channels
}

func (s *session) AllowAll() bool {
	return s.allowAll
}
