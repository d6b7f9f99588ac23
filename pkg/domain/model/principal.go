package model

import (
	"strings"

	"github.com/secmon-lab/ragguard/pkg/domain/types"
)

// Principal is the opaque identity a question is asked on behalf of
type Principal string

// AnonymousPrincipal is used when no identity is available. Policies must
// grant it nothing unless explicitly configured to: a type wildcard such
// as "user:*" is not an explicit grant.
const AnonymousPrincipal Principal = "anonymous"

// NewPrincipal normalizes an identity from the request boundary, falling
// back to AnonymousPrincipal when it is blank.
func NewPrincipal(id string) Principal {
	id = strings.TrimSpace(id)
	if id == "" {
		return AnonymousPrincipal
	}
	return Principal(id)
}

func (p Principal) String() string {
	return string(p)
}

// IsAnonymous reports whether p is the anonymous fallback
func (p Principal) IsAnonymous() bool {
	return p == AnonymousPrincipal
}

// Subject returns the principal in "<type>:<id>" form. Principals that
// already carry a type tag (e.g. "user:alice") are returned unchanged.
func (p Principal) Subject() string {
	if strings.Contains(string(p), ":") {
		return string(p)
	}
	return types.SubjectKindUser.String() + ":" + string(p)
}
