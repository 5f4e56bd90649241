// Package identity resolves the calling user and gates privileged transactions.
package identity

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/SilvStei/ProductLedger/internal/errs"
)

const (
	// AdminUserID is the reserved user id that is always treated as admin.
	AdminUserID = "admin"

	// RoleAdmin is the role required for privileged transactions.
	RoleAdmin = "admin"

	// UserTypeAttr is the certificate attribute carrying the caller's role.
	UserTypeAttr = "usertype"
)

// Provider is the part of the client identity the resolver needs.
// cid.ClientIdentity satisfies it.
type Provider interface {
	GetID() (string, error)
	GetAttributeValue(attrName string) (value string, found bool, err error)
}

// Caller is the resolved identity of a transaction submitter.
type Caller struct {
	UserID string
	Role   string
}

// Require fails with PermissionDenied unless the caller holds role.
func (c Caller) Require(role string) error {
	return RequireRole(c.Role, role)
}

// Resolve derives the caller's user id and role from the identity.
func Resolve(p Provider) (Caller, error) {
	raw, err := p.GetID()
	if err != nil {
		return Caller{}, fmt.Errorf("failed to read client id: %w", err)
	}
	userID, err := ParseUserID(raw)
	if err != nil {
		return Caller{}, err
	}
	if userID == AdminUserID {
		return Caller{UserID: userID, Role: RoleAdmin}, nil
	}
	role, _, err := p.GetAttributeValue(UserTypeAttr)
	if err != nil {
		return Caller{}, fmt.Errorf("failed to read %s attribute: %w", UserTypeAttr, err)
	}
	return Caller{UserID: userID, Role: role}, nil
}

// RequireRole fails with PermissionDenied when actual differs from required.
func RequireRole(actual, required string) error {
	if actual != required {
		return errs.PermissionDenied()
	}
	return nil
}

const (
	slashBegin = "/CN="
	slashEnd   = "::/C="
	x509Begin  = "x509::CN="
)

// ParseUserID extracts the common name of the subject from a client id
// descriptor. Both the slash separated DN form and the comma separated form
// produced by the Go client identity library (optionally base64 encoded) are
// accepted. An empty common name is malformed.
func ParseUserID(descriptor string) (string, error) {
	if userID := commonName(decodeID(descriptor)); userID != "" {
		return userID, nil
	}
	return "", errs.New(errs.ErrMalformedIdentity, "Unable to parse user id from client identity")
}

func commonName(id string) string {
	if begin := strings.Index(id, slashBegin); begin >= 0 {
		if end := strings.LastIndex(id, slashEnd); end > begin {
			return id[begin+len(slashBegin) : end]
		}
	}

	if strings.HasPrefix(id, x509Begin) {
		rest := id[len(x509Begin):]
		if end := strings.Index(rest, "::"); end >= 0 {
			subject, _, _ := strings.Cut(rest[:end], ",")
			return subject
		}
	}
	return ""
}

// decodeID undoes the base64 encoding applied by cid.ClientIdentity.GetID.
func decodeID(descriptor string) string {
	if strings.HasPrefix(descriptor, "x509::") {
		return descriptor
	}
	decoded, err := base64.StdEncoding.DecodeString(descriptor)
	if err != nil || !strings.HasPrefix(string(decoded), "x509::") {
		return descriptor
	}
	return string(decoded)
}
