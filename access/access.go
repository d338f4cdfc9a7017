// Package access decides which principal may perform which certificate
// operation and which certificates a principal may see.
package access

import (
	"github.com/pkg/errors"

	"github.com/eduverify/credtrust/storage/model"
)

// Role is the role of a principal
type Role string

// Roles
const (
	RoleInstitute Role = "institute"
	RoleStudent   Role = "student"
	RoleVerifier  Role = "verifier"
	RoleAdmin     Role = "admin"
)

// AllRoles lists all known roles
var AllRoles = []Role{
	RoleInstitute,
	RoleStudent,
	RoleVerifier,
	RoleAdmin,
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// Action is something a principal does to a Resource
type Action string

// Actions
const (
	ActionCreate         Action = "create"
	ActionRead           Action = "read"
	ActionUpdate         Action = "update"
	ActionRevoke         Action = "revoke"
	ActionList           Action = "list"
	ActionView           Action = "view"
	ActionShare          Action = "share"
	ActionDownload       Action = "download"
	ActionVerify         Action = "verify"
	ActionDownloadReport Action = "download-report"
)

// Resource is the kind of object an Action applies to
type Resource string

// Resources
const (
	ResourceCertificate  Resource = "certificate"
	ResourceAnalytics    Resource = "analytics"
	ResourceProfile      Resource = "profile"
	ResourceVerification Resource = "verification"
)

// Capability is a single grant of an Action on a Resource
type Capability struct {
	Action   Action
	Resource Resource
}

var capabilities = map[Role][]Capability{
	RoleInstitute: {
		{ActionCreate, ResourceCertificate},
		{ActionRead, ResourceCertificate},
		{ActionUpdate, ResourceCertificate},
		{ActionRevoke, ResourceCertificate},
		{ActionList, ResourceCertificate},
		{ActionView, ResourceAnalytics},
		{ActionRead, ResourceProfile},
		{ActionUpdate, ResourceProfile},
	},
	RoleStudent: {
		{ActionRead, ResourceCertificate},
		{ActionShare, ResourceCertificate},
		{ActionDownload, ResourceCertificate},
		{ActionList, ResourceCertificate},
		{ActionRead, ResourceProfile},
		{ActionUpdate, ResourceProfile},
	},
	RoleVerifier: {
		{ActionVerify, ResourceCertificate},
		{ActionDownloadReport, ResourceCertificate},
		{ActionCreate, ResourceVerification},
		{ActionList, ResourceVerification},
		{ActionRead, ResourceProfile},
		{ActionUpdate, ResourceProfile},
	},
}

// Capabilities returns the capabilities granted to a role. Admins hold
// every capability; the returned list is empty for them.
func Capabilities(role Role) []Capability {
	return append([]Capability(nil), capabilities[role]...)
}

// HasCapability reports whether the role may perform action on resource
func HasCapability(role Role, action Action, resource Resource) bool {
	if role == RoleAdmin {
		return true
	}
	for _, c := range capabilities[role] {
		if c.Action == action && c.Resource == resource {
			return true
		}
	}
	return false
}

// Principal is an authenticated caller
type Principal struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Role        Role   `json:"role"`
	Email       string `json:"email,omitempty"`
	Institution string `json:"institution,omitempty"`
}

// PrincipalFromUser returns the Principal of a user account
func PrincipalFromUser(u *model.User) Principal {
	return Principal{
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        Role(u.Role),
		Email:       u.Email,
		Institution: u.Institution,
	}
}

// Can reports whether the principal may perform action on resource
func (p Principal) Can(action Action, resource Resource) bool {
	return HasCapability(p.Role, action, resource)
}

// ErrNoScope is returned for principals that own no certificates
var ErrNoScope = errors.New("principal has no certificate scope")

// Scope returns the query restricting certificate access to what the
// principal owns: institutes see their institution's issuances, students
// the certificates bound to their email and admins everything
func Scope(p Principal) (model.CertificateQuery, error) {
	switch p.Role {
	case RoleAdmin:
		return model.CertificateQuery{}, nil
	case RoleInstitute:
		if p.Institution == "" {
			return model.CertificateQuery{}, errors.Wrap(ErrNoScope, "institute without institution")
		}
		return model.CertificateQuery{InstitutionName: p.Institution}, nil
	case RoleStudent:
		if p.Email == "" {
			return model.CertificateQuery{}, errors.Wrap(ErrNoScope, "student without email")
		}
		return model.CertificateQuery{StudentEmail: p.Email}, nil
	default:
		return model.CertificateQuery{}, ErrNoScope
	}
}

// InScope reports whether the principal owns the certificate
func InScope(p Principal, cert *model.Certificate) bool {
	q, err := Scope(p)
	if err != nil {
		return false
	}
	return q.Matches(cert)
}
