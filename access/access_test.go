package access

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eduverify/credtrust/identity"
	"github.com/eduverify/credtrust/storage/model"
)

func TestHasCapability(t *testing.T) {
	tests := []struct {
		role     Role
		action   Action
		resource Resource
		expected bool
	}{
		{RoleInstitute, ActionCreate, ResourceCertificate, true},
		{RoleInstitute, ActionRevoke, ResourceCertificate, true},
		{RoleInstitute, ActionView, ResourceAnalytics, true},
		{RoleInstitute, ActionVerify, ResourceCertificate, false},
		{RoleStudent, ActionRead, ResourceCertificate, true},
		{RoleStudent, ActionList, ResourceCertificate, true},
		{RoleStudent, ActionCreate, ResourceCertificate, false},
		{RoleStudent, ActionRevoke, ResourceCertificate, false},
		{RoleVerifier, ActionVerify, ResourceCertificate, true},
		{RoleVerifier, ActionList, ResourceVerification, true},
		{RoleVerifier, ActionList, ResourceCertificate, false},
		{RoleAdmin, ActionRevoke, ResourceCertificate, true},
		{RoleAdmin, Action("anything"), Resource("anywhere"), true},
		{Role("guest"), ActionRead, ResourceCertificate, false},
		{Role(""), ActionRead, ResourceProfile, false},
	}
	for _, test := range tests {
		t.Run(
			string(test.role)+":"+string(test.action)+":"+string(test.resource), func(t *testing.T) {
				require.Equal(t, test.expected, HasCapability(test.role, test.action, test.resource))
			},
		)
	}
}

func TestCapabilitiesCopy(t *testing.T) {
	caps := Capabilities(RoleStudent)
	caps[0] = Capability{ActionRevoke, ResourceCertificate}
	require.False(t, HasCapability(RoleStudent, ActionRevoke, ResourceCertificate))
}

func TestScope(t *testing.T) {
	q, err := Scope(Principal{Role: RoleInstitute, Institution: "MIT"})
	require.NoError(t, err)
	require.Equal(t, "MIT", q.InstitutionName)
	require.Empty(t, q.StudentEmail)

	q, err = Scope(Principal{Role: RoleStudent, Email: "ada@example.org"})
	require.NoError(t, err)
	require.Equal(t, "ada@example.org", q.StudentEmail)
	require.Empty(t, q.InstitutionName)

	q, err = Scope(Principal{Role: RoleAdmin})
	require.NoError(t, err)
	require.Empty(t, q.InstitutionName)
	require.Empty(t, q.StudentEmail)

	_, err = Scope(Principal{Role: RoleVerifier})
	require.ErrorIs(t, err, ErrNoScope)
	_, err = Scope(Principal{Role: RoleInstitute})
	require.ErrorIs(t, err, ErrNoScope)
	_, err = Scope(Principal{Role: RoleStudent})
	require.ErrorIs(t, err, ErrNoScope)
}

func TestInScope(t *testing.T) {
	cert := &model.Certificate{
		CertificateID: "EDU-1-AAAAAAAAA",
		Fields: identity.Fields{
			StudentEmail:    "ada@example.org",
			InstitutionName: "MIT",
		},
	}
	require.True(t, InScope(Principal{Role: RoleInstitute, Institution: "MIT"}, cert))
	require.False(t, InScope(Principal{Role: RoleInstitute, Institution: "Yale"}, cert))
	require.True(t, InScope(Principal{Role: RoleStudent, Email: "ada@example.org"}, cert))
	require.False(t, InScope(Principal{Role: RoleStudent, Email: "bob@example.org"}, cert))
	require.True(t, InScope(Principal{Role: RoleAdmin}, cert))
	require.False(t, InScope(Principal{Role: RoleVerifier}, cert))
}

func TestPrincipalFromUser(t *testing.T) {
	p := PrincipalFromUser(
		&model.User{
			Username:    "mit-registrar",
			Role:        "institute",
			Email:       "registrar@mit.edu",
			Institution: "MIT",
		},
	)
	require.Equal(t, RoleInstitute, p.Role)
	require.True(t, p.Can(ActionCreate, ResourceCertificate))
	require.True(t, p.Role.Valid())
	require.False(t, Role("root").Valid())
}
