package middlewares_test

import (
	"encoding/base64"
	"testing"

	"github.com/pbitips/workload/internal/model"
	"github.com/pbitips/workload/internal/server/middlewares"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePrincipal(t *testing.T) {
	header := base64.StdEncoding.EncodeToString([]byte(`{
		"identityProvider": "aad",
		"userId": "u1",
		"userDetails": "u1@contoso.com",
		"userRoles": ["anonymous", "authenticated", "Contributor"]
	}`))

	p, err := middlewares.DecodePrincipal(header)
	require.NoError(t, err)
	assert.Equal(t, "aad", p.IdentityProvider)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "u1@contoso.com", p.UserDetails)
	assert.True(t, p.HasRole(model.RoleContributor))
	assert.False(t, p.HasRole(model.RoleAdmin))
}

func TestDecodePrincipalInvalid(t *testing.T) {
	for name, header := range map[string]string{
		"not base64": "%%%",
		"not json":   base64.StdEncoding.EncodeToString([]byte("u1")),
		"no user id": base64.StdEncoding.EncodeToString([]byte(`{"identityProvider":"aad","userRoles":["Admin"]}`)),
	} {
		_, err := middlewares.DecodePrincipal(header)
		assert.Error(t, err, name)
	}
}
