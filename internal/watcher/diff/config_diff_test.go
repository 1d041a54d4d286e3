package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/traylinx/modelgate/internal/config"
	"github.com/traylinx/modelgate/internal/policy"
)

func TestSummarizeList(t *testing.T) {
	assert.Equal(t, SummarizeList([]string{"b", "a", " a "}), SummarizeList([]string{"a", "b"}))
	assert.NotEqual(t, SummarizeList([]string{"a"}), SummarizeList([]string{"a", "b"}))
	assert.Equal(t, ListSummary{}, SummarizeList(nil))
}

func TestBuildConfigChangeDetails(t *testing.T) {
	oldCfg := config.Default()
	newCfg := config.Default()

	assert.Empty(t, BuildConfigChangeDetails(oldCfg, newCfg))
	assert.False(t, Changed(oldCfg, newCfg))

	newCfg.Policy.LockRole = ""
	newCfg.Policy.Restrictions = append(newCfg.Policy.Restrictions, policy.Restriction{Role: "X", Providers: []string{"claude"}})
	newCfg.Access.Roles = []string{"USER"}
	newCfg.Port = 9000

	changes := BuildConfigChangeDetails(oldCfg, newCfg)
	assert.Contains(t, changes, `policy.lock-role: "MISTRAL_AD" -> ""`)
	assert.Contains(t, changes, "policy.restrictions: 1 -> 2 entries")
	assert.Contains(t, changes, "access.roles: 0 -> 1")
	assert.Contains(t, changes, "listen address: :8318 -> :9000 (restart required)")
	assert.True(t, Changed(oldCfg, newCfg))
}

func TestBuildConfigChangeDetails_RoleGrantOrder(t *testing.T) {
	oldCfg := config.Default()
	newCfg := config.Default()
	oldCfg.Policy.RoleGrants = map[string][]string{"ALL": {"model:claude", "model:mistral"}}
	newCfg.Policy.RoleGrants = map[string][]string{"ALL": {"model:mistral", "model:claude"}}

	assert.Empty(t, BuildConfigChangeDetails(oldCfg, newCfg))
}

func TestBuildConfigChangeDetails_Management(t *testing.T) {
	oldCfg := config.Default()
	newCfg := config.Default()
	newCfg.RemoteManagement.AllowRemote = true
	newCfg.RemoteManagement.SecretKey = "$2a$10$abcdefghijklmnopqrstuv"
	newCfg.WebsocketAuth = true
	newCfg.Principal = "alice"

	changes := BuildConfigChangeDetails(oldCfg, newCfg)
	assert.Contains(t, changes, "remote-management.allow-remote: false -> true")
	assert.Contains(t, changes, "remote-management.secret-key changed")
	assert.Contains(t, changes, "ws-auth: false -> true")
	assert.Contains(t, changes, `principal: "default" -> "alice" (restart required)`)
	for _, c := range changes {
		assert.NotContains(t, c, "abcdefghij", "secrets are never logged")
	}
}
