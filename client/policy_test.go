package smc

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smcgo/smc/shared/api"
)

const (
	policyHref   = "https://smc/6.1/elements/fw_policy/3"
	templateHref = "https://smc/6.1/elements/fw_template_policy/1"
)

func policyConn(t *testing.T, rels ...string) *fakeConn {
	conn := newFakeConn(t)
	conn.names["Corporate"] = policyHref
	conn.names["Firewall Template"] = templateHref
	conn.entryPoints[TypeFirewallPolicy] = "https://smc/6.1/elements/fw_policy"

	all := append([]string{
		"upload", policyHref + "/upload",
		"search_rule", policyHref + "/search_rule",
		"fw_ipv4_access_rules", policyHref + "/fw_ipv4_access_rule",
		"fw_ipv4_nat_rules", policyHref + "/fw_ipv4_nat_rule",
	}, rels...)

	conn.on(http.MethodGet, policyHref, replyTagged(t, "p1", map[string]any{
		"name":     "Corporate",
		"template": templateHref,
		"link":     links(all...),
	}))

	return conn
}

func TestPolicyUpload(t *testing.T) {
	conn := policyConn(t)
	conn.on(http.MethodPost, policyHref+"/upload", accepted(t, map[string]any{"follower": followerHref}))
	ctx := context.Background()

	policy, err := GetFirewallPolicy(ctx, conn, "Corporate")
	require.NoError(t, err)

	task, err := policy.Upload(ctx, "fw")
	require.NoError(t, err)
	assert.Equal(t, followerHref, task.Follower())
	assert.Equal(t, "fw", conn.last(http.MethodPost, policyHref+"/upload").Params.Get("filter"))

	template, err := policy.Template(ctx)
	require.NoError(t, err)
	assert.Equal(t, templateHref, template.Href())

	_, err = policy.InspectionPolicy(ctx)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestPolicyLockingIsOptional(t *testing.T) {
	ctx := context.Background()

	conn := policyConn(t)
	policy, err := GetPolicy(ctx, conn, TypeFirewallPolicy, "Corporate")
	require.NoError(t, err)

	require.NoError(t, policy.Open(ctx))
	require.NoError(t, policy.Save(ctx))
	assert.ErrorIs(t, policy.ForceUnlock(ctx), api.ErrUnsupportedFeature)

	conn = policyConn(t, "open", policyHref+"/open", "save", policyHref+"/save")
	conn.on(http.MethodPost, policyHref+"/open", noContent())
	conn.on(http.MethodPost, policyHref+"/save", noContent())
	policy, err = GetPolicy(ctx, conn, TypeFirewallPolicy, "Corporate")
	require.NoError(t, err)

	require.NoError(t, policy.Open(ctx))
	require.NoError(t, policy.Save(ctx))
	assert.Equal(t, 1, conn.calls(http.MethodPost, policyHref+"/open"))
	assert.Equal(t, 1, conn.calls(http.MethodPost, policyHref+"/save"))
}

func TestPolicySearchRule(t *testing.T) {
	conn := policyConn(t)
	conn.on(http.MethodGet, policyHref+"/search_rule", reply(t, []map[string]string{
		{"name": "Allow web", "href": policyHref + "/fw_ipv4_access_rule/10", "type": "fw_ipv4_access_rule"},
		{"name": "Hide lan", "href": policyHref + "/fw_ipv4_nat_rule/11", "type": "fw_ipv4_nat_rule"},
	}))
	ctx := context.Background()

	policy, err := GetFirewallPolicy(ctx, conn, "Corporate")
	require.NoError(t, err)

	rules, err := policy.SearchRule(ctx, "web")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, RuleIPv4Access, rules[0].RuleType())
	assert.Equal(t, RuleIPv4NAT, rules[1].RuleType())
	assert.Equal(t, "Hide lan", rules[1].Name())
	assert.Equal(t, "web", conn.last(http.MethodGet, policyHref+"/search_rule").Params.Get("filter"))
}

func TestPolicySearchRuleUnknownType(t *testing.T) {
	conn := policyConn(t)
	conn.on(http.MethodGet, policyHref+"/search_rule", reply(t, []map[string]string{
		{"name": "Inspect", "href": policyHref + "/inspection_rule/1", "type": "inspection_rule"},
	}))
	ctx := context.Background()

	policy, err := GetFirewallPolicy(ctx, conn, "Corporate")
	require.NoError(t, err)

	_, err = policy.SearchRule(ctx, "Inspect")
	assert.Error(t, err)
}

func TestPolicyRuleCollections(t *testing.T) {
	conn := policyConn(t)
	ctx := context.Background()

	policy, err := GetFirewallPolicy(ctx, conn, "Corporate")
	require.NoError(t, err)

	rules, err := policy.IPv4AccessRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, policyHref+"/fw_ipv4_access_rule", rules.Href())
	assert.Equal(t, RuleIPv4Access, rules.RuleType())

	nat, err := policy.IPv4NATRules(ctx)
	require.NoError(t, err)
	assert.True(t, nat.RuleType().IsNAT())

	_, err = policy.IPv6AccessRules(ctx)
	assert.ErrorIs(t, err, api.ErrUnsupportedFeature)
}

func TestCreateFirewallPolicy(t *testing.T) {
	const policies = "https://smc/6.1/elements/fw_policy"

	conn := policyConn(t)
	conn.on(http.MethodPost, policies, created(policies+"/4"))
	ctx := context.Background()

	policy, err := CreateFirewallPolicy(ctx, conn, "Branch", "Firewall Template")
	require.NoError(t, err)
	assert.Equal(t, policies+"/4", policy.Href())
	assert.Equal(t, "Branch", policy.Name())

	body := conn.body(http.MethodPost, policies)
	assert.Equal(t, templateHref, body["template"])

	_, err = CreateFirewallPolicy(ctx, conn, "Branch", "Missing Template")
	assert.ErrorIs(t, err, api.ErrNotFound)
}
