package smc

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smcgo/smc/shared/api"
)

func TestEmbeddedTemplates(t *testing.T) {
	templates := EmbeddedTemplates{}

	assert.Equal(t, []string{KindAddressRange, KindGroup, KindHost, KindNetwork, KindRouter, KindTCPService, KindUDPService}, templates.Kinds())

	for _, kind := range templates.Kinds() {
		doc, err := templates.LoadTemplate(kind)
		require.NoError(t, err, kind)
		assert.Contains(t, doc, "name", kind)
		assert.Contains(t, doc, "comment", kind)
	}

	_, err := templates.LoadTemplate("fw_cluster")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestTemplatesAreFresh(t *testing.T) {
	templates := EmbeddedTemplates{}

	first, err := templates.LoadTemplate(KindHost)
	require.NoError(t, err)
	first["name"] = "changed"
	first["secondary"] = append(first["secondary"].([]any), "10.0.0.9")

	second, err := templates.LoadTemplate(KindHost)
	require.NoError(t, err)
	assert.Equal(t, "", second["name"])
	assert.Empty(t, second["secondary"])
}

func TestDocumentBuilders(t *testing.T) {
	host, err := HostDocument("web", "10.0.0.1", "10.0.1.1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "web", "address": "10.0.0.1", "secondary": []any{"10.0.1.1"}}, host)

	router, err := RouterDocument("gw6", "2001:db8::1")
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", router["ipv6_address"])
	assert.NotContains(t, router, "address")

	_, err = HostDocument("web", "10.0.0.300")
	assert.ErrorIs(t, err, api.ErrValidation)

	network, err := NetworkDocument("lan", "10.0.0.5/24")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/24", network["ipv4_network"])

	network, err = NetworkDocument("lan6", "2001:db8::/64")
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::/64", network["ipv6_network"])

	_, err = NetworkDocument("lan", "10.0.0.0")
	assert.ErrorIs(t, err, api.ErrValidation)

	ipRange, err := AddressRangeDocument("dhcp", "10.0.0.100 - 10.0.0.200")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.100-10.0.0.200", ipRange["ip_range"])

	_, err = AddressRangeDocument("dhcp", "10.0.0.200-10.0.0.100")
	assert.ErrorIs(t, err, api.ErrValidation)

	_, err = AddressRangeDocument("dhcp", "10.0.0.1-2001:db8::1")
	assert.ErrorIs(t, err, api.ErrValidation)

	group, err := GroupDocument("servers", Ref(webHref), Ref(dbHref))
	require.NoError(t, err)
	assert.Equal(t, []any{webHref, dbHref}, group["element"])

	_, err = GroupDocument("servers", Ref(""))
	assert.ErrorIs(t, err, api.ErrValidation)

	service, err := ServiceDocument("http", 80, 0)
	require.NoError(t, err)
	assert.Equal(t, 80, service["max_dst_port"])

	_, err = ServiceDocument("high", 1024, 80)
	assert.ErrorIs(t, err, api.ErrValidation)

	_, err = ServiceDocument("zero", 0, 0)
	assert.ErrorIs(t, err, api.ErrValidation)

	commented := WithComment(service, "Web")
	assert.Equal(t, "Web", commented["comment"])
	assert.NotContains(t, service, "comment")
}

func TestCreateElement(t *testing.T) {
	const hosts = "https://smc/6.1/elements/host"

	conn := newFakeConn(t)
	conn.entryPoints[KindHost] = hosts
	conn.on(http.MethodPost, hosts, created(hosts+"/12"))
	ctx := context.Background()

	fields, err := HostDocument("web", "10.0.0.1")
	require.NoError(t, err)

	host, err := CreateElement(ctx, conn, EmbeddedTemplates{}, KindHost, WithComment(fields, "Frontend"))
	require.NoError(t, err)
	assert.Equal(t, hosts+"/12", host.Href())
	assert.Equal(t, "web", host.Name())
	assert.False(t, host.IsLoaded())

	body := conn.body(http.MethodPost, hosts)
	assert.Equal(t, "web", body["name"])
	assert.Equal(t, "10.0.0.1", body["address"])
	assert.Equal(t, "Frontend", body["comment"])
	assert.Equal(t, "", body["ipv6_address"])

	_, err = CreateElement(ctx, conn, EmbeddedTemplates{}, KindHost, map[string]any{"address": "10.0.0.2"})
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Equal(t, 1, conn.calls(http.MethodPost, hosts))

	_, err = CreateElement(ctx, conn, EmbeddedTemplates{}, KindNetwork, map[string]any{"name": "lan"})
	assert.ErrorIs(t, err, api.ErrNotFound)
}
