package smc

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smcgo/smc/shared/api"
)

const systemHref = "https://smc/6.1/system"

func systemConn(t *testing.T) *fakeConn {
	conn := newFakeConn(t)
	conn.entryPoints["system"] = systemHref
	conn.on(http.MethodGet, systemHref, reply(t, map[string]any{
		"link": links(
			"smc_version", systemHref+"/smc_version",
			"smc_time", systemHref+"/smc_time",
			"empty_trash_bin", systemHref+"/empty_trash_bin",
			"blacklist", systemHref+"/blacklist",
			"export_elements", systemHref+"/export_elements",
			"references_by_element", systemHref+"/references_by_element",
		),
	}))

	return conn
}

func TestSystemValues(t *testing.T) {
	conn := systemConn(t)
	conn.on(http.MethodGet, systemHref+"/smc_version", reply(t, map[string]any{"value": "6.1.2 [10215]"}))
	conn.on(http.MethodGet, systemHref+"/smc_time", reply(t, map[string]any{"value": "2026-10-18T10:00:00Z"}))
	ctx := context.Background()

	system, err := GetSystem(ctx, conn)
	require.NoError(t, err)

	version, err := system.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "6.1.2 [10215]", version)

	now, err := system.Time(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-18T10:00:00Z", now)

	_, err = system.LastActivatedPackage(ctx)
	assert.ErrorIs(t, err, api.ErrUnsupportedFeature)
}

func TestSystemValueTypes(t *testing.T) {
	conn := systemConn(t)
	conn.on(http.MethodGet, systemHref+"/smc_time", reply(t, map[string]any{"value": int64(1792317600000)}))
	conn.on(http.MethodGet, systemHref+"/smc_version", reply(t, map[string]any{"value": []string{"6.1"}}))
	ctx := context.Background()

	system, err := GetSystem(ctx, conn)
	require.NoError(t, err)

	now, err := system.Time(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1792317600000", now)

	_, err = system.Version(ctx)
	assert.ErrorContains(t, err, "Unexpected value type")
}

func TestSystemCommands(t *testing.T) {
	conn := systemConn(t)
	conn.on(http.MethodDelete, systemHref+"/empty_trash_bin", noContent())
	conn.on(http.MethodPost, systemHref+"/blacklist", noContent())
	conn.on(http.MethodPost, systemHref+"/references_by_element", reply(t, []map[string]string{
		{"name": "Corporate", "href": "https://smc/6.1/elements/fw_policy/3", "type": "fw_policy"},
	}))
	ctx := context.Background()

	system, err := GetSystem(ctx, conn)
	require.NoError(t, err)

	require.NoError(t, system.EmptyTrashBin(ctx))
	require.NoError(t, system.Blacklist(ctx, "10.0.0.1/32", "0.0.0.0/0", 60))
	assert.Equal(t, float64(60), conn.body(http.MethodPost, systemHref+"/blacklist")["duration"])

	refs, err := system.ReferencesByElement(ctx, hostHref)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "fw_policy", refs[0].Type)
	assert.Equal(t, hostHref, conn.body(http.MethodPost, systemHref+"/references_by_element")["value"])
}

func TestSystemExportElements(t *testing.T) {
	conn := systemConn(t)
	conn.on(http.MethodPost, systemHref+"/export_elements", accepted(t, map[string]any{"follower": followerHref}))
	ctx := context.Background()

	system, err := GetSystem(ctx, conn)
	require.NoError(t, err)

	_, err = system.ExportElements(ctx, "everything")
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Equal(t, 0, conn.calls(http.MethodPost, systemHref+"/export_elements"))

	task, err := system.ExportElements(ctx, "nw")
	require.NoError(t, err)
	assert.Equal(t, followerHref, task.Follower())

	params := conn.last(http.MethodPost, systemHref+"/export_elements").Params
	assert.Equal(t, "nw", params.Get("type"))
	assert.Equal(t, "true", params.Get("recursive"))

	_, err = system.ExportElements(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "all", conn.last(http.MethodPost, systemHref+"/export_elements").Params.Get("type"))
}

func TestGetSystemWithoutEntryPoint(t *testing.T) {
	_, err := GetSystem(context.Background(), newFakeConn(t))
	assert.ErrorIs(t, err, api.ErrNotFound)
}
