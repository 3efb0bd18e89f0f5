package smc

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smcgo/smc/shared/api"
	"github.com/smcgo/smc/shared/logger"
)

const hostHref = "https://smc/6.1/elements/host/1"

func etagOnly(etag string) fakeResponse {
	return fakeResponse{result: &Result{StatusCode: http.StatusOK, ETag: etag}}
}

func hostConn(t *testing.T) *fakeConn {
	conn := newFakeConn(t)
	conn.names["web"] = hostHref
	conn.on(http.MethodGet, hostHref, replyTagged(t, "v1", map[string]any{
		"name":    "web",
		"address": "10.0.0.1",
		"link":    links("export", hostHref+"/export", "self", hostHref),
	}))

	return conn
}

func TestGetElementResolvesEagerly(t *testing.T) {
	conn := newFakeConn(t)

	_, err := GetElement(context.Background(), conn, "host", "missing")
	assert.ErrorIs(t, err, api.ErrNotFound)

	conn.names["web"] = hostHref
	e, err := GetElement(context.Background(), conn, "host", "web")
	require.NoError(t, err)
	assert.Equal(t, hostHref, e.Href())
	assert.Equal(t, "web", e.Name())
	assert.False(t, e.IsLoaded())
	assert.Equal(t, 0, conn.calls(http.MethodGet, hostHref))
}

func TestElementLoadsOnce(t *testing.T) {
	conn := hostConn(t)
	e := NewElement(conn, NewHandle(hostHref, "host", "web"))
	ctx := context.Background()

	address, err := e.Attribute(ctx, "address")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", address)

	comment, err := e.Comment(ctx)
	require.NoError(t, err)
	assert.Empty(t, comment)

	_, err = e.Link(ctx, "export")
	require.NoError(t, err)

	assert.Equal(t, 1, conn.calls(http.MethodGet, hostHref))
	assert.Equal(t, "v1", e.ETag())

	_, err = e.Attribute(ctx, "link")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestAttributeReturnsCopy(t *testing.T) {
	conn := newFakeConn(t)
	conn.on(http.MethodGet, hostHref, reply(t, map[string]any{"secondary": []string{"10.0.0.2"}}))
	e := ElementFromHref(conn, hostHref, "host")

	value, err := e.Attribute(context.Background(), "secondary")
	require.NoError(t, err)

	list, ok := value.([]any)
	require.True(t, ok)
	list[0] = "changed"

	again, err := e.Attribute(context.Background(), "secondary")
	require.NoError(t, err)
	assert.Equal(t, []any{"10.0.0.2"}, again)
}

func TestLinkForDistinguishesNotLoaded(t *testing.T) {
	conn := hostConn(t)
	e := ElementFromHref(conn, hostHref, "host")

	_, err := e.LinkFor("export")
	assert.ErrorIs(t, err, api.ErrNotLoaded)
	assert.NotErrorIs(t, err, api.ErrNotFound)

	_, err = e.Links()
	assert.ErrorIs(t, err, api.ErrNotLoaded)

	require.NoError(t, e.Load(context.Background()))

	href, err := e.LinkFor("export")
	require.NoError(t, err)
	assert.Equal(t, hostHref+"/export", href)

	_, err = e.LinkFor("upload")
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.NotErrorIs(t, err, api.ErrNotLoaded)

	all, err := e.Links()
	require.NoError(t, err)
	assert.Equal(t, []string{"export", "self"}, all.Relations())
}

func TestFeatureCapabilityQuery(t *testing.T) {
	conn := hostConn(t)
	e := ElementFromHref(conn, hostHref, "host")
	ctx := context.Background()

	supported, err := e.Supports(ctx, "export")
	require.NoError(t, err)
	assert.True(t, supported)

	supported, err = e.Supports(ctx, "upload")
	require.NoError(t, err)
	assert.False(t, supported)

	_, err = e.References(ctx)
	assert.ErrorIs(t, err, api.ErrUnsupportedFeature)

	var unsupported *api.UnsupportedFeatureError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "search_category_tags_from_element", unsupported.Feature)
	assert.Equal(t, "host", unsupported.Type)
}

func TestModifyAttributeTracksETag(t *testing.T) {
	conn := hostConn(t)
	conn.on(http.MethodGet, hostHref, replyTagged(t, "v3", map[string]any{
		"name":    "web",
		"address": "10.0.0.1",
		"comment": "second",
		"link":    links("export", hostHref+"/export", "self", hostHref),
	}))
	conn.on(http.MethodPut, hostHref, etagOnly("v2"), etagOnly("v3"))
	e := ElementFromHref(conn, hostHref, "host")
	ctx := context.Background()

	require.NoError(t, e.ModifyAttribute(ctx, map[string]any{"comment": "first"}))
	assert.Equal(t, "v1", conn.last(http.MethodPut, hostHref).ETag)
	assert.Equal(t, "first", conn.body(http.MethodPut, hostHref)["comment"])
	assert.Equal(t, "10.0.0.1", conn.body(http.MethodPut, hostHref)["address"])
	assert.False(t, e.IsLoaded())

	// The second update reuses the cached document and the new entity tag.
	require.NoError(t, e.ModifyAttribute(ctx, map[string]any{"comment": "second"}))
	assert.Equal(t, "v2", conn.last(http.MethodPut, hostHref).ETag)
	assert.Equal(t, 1, conn.calls(http.MethodGet, hostHref))
	assert.Equal(t, "v3", e.ETag())

	_, err := e.LinkFor("export")
	assert.ErrorIs(t, err, api.ErrNotLoaded)

	// Reading again fetches the new representation.
	comment, err := e.Attribute(ctx, "comment")
	require.NoError(t, err)
	assert.Equal(t, "second", comment)
	assert.Equal(t, "v3", e.ETag())
	assert.Equal(t, 2, conn.calls(http.MethodGet, hostHref))
}

func TestModifyAttributeUndecodableResponse(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "smc.log")
	previous := logger.Log
	t.Cleanup(func() { logger.Log = previous })
	require.NoError(t, logger.InitLogger(logFile, false, false))

	conn := hostConn(t)
	conn.on(http.MethodPut, hostHref, fakeResponse{result: &Result{StatusCode: http.StatusOK, ETag: "v2", JSON: []byte("[1, 2")}})
	e := ElementFromHref(conn, hostHref, "host")
	ctx := context.Background()

	require.NoError(t, e.ModifyAttribute(ctx, map[string]any{"comment": "kept"}))
	assert.Equal(t, "v2", e.ETag())
	assert.Equal(t, "kept", conn.body(http.MethodPut, hostHref)["comment"])

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Failed decoding updated representation")
	assert.Contains(t, string(content), hostHref)
}

func TestModifyAttributeStale(t *testing.T) {
	conn := hostConn(t)
	conn.on(http.MethodPut, hostHref, failure(http.StatusPreconditionFailed, "ETag mismatch"))
	e := ElementFromHref(conn, hostHref, "host")

	err := e.ModifyAttribute(context.Background(), map[string]any{"comment": "late"})
	assert.ErrorIs(t, err, api.ErrStaleElement)
	assert.Equal(t, 1, conn.calls(http.MethodPut, hostHref))
}

func TestRenameUpdatesName(t *testing.T) {
	conn := hostConn(t)
	conn.on(http.MethodPut, hostHref, etagOnly("v2"))
	e := NewElement(conn, NewHandle(hostHref, "host", "web"))

	require.NoError(t, e.Rename(context.Background(), "web2"))
	assert.Equal(t, "web2", e.Name())
	assert.Equal(t, "web2", conn.body(http.MethodPut, hostHref)["name"])
}

func TestDeleteIsTerminal(t *testing.T) {
	conn := hostConn(t)
	conn.on(http.MethodDelete, hostHref, noContent())
	e := ElementFromHref(conn, hostHref, "host")
	ctx := context.Background()

	require.NoError(t, e.Load(ctx))
	require.NoError(t, e.Delete(ctx))
	assert.True(t, e.IsDeleted())
	assert.Equal(t, "v1", conn.last(http.MethodDelete, hostHref).ETag)

	_, err := e.Attribute(ctx, "name")
	assert.ErrorIs(t, err, api.ErrElementDeleted)

	err = e.ModifyAttribute(ctx, map[string]any{"name": "x"})
	assert.ErrorIs(t, err, api.ErrElementDeleted)

	_, err = e.LinkFor("export")
	assert.ErrorIs(t, err, api.ErrElementDeleted)

	assert.ErrorIs(t, e.Delete(ctx), api.ErrElementDeleted)
	assert.Equal(t, 1, conn.calls(http.MethodDelete, hostHref))
}

func TestDeleteFailureKeepsElement(t *testing.T) {
	conn := hostConn(t)
	conn.on(http.MethodDelete, hostHref, failure(http.StatusConflict, "Element is referenced"))
	e := ElementFromHref(conn, hostHref, "host")

	assert.Error(t, e.Delete(context.Background()))
	assert.False(t, e.IsDeleted())
}

func TestCollectionCreate(t *testing.T) {
	const collection = "https://smc/6.1/elements/fw_cluster/1/physical_interface"

	conn := newFakeConn(t)
	conn.on(http.MethodPost, collection, created(collection+"/7"))
	c := NewCollection(conn, collection, "physical_interface")

	child, err := c.Create(context.Background(), map[string]any{"interface_id": "7"})
	require.NoError(t, err)
	assert.Equal(t, collection+"/7", child.Href())
	assert.False(t, child.IsLoaded())
	assert.Equal(t, 0, conn.calls(http.MethodGet, collection+"/7"))
	assert.Equal(t, "7", conn.body(http.MethodPost, collection)["interface_id"])
}

func TestCollectionCreateWithoutLocation(t *testing.T) {
	const collection = "https://smc/6.1/elements/fw_cluster/1/physical_interface"

	conn := newFakeConn(t)
	conn.on(http.MethodPost, collection, created(""))

	_, err := NewCollection(conn, collection, "physical_interface").Create(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestCollectionEntries(t *testing.T) {
	const collection = "https://smc/6.1/elements/fw_cluster/1/nodes"

	conn := newFakeConn(t)
	conn.on(http.MethodGet, collection, reply(t, map[string]any{
		"result": []map[string]string{
			{"name": "node 1", "href": collection + "/1"},
			{"name": "node 2", "href": collection + "/2", "type": "firewall_node"},
		},
	}))

	all, err := NewCollection(conn, collection, "nodes").All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "node 1", all[0].Name())
	assert.Equal(t, "nodes", all[0].Type())
	assert.Equal(t, "firewall_node", all[1].Type())
}

func TestElementExport(t *testing.T) {
	conn := hostConn(t)
	conn.on(http.MethodPost, hostHref+"/export", accepted(t, map[string]any{
		"follower":    "https://smc/6.1/task/9",
		"in_progress": false,
	}))
	e := ElementFromHref(conn, hostHref, "host")

	task, err := e.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://smc/6.1/task/9", task.Follower())
	assert.Equal(t, api.TaskPending, task.Last().State)
}
