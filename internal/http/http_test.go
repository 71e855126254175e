package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cayleygraph/catalog/schema"
	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/store/memstore"
	"github.com/cayleygraph/catalog/types"
)

func newServer(t *testing.T) (*httptest.Server, *schema.Catalog) {
	ctx := context.TODO()
	s := memstore.New()
	c, err := schema.New(ctx, schema.Deps{Records: s, Indexes: s, Meta: s}, schema.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{SuperClasses: []string{schema.VertexClass}}))
	require.NoError(t, c.CreateClass(ctx, "Dog", schema.ClassOptions{SuperClasses: []string{"Animal"}}))
	require.NoError(t, c.CreateProperty(ctx, "Animal", "name", types.String, schema.PropertyOptions{}))
	require.NoError(t, c.CreateIndex(ctx, "Animal.name", "Animal", store.NotUnique, "name"))

	pid, err := c.NewRecordPartition(ctx, "Dog")
	require.NoError(t, err)
	_, err = s.Save(ctx, &store.Record{
		ID:     types.RecordID{Partition: pid, Position: -1},
		Class:  "Dog",
		Fields: types.Map{"name": types.Text("Rex")},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(c, &Config{}))
	t.Cleanup(srv.Close)
	return srv, c
}

func get(t *testing.T, srv *httptest.Server, path string, out interface{}) int {
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestClasses(t *testing.T) {
	srv, _ := newServer(t)

	var list []ClassSummary
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/classes", &list))
	var got []string
	for _, c := range list {
		got = append(got, c.Name)
	}
	require.Equal(t, []string{"Animal", "Dog", "E", "V"}, got)

	var dog ClassInfo
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/classes/dog", &dog))
	require.Equal(t, "Dog", dog.Name)
	require.Equal(t, []string{"Animal"}, dog.SuperClasses)
	require.True(t, dog.Vertex)
	require.Len(t, dog.Properties, 1)
	require.Equal(t, "Animal", dog.Properties[0].Owner)
	require.Equal(t, "STRING", dog.Properties[0].Type)
	require.Equal(t, []string{"Animal.name"}, dog.Indexes)

	require.Equal(t, http.StatusNotFound, get(t, srv, "/api/v1/classes/Cat", nil))
}

func TestCount(t *testing.T) {
	srv, _ := newServer(t)

	var out struct {
		Count int64 `json:"count"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/classes/Animal/count", &out))
	require.Equal(t, int64(1), out.Count)

	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/classes/Animal/count?polymorphic=false", &out))
	require.Equal(t, int64(0), out.Count)

	require.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/classes/Animal/count?polymorphic=maybe", nil))
}

func TestSchemaAndQuads(t *testing.T) {
	srv, c := newServer(t)

	var def schema.Definition
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/schema", &def))
	require.Len(t, def.Classes, len(c.Definition().Classes))
	require.Len(t, def.Indexes, 1)

	resp, err := http.Get(srv.URL + "/api/v1/schema.nq")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(data), "<urn:catalog:class:Dog>")

	var idx []IndexInfo
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/indexes", &idx))
	require.Len(t, idx, 1)
	require.Equal(t, "NOTUNIQUE", idx[0].Type)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newServer(t)
	require.Equal(t, http.StatusNoContent, get(t, srv, "/health", nil))

	get(t, srv, "/api/v1/classes", nil)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "catalog_http_requests"))
}
