package grafana

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"goa.design/dashpanels/dashboard/mutator"
	"goa.design/dashpanels/dashboard/panel"
	"goa.design/dashpanels/dashboard/scene"
	"goa.design/dashpanels/dashboard/schema"
)

const dashboardJSON = `{
	"dashboard": {
		"uid": "ops",
		"title": "Operations",
		"panels": [
			{"id": 3, "type": "stat", "gridPos": {"h": 4, "w": 6, "x": 0, "y": 0}},
			{"id": 9, "type": "row", "collapsed": true, "gridPos": {"h": 1, "w": 24, "x": 0, "y": 4},
			 "panels": [{"id": 11, "type": "graph", "gridPos": {"h": 8, "w": 12, "x": 0, "y": 5}}]}
		]
	},
	"meta": {"folderUid": "infra"}
}`

type fakeGrafana struct {
	mu    sync.Mutex
	saved []byte
	auth  string
}

func (f *fakeGrafana) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.auth = r.Header.Get("Authorization")
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/datasources/uid/ds1":
		_, _ = io.WriteString(w, `{"uid":"ds1","type":"prometheus","name":"Prometheus","id":1}`)
	case r.Method == http.MethodGet && r.URL.Path == "/api/dashboards/uid/ops":
		_, _ = io.WriteString(w, dashboardJSON)
	case r.Method == http.MethodPost && r.URL.Path == "/api/dashboards/db":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.saved = body
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"id":1,"uid":"ops","status":"success","version":2,"slug":"operations","url":"/d/ops/operations"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"not found"}`)
	}
}

func (f *fakeGrafana) authorization() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auth
}

func (f *fakeGrafana) savedBody() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved
}

func newTestClient(t *testing.T) (*Client, *fakeGrafana) {
	t.Helper()
	fake := &fakeGrafana{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{URL: srv.URL, APIKey: "secret"})
	require.NoError(t, err)
	return c, fake
}

func TestNewClientValidatesURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	_, err = NewClient(Config{URL: "not a url"})
	require.Error(t, err)
	_, err = NewClient(Config{URL: "https://grafana.example.com/sub", Username: "admin", Password: "admin", OrgID: 2})
	require.NoError(t, err)
}

func TestResolve(t *testing.T) {
	c, fake := newTestClient(t)
	r := c.Resolver()

	ds, err := r.Resolve(context.Background(), schema.DataSourceRef{Type: "prometheus", UID: "ds1"})
	require.NoError(t, err)
	assert.Equal(t, scene.DataSource{UID: "ds1", Type: "prometheus", Name: "Prometheus"}, ds)
	assert.Contains(t, fake.authorization(), "secret")

	_, err = r.Resolve(context.Background(), schema.DataSourceRef{Type: "loki", UID: "ds1"})
	require.Error(t, err)

	_, err = r.Resolve(context.Background(), schema.DataSourceRef{Type: "prometheus", UID: "missing"})
	require.Error(t, err)
}

func TestOpenDashboard(t *testing.T) {
	c, _ := newTestClient(t)
	d, err := c.OpenDashboard(context.Background(), "ops")
	require.NoError(t, err)

	assert.Equal(t, "ops", d.UID())
	assert.Equal(t, "Operations", d.Title())
	assert.ElementsMatch(t, []int{3, 9, 11}, d.PanelIDs())
	assert.False(t, d.IsEditing())

	_, err = c.OpenDashboard(context.Background(), "missing")
	require.Error(t, err)
}

func TestAddPanelsToGrafanaDashboard(t *testing.T) {
	c, fake := newTestClient(t)
	d, err := c.OpenDashboard(context.Background(), "ops")
	require.NoError(t, err)

	m := mutator.New(panel.New(c.Resolver()), mutator.WithIDAllocator(mutator.SequentialIDs{}))
	res := m.AddPanels(context.Background(), d, `{"panels":[
		{"pluginId":"timeseries","title":"Up","targets":[{"expr":"up","datasource":{"type":"prometheus","uid":"ds1"}}],"timeFrom":"1h"},
		{"pluginId":"text","gridPos":{"h":2,"w":24,"x":0,"y":40},"transparent":true}
	]}`)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, []int{12, 13}, res.PanelIDs)
	assert.True(t, d.IsEditing())

	saved := fake.savedBody()
	require.NotEmpty(t, saved)
	assert.Equal(t, "infra", gjson.GetBytes(saved, "folderUid").String())
	assert.True(t, gjson.GetBytes(saved, "overwrite").Bool())
	assert.Equal(t, DefaultSaveMessage, gjson.GetBytes(saved, "message").String())

	panels := gjson.GetBytes(saved, "dashboard.panels").Array()
	require.Len(t, panels, 4)
	first := panels[2]
	assert.Equal(t, int64(12), first.Get("id").Int())
	assert.Equal(t, "timeseries", first.Get("type").String())
	assert.Equal(t, "ds1", first.Get("datasource.uid").String())
	assert.Equal(t, "A", first.Get("targets.0.refId").String())
	assert.True(t, first.Get("targets.0.range").Bool())
	assert.Equal(t, "1h", first.Get("timeFrom").String())
	assert.Equal(t, int64(5), first.Get("gridPos.y").Int(), "stacked below the existing panels")
	assert.Equal(t, int64(8), first.Get("gridPos.h").Int())

	second := panels[3]
	assert.Equal(t, "New Panel", second.Get("title").String())
	assert.True(t, second.Get("transparent").Bool())
	assert.Equal(t, int64(40), second.Get("gridPos.y").Int())
}

func TestAddPanelRejectsUsedIDs(t *testing.T) {
	c, _ := newTestClient(t)
	d, err := c.OpenDashboard(context.Background(), "ops")
	require.NoError(t, err)
	require.Error(t, d.AddPanel(&scene.Panel{ID: 11}))
	require.Error(t, d.AddPanel(nil))
}

func TestExistingIDs(t *testing.T) {
	var doc struct {
		Dashboard json.RawMessage `json:"dashboard"`
	}
	require.NoError(t, json.Unmarshal([]byte(dashboardJSON), &doc))
	assert.Equal(t, []int{3, 9, 11}, existingIDs(doc.Dashboard))
	assert.Equal(t, 5, bottom(doc.Dashboard))
	assert.Empty(t, existingIDs([]byte(`{"title":"empty"}`)))
}
