package grafana

import (
	"context"
	"fmt"

	"github.com/grafana/grafana-openapi-client-go/client/datasources"

	"goa.design/dashpanels/dashboard/scene"
	"goa.design/dashpanels/dashboard/schema"
)

// DataSourceResolver resolves data source references against Grafana.
type DataSourceResolver struct {
	client *Client
}

// Resolve implements scene.DataSourceResolver. The reference type must match
// the type of the data source registered under the UID.
func (r *DataSourceResolver) Resolve(ctx context.Context, ref schema.DataSourceRef) (scene.DataSource, error) {
	params := datasources.NewGetDataSourceByUIDParamsWithContext(ctx).
		WithTimeout(r.client.timeout).
		WithUID(ref.UID)
	resp, err := r.client.api.Datasources.GetDataSourceByUIDWithParams(params)
	if err != nil {
		return scene.DataSource{}, fmt.Errorf("get data source %q: %w", ref.UID, err)
	}
	ds := resp.Payload
	if ds == nil {
		return scene.DataSource{}, fmt.Errorf("get data source %q: empty response", ref.UID)
	}
	if ref.Type != "" && ds.Type != ref.Type {
		return scene.DataSource{}, fmt.Errorf("data source %q has type %q, not %q", ref.UID, ds.Type, ref.Type)
	}
	r.client.logger.Debug(ctx, "data source resolved", "uid", ds.UID, "type", ds.Type, "name", ds.Name)
	return scene.DataSource{UID: ds.UID, Type: ds.Type, Name: ds.Name}, nil
}
