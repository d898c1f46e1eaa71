package panel

import (
	"context"
	"errors"
	"fmt"

	"goa.design/dashpanels/dashboard/scene"
	"goa.design/dashpanels/dashboard/schema"
)

// ErrUnknownDataSource is returned by StaticResolver for unknown references.
var ErrUnknownDataSource = errors.New("unknown data source")

// StaticResolver resolves data source references from a fixed set keyed by
// UID.
type StaticResolver map[string]scene.DataSource

// NewStaticResolver indexes sources by UID.
func NewStaticResolver(sources ...scene.DataSource) StaticResolver {
	r := make(StaticResolver, len(sources))
	for _, s := range sources {
		r[s.UID] = s
	}
	return r
}

// Resolve implements scene.DataSourceResolver. A reference whose type differs
// from the registered source is rejected.
func (r StaticResolver) Resolve(_ context.Context, ref schema.DataSourceRef) (scene.DataSource, error) {
	ds, ok := r[ref.UID]
	if !ok {
		return scene.DataSource{}, fmt.Errorf("%w: %q", ErrUnknownDataSource, ref.UID)
	}
	if ref.Type != "" && ds.Type != "" && ref.Type != ds.Type {
		return scene.DataSource{}, fmt.Errorf("data source %q has type %q, not %q", ref.UID, ds.Type, ref.Type)
	}
	return ds, nil
}
