package mesh

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paulmach/go.geojson"
	"golang.org/x/sync/errgroup"
)

// FeatureMesh is the conversion result for one feature.
type FeatureMesh struct {
	// Index of the feature within its collection.
	Index      int
	ID         interface{}
	Name       string
	Properties map[string]interface{}
	Bounds     BoundingBox
	Mesh       *Mesh
}

// Failure records a feature that could not be converted.
type Failure struct {
	Index int
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("feature %d: %v", f.Index, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// FeatureName returns the display name of f, taken from the NAME or name
// property, or "" if there is none.
func FeatureName(f *geojson.Feature) string {
	if f == nil {
		return ""
	}
	for _, key := range []string{"NAME", "name"} {
		if s, ok := f.Properties[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Feature converts the geometry of f. Properties are passed through
// untouched.
func (b *Builder) Feature(f *geojson.Feature) (*FeatureMesh, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil feature", ErrUnsupportedGeometry)
	}
	m, err := b.Geometry(f.Geometry)
	if err != nil {
		return nil, err
	}
	return &FeatureMesh{
		ID:         f.ID,
		Name:       FeatureName(f),
		Properties: f.Properties,
		Bounds:     FeatureBounds(f),
		Mesh:       m,
	}, nil
}

// FeatureCollection converts every feature of fc. A feature that fails is
// skipped and reported in failures; the others are returned in order.
func (b *Builder) FeatureCollection(fc *geojson.FeatureCollection) ([]*FeatureMesh, []Failure) {
	if fc == nil {
		return nil, nil
	}
	results := make([]*FeatureMesh, len(fc.Features))
	errs := make([]error, len(fc.Features))
	for i, f := range fc.Features {
		results[i], errs[i] = b.Feature(f)
	}
	return collect(results, errs)
}

// FeatureCollectionParallel is FeatureCollection with features converted
// by up to workers goroutines; workers <= 0 means no limit. The result is
// the same as the sequential one. The only error returned is the context's.
func (b *Builder) FeatureCollectionParallel(ctx context.Context, fc *geojson.FeatureCollection, workers int) ([]*FeatureMesh, []Failure, error) {
	if fc == nil {
		return nil, nil, nil
	}
	results := make([]*FeatureMesh, len(fc.Features))
	errs := make([]error, len(fc.Features))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, f := range fc.Features {
		i, f := i, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = b.Feature(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	meshes, failures := collect(results, errs)
	return meshes, failures, nil
}

func collect(results []*FeatureMesh, errs []error) ([]*FeatureMesh, []Failure) {
	meshes := make([]*FeatureMesh, 0, len(results))
	var failures []Failure
	for i, r := range results {
		if errs[i] != nil {
			Logger().Debug("skipping feature", "index", i, "kind", ErrorKind(errs[i]), "err", errs[i])
			failures = append(failures, Failure{Index: i, Err: errs[i]})
			continue
		}
		r.Index = i
		meshes = append(meshes, r)
	}
	return meshes, failures
}

// Convert decodes a GeoJSON FeatureCollection, Feature or bare geometry and
// converts it like FeatureCollection. A lone feature or geometry is treated
// as a collection of one.
func (b *Builder) Convert(data []byte) ([]*FeatureMesh, []Failure, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, nil, err
	}

	fc := &geojson.FeatureCollection{}
	switch head.Type {
	case "FeatureCollection":
		var err error
		if fc, err = geojson.UnmarshalFeatureCollection(data); err != nil {
			return nil, nil, err
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, nil, err
		}
		fc.AddFeature(f)
	case "":
		return nil, nil, fmt.Errorf("%w: missing type", ErrUnsupportedGeometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, nil, err
		}
		fc.AddFeature(geojson.NewFeature(g))
	}

	meshes, failures := b.FeatureCollection(fc)
	return meshes, failures, nil
}
