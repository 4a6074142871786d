package mesh

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/paulmach/go.geojson"
)

func squareAt(lon, lat float64) *geojson.Geometry {
	return geojson.NewPolygonGeometry([][][]float64{{
		{lon, lat}, {lon + 1, lat}, {lon + 1, lat + 1}, {lon, lat + 1}, {lon, lat},
	}})
}

func mixedCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	good := geojson.NewFeature(squareAt(0, 0))
	good.ID = "ch"
	good.Properties["NAME"] = "Good"
	good.Properties["pop"] = 42.0
	fc.AddFeature(good)
	fc.AddFeature(geojson.NewFeature(geojson.NewPointGeometry([]float64{0, 100})))
	fc.AddFeature(geojson.NewFeature(&geojson.Geometry{Type: "Circle"}))
	fc.AddFeature(geojson.NewFeature(squareAt(10, 10)))
	return fc
}

func TestFeatureCollection(t *testing.T) {
	b := NewBuilder(DefaultOptions(Spherical))
	meshes, failures := b.FeatureCollection(mixedCollection())

	if len(meshes) != 2 {
		t.Fatalf("expected 2 meshes, got %d", len(meshes))
	}
	first := meshes[0]
	if first.Index != 0 || first.ID != "ch" || first.Name != "Good" {
		t.Errorf("unexpected first feature %+v", first)
	}
	if first.Properties["pop"] != 42.0 {
		t.Errorf("properties not passed through: %v", first.Properties)
	}
	if !reflect.DeepEqual(first.Bounds.Slice(), []float64{0, 0, 1, 1}) {
		t.Errorf("unexpected bounds %v", first.Bounds)
	}
	if meshes[1].Index != 3 {
		t.Errorf("expected second mesh from feature 3, got %d", meshes[1].Index)
	}

	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %v", failures)
	}
	if failures[0].Index != 1 || ErrorKind(failures[0]) != "invalid_coordinate" {
		t.Errorf("unexpected failure %v", failures[0])
	}
	if failures[1].Index != 2 || !errors.Is(failures[1], ErrUnsupportedGeometry) {
		t.Errorf("unexpected failure %v", failures[1])
	}
}

func TestFeatureCollection_Nil(t *testing.T) {
	b := NewBuilder(DefaultOptions(Spherical))
	if meshes, failures := b.FeatureCollection(nil); meshes != nil || failures != nil {
		t.Errorf("expected nothing, got %v, %v", meshes, failures)
	}
	if _, err := b.Feature(nil); !errors.Is(err, ErrUnsupportedGeometry) {
		t.Errorf("expected ErrUnsupportedGeometry, got %v", err)
	}
}

func TestFeatureCollectionParallel(t *testing.T) {
	fc := mixedCollection()
	for i := 0; i < 100; i++ {
		fc.AddFeature(geojson.NewFeature(squareAt(float64(i%170), float64(i%80))))
	}
	b := NewBuilder(DefaultOptions(Spherical))
	expected, expectedFailures := b.FeatureCollection(fc)

	for _, workers := range []int{0, 1, 4, 16} {
		got, failures, err := b.FeatureCollectionParallel(context.Background(), fc, workers)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if !reflect.DeepEqual(got, expected) {
			t.Errorf("workers=%d: parallel result differs from sequential", workers)
		}
		if len(failures) != len(expectedFailures) {
			t.Errorf("workers=%d: expected %d failures, got %d", workers, len(expectedFailures), len(failures))
		}
	}
}

func TestFeatureCollectionParallel_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewBuilder(DefaultOptions(Spherical))
	_, _, err := b.FeatureCollectionParallel(ctx, mixedCollection(), 2)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestConvert(t *testing.T) {
	b := NewBuilder(Options{Mode: Planar, FillPolygons: true})
	for _, tc := range []struct {
		name     string
		data     string
		meshes   int
		failures int
	}{
		{"collection", `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"name":"a"},"geometry":{"type":"Point","coordinates":[1,2]}},
			{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,200]}}]}`, 1, 1},
		{"feature", `{"type":"Feature","properties":{"NAME":"b"},
			"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}`, 1, 0},
		{"geometry", `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`, 1, 0},
	} {
		meshes, failures, err := b.Convert([]byte(tc.data))
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if len(meshes) != tc.meshes || len(failures) != tc.failures {
			t.Errorf("%s: expected %d meshes and %d failures, got %d and %d",
				tc.name, tc.meshes, tc.failures, len(meshes), len(failures))
		}
	}
}

func TestConvert_Errors(t *testing.T) {
	b := NewBuilder(DefaultOptions(Spherical))
	if _, _, err := b.Convert([]byte(`{"coordinates":[1,2]}`)); !errors.Is(err, ErrUnsupportedGeometry) {
		t.Errorf("expected ErrUnsupportedGeometry, got %v", err)
	}
	if _, _, err := b.Convert([]byte(`{"type":`)); err == nil {
		t.Error("expected error for truncated input")
	}
}

func TestFeatureName(t *testing.T) {
	for _, tc := range []struct {
		props    map[string]interface{}
		expected string
	}{
		{map[string]interface{}{"NAME": "Fiji", "name": "fiji"}, "Fiji"},
		{map[string]interface{}{"name": "Chukotka"}, "Chukotka"},
		{map[string]interface{}{"NAME": 7, "name": "seven"}, "seven"},
		{map[string]interface{}{}, ""},
	} {
		f := geojson.NewFeature(squareAt(0, 0))
		f.Properties = tc.props
		if got := FeatureName(f); got != tc.expected {
			t.Errorf("FeatureName(%v): expected %q, got %q", tc.props, tc.expected, got)
		}
	}
	if got := FeatureName(nil); got != "" {
		t.Errorf("expected empty name, got %q", got)
	}
}
