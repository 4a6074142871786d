package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func makeServer(t *testing.T) *WebServer {
	cfg, err := LoadConfig("", map[string]interface{}{
		"server.public_path": "https://test.example.org/globemesh/",
	})
	if err != nil {
		t.Fatal(err)
	}
	s, err := MakeWebServer(loadTestIndex(t), cfg)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func get(s *WebServer, target string, header http.Header) *httptest.ResponseRecorder {
	query := httptest.NewRequest("GET", target, nil)
	for k, v := range header {
		query.Header[k] = v
	}
	resp := httptest.NewRecorder()
	s.ServeHTTP(resp, query)
	return resp
}

func getBody(r *httptest.ResponseRecorder) string {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return err.Error()
	}
	return string(b)
}

func expectJSON(t *testing.T, got string, expected string) {
	t.Helper()
	var prettyGot bytes.Buffer
	if err := json.Indent(&prettyGot, []byte(got), "", "  "); err != nil {
		t.Fatalf("error pretty-printing JSON: %s", err)
	}

	var prettyExpected bytes.Buffer
	if err := json.Indent(&prettyExpected, []byte(expected), "", "  "); err != nil {
		t.Fatalf("error pretty-printing JSON: %s", err)
	}

	if prettyGot.String() != prettyExpected.String() {
		t.Fatalf("expected: %s\ngot:      %s\n",
			prettyExpected.String(), prettyGot.String())
	}
}

func expectCORSHeader(t *testing.T, header http.Header) {
	t.Helper()
	if cors := header.Get("Access-Control-Allow-Origin"); cors != "*" {
		t.Errorf("expected header \"Access-Control-Allow-Origin: *\", got %s", cors)
	}
}

func expectStatus(t *testing.T, resp *httptest.ResponseRecorder, status int) {
	t.Helper()
	if resp.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, resp.Code, resp.Body.String())
	}
}

func decodeMeshCollection(t *testing.T, resp *httptest.ResponseRecorder) *MeshCollection {
	t.Helper()
	var mc MeshCollection
	if err := json.Unmarshal(resp.Body.Bytes(), &mc); err != nil {
		t.Fatalf("cannot decode response: %v", err)
	}
	return &mc
}

func checkFeatureMesh(t *testing.T, f *FeatureMesh) {
	t.Helper()
	if len(f.Positions)%3 != 0 || len(f.Lines)%3 != 0 || len(f.Indices)%3 != 0 {
		t.Errorf("%s: buffer sizes %d/%d/%d are not triples", f.Name, len(f.Positions), len(f.Indices), len(f.Lines))
	}
	n := uint32(len(f.Positions) / 3)
	for _, idx := range f.Indices {
		if idx >= n {
			t.Errorf("%s: index %d out of range for %d positions", f.Name, idx, n)
		}
	}
}

func TestHome(t *testing.T) {
	resp := get(makeServer(t), "/", nil)
	expectStatus(t, resp, http.StatusOK)

	if ct := resp.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Expected Content-Type HTML, got %s", ct)
	}

	body := getBody(resp)
	if !strings.Contains(body, "https://test.example.org/globemesh/collections/countries/mesh") {
		t.Errorf("Expected homepage; got %s", body)
	}
}

func TestListCollections(t *testing.T) {
	resp := get(makeServer(t), "/collections", nil)
	expectStatus(t, resp, http.StatusOK)

	if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type: application/json, got %s", ct)
	}

	expectCORSHeader(t, resp.Header())
	expectJSON(t, getBody(resp), `{
          "links": [
            {
              "href": "https://test.example.org/globemesh/collections",
              "rel": "self",
              "type": "application/json",
              "title": "Collections"
            }
          ],
          "collections": [
            {
              "name": "countries",
              "features": 5,
              "bbox": [-179, -19, 177, 70],
              "links": [
                {
                  "href": "https://test.example.org/globemesh/collections/countries/mesh",
                  "rel": "item",
                  "type": "application/json",
                  "title": "countries"
                },
                {
                  "href": "https://test.example.org/globemesh/collections/countries/preview.png",
                  "rel": "preview",
                  "type": "image/png",
                  "title": "countries"
                }
              ]
            },
            {
              "name": "rivers",
              "features": 2,
              "bbox": [-164.8, 47.56, 8.6, 65.5],
              "links": [
                {
                  "href": "https://test.example.org/globemesh/collections/rivers/mesh",
                  "rel": "item",
                  "type": "application/json",
                  "title": "rivers"
                },
                {
                  "href": "https://test.example.org/globemesh/collections/rivers/preview.png",
                  "rel": "preview",
                  "type": "image/png",
                  "title": "rivers"
                }
              ]
            }
          ]
        }`)
}

func TestMesh(t *testing.T) {
	resp := get(makeServer(t), "/collections/countries/mesh", nil)
	expectStatus(t, resp, http.StatusOK)

	if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type: application/json, got %s", ct)
	}

	stat, _ := os.Stat(filepath.Join("testdata", "countries.geojson"))
	expectedLastModified := stat.ModTime().UTC().Format(http.TimeFormat)
	gotLastModified := resp.Header().Get("Last-Modified")
	if expectedLastModified != gotLastModified {
		t.Errorf("Expected Last-Modified: %s, got %s", expectedLastModified, gotLastModified)
	}
	expectCORSHeader(t, resp.Header())

	mc := decodeMeshCollection(t, resp)
	if mc.Type != "MeshCollection" || mc.Mode != "sphere" || mc.Radius != 1 {
		t.Errorf("unexpected header fields %+v", mc)
	}
	if len(mc.Links) != 1 || mc.Links[0].Href !=
		"https://test.example.org/globemesh/collections/countries/mesh?mode=sphere&radius=1&samples=12&fill=true" {
		t.Errorf("unexpected links %+v", mc.Links)
	}

	var names []string
	for _, f := range mc.Features {
		names = append(names, f.Name)
		checkFeatureMesh(t, f)
		for i := 0; i+2 < len(f.Positions); i += 3 {
			r := math.Sqrt(f.Positions[i]*f.Positions[i] + f.Positions[i+1]*f.Positions[i+1] + f.Positions[i+2]*f.Positions[i+2])
			if math.Abs(r-1) > 1e-9 {
				t.Fatalf("%s: vertex off the unit sphere", f.Name)
			}
		}
	}
	if strings.Join(names, ",") != "Switzerland,Fiji,Chukotka,Zürich" {
		t.Errorf("unexpected features %v", names)
	}

	if len(mc.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %+v", mc.Failures)
	}
	if f := mc.Failures[0]; f.Index != 3 || f.ID != "XX" || f.Kind != "invalid_polygon" {
		t.Errorf("unexpected failure %+v", f)
	}
}

func TestMesh_FlatBbox(t *testing.T) {
	resp := get(makeServer(t), "/collections/countries/mesh?mode=flat&bbox=5,45,11,48&extrude=0.5", nil)
	expectStatus(t, resp, http.StatusOK)

	mc := decodeMeshCollection(t, resp)
	if mc.Mode != "flat" || mc.Radius != 5 {
		t.Errorf("expected flat mode with radius 5, got %s/%g", mc.Mode, mc.Radius)
	}
	if len(mc.Features) != 2 || len(mc.Failures) != 0 {
		t.Fatalf("expected Switzerland and Zürich only, got %d features, %d failures",
			len(mc.Features), len(mc.Failures))
	}
	ch := mc.Features[0]
	checkFeatureMesh(t, ch)
	// Extruded box: two caps and four walls.
	if len(ch.Positions) != 8*3 || len(ch.Indices) != 36 {
		t.Errorf("expected an extruded box, got %d positions, %d indices", len(ch.Positions)/3, len(ch.Indices))
	}
	expectedBbox := []float64{6, 46, 10, 47.5}
	for i, v := range expectedBbox {
		if ch.BoundingBox[i] != v {
			t.Errorf("expected bbox %v, got %v", expectedBbox, ch.BoundingBox)
			break
		}
	}
}

func TestMesh_WideBbox(t *testing.T) {
	resp := get(makeServer(t), "/collections/countries/mesh?bbox=-170,40,170,50", nil)
	expectStatus(t, resp, http.StatusOK)
	mc := decodeMeshCollection(t, resp)
	var names []string
	for _, f := range mc.Features {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "Switzerland,Zürich" {
		t.Errorf("expected Switzerland and Zürich, got %v", names)
	}
}

func TestMesh_Lines(t *testing.T) {
	resp := get(makeServer(t), "/collections/rivers/mesh?mode=flat", nil)
	expectStatus(t, resp, http.StatusOK)
	mc := decodeMeshCollection(t, resp)
	if len(mc.Features) != 2 {
		t.Fatalf("expected 2 rivers, got %d", len(mc.Features))
	}
	// Three segments for the Rhine, three for the Yukon.
	for _, f := range mc.Features {
		checkFeatureMesh(t, f)
		if len(f.Lines) != 6*3 {
			t.Errorf("%s: expected 6 line vertices, got %d", f.Name, len(f.Lines)/3)
		}
		if len(f.Positions) != 0 || len(f.Indices) != 0 {
			t.Errorf("%s: expected no triangles", f.Name)
		}
	}
}

func TestMesh_BadRequest(t *testing.T) {
	s := makeServer(t)
	for _, target := range []string{
		"/collections/countries/mesh?mode=cone",
		"/collections/countries/mesh?radius=-1",
		"/collections/countries/mesh?radius=0",
		"/collections/countries/mesh?samples=abc",
		"/collections/countries/mesh?fill=maybe",
		"/collections/countries/mesh?bbox=1,2,3",
		"/collections/countries/preview.png?width=0",
		"/collections/countries/preview.png?projection=dymaxion",
	} {
		resp := get(s, target, nil)
		if resp.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", target, resp.Code)
		}
		expectCORSHeader(t, resp.Header())
	}
}

func TestMesh_NotFound(t *testing.T) {
	s := makeServer(t)
	for _, target := range []string{
		"/collections/lakes/mesh",
		"/collections/lakes/preview.png",
		"/collections/countries/items/nope/mesh",
		"/collections/countries/items",
		"/nope",
	} {
		if resp := get(s, target, nil); resp.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", target, resp.Code)
		}
	}
}

func TestMesh_NotModified(t *testing.T) {
	s := makeServer(t)
	later := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	resp := get(s, "/collections/countries/mesh", http.Header{"If-Modified-Since": {later}})
	expectStatus(t, resp, http.StatusNotModified)

	earlier := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat)
	resp = get(s, "/collections/countries/mesh", http.Header{"If-Modified-Since": {earlier}})
	expectStatus(t, resp, http.StatusOK)
}

func TestMesh_Cached(t *testing.T) {
	s := makeServer(t)
	first := get(s, "/collections/countries/mesh?mode=flat", nil)
	second := get(s, "/collections/countries/mesh?mode=flat", nil)
	expectStatus(t, second, http.StatusOK)
	if first.Body.String() != second.Body.String() {
		t.Error("cached response differs")
	}
	if n := s.cache.Len(); n != 1 {
		t.Errorf("expected 1 cache entry, got %d", n)
	}
}

func TestItemMesh(t *testing.T) {
	s := makeServer(t)
	resp := get(s, "/collections/countries/items/FJ/mesh?mode=flat", nil)
	expectStatus(t, resp, http.StatusOK)
	expectCORSHeader(t, resp.Header())

	var f FeatureMesh
	if err := json.Unmarshal(resp.Body.Bytes(), &f); err != nil {
		t.Fatal(err)
	}
	if f.ID != "FJ" || f.Name != "Fiji" {
		t.Errorf("unexpected feature %+v", f)
	}
	checkFeatureMesh(t, &f)
	// Cut at the seam into two rectangles of at least two triangles each.
	if len(f.Indices) < 12 {
		t.Errorf("expected at least 4 triangles, got %d", len(f.Indices)/3)
	}
	for i := 0; i+2 < len(f.Positions); i += 3 {
		if x := f.Positions[i]; x > -4.9 && x < 4.9 {
			t.Errorf("vertex x=%g is not near the map edge", x)
		}
	}
}

func TestItemMesh_NotModified(t *testing.T) {
	s := makeServer(t)
	later := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	resp := get(s, "/collections/countries/items/CH/mesh", http.Header{"If-Modified-Since": {later}})
	expectStatus(t, resp, http.StatusNotModified)
	if n := s.cache.Len(); n != 0 {
		t.Errorf("expected nothing to be cached, got %d entries", n)
	}
}

func TestItemMesh_Cached(t *testing.T) {
	s := makeServer(t)
	first := get(s, "/collections/countries/items/CH/mesh?mode=flat", nil)
	second := get(s, "/collections/countries/items/CH/mesh?mode=flat", nil)
	expectStatus(t, second, http.StatusOK)
	if first.Body.String() != second.Body.String() {
		t.Error("cached response differs")
	}
	if ct := second.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type: application/json, got %s", ct)
	}
	if second.Header().Get("Last-Modified") == "" {
		t.Error("expected a Last-Modified header")
	}
	if n := s.cache.Len(); n != 1 {
		t.Errorf("expected 1 cache entry, got %d", n)
	}

	// Failures are not cached.
	get(s, "/collections/countries/items/XX/mesh", nil)
	if n := s.cache.Len(); n != 1 {
		t.Errorf("expected 1 cache entry after a failure, got %d", n)
	}
}

func TestItemMesh_Failure(t *testing.T) {
	resp := get(makeServer(t), "/collections/countries/items/XX/mesh", nil)
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	var f Failure
	if err := json.Unmarshal(resp.Body.Bytes(), &f); err != nil {
		t.Fatal(err)
	}
	if f.Kind != "invalid_polygon" || f.ID != "XX" {
		t.Errorf("unexpected failure %+v", f)
	}
}

func TestPreview(t *testing.T) {
	s := makeServer(t)
	for _, proj := range []string{"mercator", "equirectangular", "orthographic"} {
		resp := get(s, "/collections/countries/preview.png?width=200&height=100&projection="+proj, nil)
		expectStatus(t, resp, http.StatusOK)
		if ct := resp.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("Expected Content-Type: image/png, got %s", ct)
		}
		img, err := png.Decode(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
			t.Errorf("%s: expected 200x100, got %v", proj, b)
		}
		opaque := 0
		for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
			for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
				if _, _, _, alpha := img.At(x, y).RGBA(); alpha != 0 {
					opaque++
				}
			}
		}
		if opaque == 0 {
			t.Errorf("%s: expected something to be drawn", proj)
		}
	}
}

func TestMetrics(t *testing.T) {
	s := makeServer(t)
	get(s, "/collections/countries/mesh?samples=6", nil)
	resp := get(s, "/metrics", nil)
	expectStatus(t, resp, http.StatusOK)
	body := getBody(resp)
	for _, metric := range []string{
		"globemesh_http_requests_total",
		"globemesh_mesh_features_converted_total",
		`globemesh_mesh_feature_failures_total{collection="countries",kind="invalid_polygon"}`,
		`globemesh_index_features{collection="countries"} 5`,
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("expected %s in /metrics output", metric)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := makeServer(t)
	resp := httptest.NewRecorder()
	s.HandleRequest(resp, httptest.NewRequest("POST", "/collections", nil))
	expectStatus(t, resp, http.StatusMethodNotAllowed)
	expectCORSHeader(t, resp.Header())
}
