package main

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brawer/globemesh/mesh"
	"github.com/paulmach/go.geojson"
)

const (
	defaultPreviewWidth  = 800
	defaultPreviewHeight = 400
	maxPreviewSize       = 4096
)

type WebServer struct {
	index      *Index
	publicPath *url.URL
	defaults   mesh.Options
	workers    int
	cache      *ResponseCache
}

func MakeWebServer(index *Index, cfg *Config) (*WebServer, error) {
	publicPath, err := url.Parse(cfg.Server.PublicPath)
	if err != nil {
		return nil, err
	}
	defaults, err := cfg.BuilderOptions()
	if err != nil {
		return nil, err
	}
	s := &WebServer{
		index:      index,
		publicPath: publicPath,
		defaults:   defaults,
		workers:    cfg.Mesh.Workers,
		cache:      NewResponseCache(cfg.Cache.MaxEntries),
	}
	return s, nil
}

// ServeHTTP serves HandleRequest with request metrics.
func (s *WebServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	instrument(func(r *http.Request) string { return matchRoute(r.URL.Path).pattern }, s.HandleRequest)(w, r)
}

type route struct {
	pattern    string
	collection string
	item       string
}

func matchRoute(path string) route {
	p := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(p) == 1 && p[0] == "":
		return route{pattern: "/"}
	case len(p) == 1 && p[0] == "collections":
		return route{pattern: "/collections"}
	case len(p) == 1 && p[0] == "metrics":
		return route{pattern: "/metrics"}
	case len(p) == 3 && p[0] == "collections" && p[2] == "mesh":
		return route{pattern: "/collections/{name}/mesh", collection: p[1]}
	case len(p) == 3 && p[0] == "collections" && p[2] == "preview.png":
		return route{pattern: "/collections/{name}/preview.png", collection: p[1]}
	case len(p) == 5 && p[0] == "collections" && p[2] == "items" && p[4] == "mesh":
		return route{pattern: "/collections/{name}/items/{id}/mesh", collection: p[1], item: p[3]}
	default:
		return route{pattern: "other"}
	}
}

func (s *WebServer) HandleRequest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rt := matchRoute(r.URL.Path)
	switch rt.pattern {
	case "/":
		s.HandleHome(w, r)
	case "/collections":
		s.HandleCollections(w, r)
	case "/metrics":
		metricsHandler.ServeHTTP(w, r)
	case "/collections/{name}/mesh":
		s.HandleMesh(w, r, rt.collection)
	case "/collections/{name}/items/{id}/mesh":
		s.HandleItemMesh(w, r, rt.collection, rt.item)
	case "/collections/{name}/preview.png":
		s.HandlePreview(w, r, rt.collection)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html><head><title>globemesh</title></head>
<body>
<h1>globemesh</h1>
<p>GeoJSON collections served as triangle meshes for spheres and flat maps.</p>
<ul>
{{range .}}<li><a href="{{.Href}}">{{.Title}}</a></li>
{{end}}</ul>
</body></html>
`))

func (s *WebServer) HandleHome(w http.ResponseWriter, _ *http.Request) {
	var links []Link
	for _, name := range s.index.GetCollections() {
		links = append(links, Link{
			Href:  s.publicPath.String() + "collections/" + url.PathEscape(name) + "/mesh",
			Title: name,
		})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := homeTemplate.Execute(w, links); err != nil {
		slog.Error("rendering home page failed", "err", err)
	}
}

func (s *WebServer) HandleCollections(w http.ResponseWriter, _ *http.Request) {
	type CollectionInfo struct {
		Name        string    `json:"name"`
		Features    int       `json:"features"`
		BoundingBox []float64 `json:"bbox,omitempty"`
		Links       []Link    `json:"links"`
	}

	type CollectionsResponse struct {
		Links       []Link           `json:"links"`
		Collections []CollectionInfo `json:"collections"`
	}

	names := s.index.GetCollections()
	infos := make([]CollectionInfo, 0, len(names))
	for _, name := range names {
		coll := s.index.GetCollection(name)
		if coll == nil {
			continue
		}
		base := s.publicPath.String() + "collections/" + url.PathEscape(name)
		infos = append(infos, CollectionInfo{
			Name:        name,
			Features:    len(coll.Features.Features),
			BoundingBox: EncodeBbox(coll.Bounds.Rect()),
			Links: []Link{
				{Href: base + "/mesh", Rel: "item", Type: "application/json", Title: name},
				{Href: base + "/preview.png", Rel: "preview", Type: "image/png", Title: name},
			},
		})
	}

	selfLink := Link{
		Href: s.publicPath.String() + "collections",
		Rel:  "self", Type: "application/json", Title: "Collections",
	}

	s.writeJSON(w, http.StatusOK, CollectionsResponse{
		Links:       []Link{selfLink},
		Collections: infos,
	})
}

// HandleMesh converts every feature of a collection, optionally filtered
// by bbox, into one MeshCollection.
func (s *WebServer) HandleMesh(w http.ResponseWriter, r *http.Request, name string) {
	coll := s.index.GetCollection(name)
	if coll == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("collection %q not found", name))
		return
	}
	q, err := parseMeshQuery(r.URL.Query(), s.defaults)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if notModified(r, coll.LastModified) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	selfURL := FormatMeshURL(s.publicPath.String(), name, "", q)
	key := cacheKey(coll, selfURL)
	if cached := s.cache.Get(key); cached != nil {
		cacheHits.WithLabelValues("mesh").Inc()
		writeCached(w, cached)
		return
	}
	cacheMisses.WithLabelValues("mesh").Inc()

	// Keep the position of each selected feature in the full collection, so
	// failures refer to the file rather than to the filtered subset.
	fc := geojson.NewFeatureCollection()
	var positions []int
	for i, f := range coll.Features.Features {
		if !q.Bbox.IsFull() && !q.Bbox.Intersects(mesh.FeatureBounds(f).Rect()) {
			continue
		}
		fc.AddFeature(f)
		positions = append(positions, i)
	}

	builder := mesh.NewBuilder(q.Options)
	start := time.Now()
	meshes, failures, err := builder.FeatureCollectionParallel(r.Context(), fc, s.workers)
	if err != nil {
		slog.Warn("mesh conversion aborted", "collection", name, "err", err)
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	conversionDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	featuresConverted.WithLabelValues(name).Add(float64(len(meshes)))

	result := &MeshCollection{
		Type:     "MeshCollection",
		Mode:     q.Options.Mode.String(),
		Radius:   builder.Options().Radius,
		Links:    []*Link{{Href: selfURL, Rel: "self", Type: "application/json", Title: "self"}},
		Features: make([]*FeatureMesh, 0, len(meshes)),
	}
	bounds := mesh.EmptyBoundingBox()
	for _, m := range meshes {
		result.Features = append(result.Features, newFeatureMesh(m))
		bounds = bounds.Union(m.Bounds)
	}
	result.BoundingBox = bounds.Slice()
	for _, f := range failures {
		kind := mesh.ErrorKind(f.Err)
		featureFailures.WithLabelValues(name, kind).Inc()
		result.Failures = append(result.Failures, &Failure{
			Index: positions[f.Index],
			ID:    fc.Features[f.Index].ID,
			Kind:  kind,
			Error: f.Err.Error(),
		})
	}

	s.writeEncoded(w, key, coll.LastModified, result)
}

// HandleItemMesh converts a single feature, looked up by id.
func (s *WebServer) HandleItemMesh(w http.ResponseWriter, r *http.Request, name, id string) {
	coll := s.index.GetCollection(name)
	if coll == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("collection %q not found", name))
		return
	}
	f, ok := coll.Feature(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("item %q not found in collection %q", id, name))
		return
	}
	q, err := parseMeshQuery(r.URL.Query(), s.defaults)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if notModified(r, coll.LastModified) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	key := cacheKey(coll, FormatMeshURL(s.publicPath.String(), name, id, q))
	if cached := s.cache.Get(key); cached != nil {
		cacheHits.WithLabelValues("item").Inc()
		writeCached(w, cached)
		return
	}
	cacheMisses.WithLabelValues("item").Inc()

	fm, err := mesh.NewBuilder(q.Options).Feature(f)
	if err != nil {
		kind := mesh.ErrorKind(err)
		featureFailures.WithLabelValues(name, kind).Inc()
		s.writeJSON(w, http.StatusUnprocessableEntity, &Failure{ID: f.ID, Kind: kind, Error: err.Error()})
		return
	}
	featuresConverted.WithLabelValues(name).Inc()

	s.writeEncoded(w, key, coll.LastModified, newFeatureMesh(fm))
}

// HandlePreview renders a collection as a flat PNG map.
func (s *WebServer) HandlePreview(w http.ResponseWriter, r *http.Request, name string) {
	coll := s.index.GetCollection(name)
	if coll == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("collection %q not found", name))
		return
	}
	query := r.URL.Query()
	width, err := parseSize(query.Get("width"), defaultPreviewWidth)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	height, err := parseSize(query.Get("height"), defaultPreviewHeight)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	projName := query.Get("projection")
	if projName == "" {
		projName = "mercator"
	}
	base, err := previewProjection(projName, coll.Bounds)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if notModified(r, coll.LastModified) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	key := cacheKey(coll, fmt.Sprintf("preview/%s/%dx%d/%s", url.PathEscape(name), width, height, projName))
	if cached := s.cache.Get(key); cached != nil {
		cacheHits.WithLabelValues("preview").Inc()
		writeCached(w, cached)
		return
	}
	cacheMisses.WithLabelValues("preview").Inc()

	builder := mesh.NewBuilder(mesh.Options{
		Mode:         mesh.Planar,
		FillPolygons: true,
		Projection:   mesh.FitSize(base, float64(width), float64(height), coll.Bounds),
	})
	meshes, _, err := builder.FeatureCollectionParallel(r.Context(), coll.Features, s.workers)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	preview := &Preview{Width: width, Height: height}
	for _, m := range meshes {
		preview.DrawMesh(m.Mesh)
	}
	png, err := preview.ToPNG()
	if err != nil {
		slog.Error("encoding preview failed", "collection", name, "err", err)
		s.writeError(w, http.StatusInternalServerError, "encoding failed")
		return
	}

	resp := &CachedResponse{ContentType: "image/png", LastModified: coll.LastModified, Body: png}
	s.cache.Put(key, resp)
	writeCached(w, resp)
}

func previewProjection(name string, box mesh.BoundingBox) (mesh.Projection, error) {
	switch strings.ToLower(name) {
	case "mercator":
		return mesh.WebMercator{}, nil
	case "equirectangular":
		return mesh.Equirectangular{Radius: 180}, nil
	case "orthographic":
		if box.IsEmpty() {
			return mesh.Orthographic{}, nil
		}
		return mesh.Orthographic{
			Lon0: (box.MinLon + box.MaxLon) / 2,
			Lat0: (box.MinLat + box.MaxLat) / 2,
		}, nil
	default:
		return nil, fmt.Errorf("unknown projection %q", name)
	}
}

func parseSize(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > maxPreviewSize {
		return 0, fmt.Errorf("bad image size %q", s)
	}
	return n, nil
}

func cacheKey(coll *Collection, request string) string {
	return coll.Path + "\x00" + strconv.FormatInt(coll.LastModified.UnixNano(), 10) + "\x00" + request
}

func notModified(r *http.Request, modified time.Time) bool {
	since, err := http.ParseTime(r.Header.Get("If-Modified-Since"))
	if err != nil {
		return false
	}
	return !modified.Truncate(time.Second).After(since)
}

func (s *WebServer) writeEncoded(w http.ResponseWriter, key string, modified time.Time, v interface{}) {
	encoded, err := json.Marshal(v)
	if err != nil {
		slog.Error("json.Marshal failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "encoding failed")
		return
	}
	resp := &CachedResponse{ContentType: "application/json", LastModified: modified, Body: encoded}
	s.cache.Put(key, resp)
	writeCached(w, resp)
}

func writeCached(w http.ResponseWriter, resp *CachedResponse) {
	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("Last-Modified", resp.LastModified.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	w.Write(resp.Body)
}

func (s *WebServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	encoded, err := json.Marshal(v)
	if err != nil {
		slog.Error("json.Marshal failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(encoded)
}

func (s *WebServer) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
