// Package mesh converts GeoJSON geometry into flat vertex and index buffers
// for a sphere or a projection plane.
//
// Polygons are normalized, densified along great circles, cut at the
// antimeridian and ear-clipped in longitude/latitude space before their
// vertices are projected, so triangles never straddle the ±180° seam.
//
// Everything in this package is a pure function of its input. Buffers in a
// returned Mesh belong to the caller.
package mesh
