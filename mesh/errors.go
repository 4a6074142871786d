package mesh

import "errors"

// Errors returned by this package. Callers match them with errors.Is; the
// returned errors wrap one of these with details about the offending input.
var (
	ErrInvalidCoordinate   = errors.New("mesh: invalid coordinate")
	ErrInvalidPolygon      = errors.New("mesh: invalid polygon")
	ErrUnsupportedGeometry = errors.New("mesh: unsupported geometry")
	ErrMergeSizeMismatch   = errors.New("mesh: merge size mismatch")
)

// ErrorKind returns a short stable label for err, suitable for metric
// labels and JSON responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCoordinate):
		return "invalid_coordinate"
	case errors.Is(err, ErrInvalidPolygon):
		return "invalid_polygon"
	case errors.Is(err, ErrUnsupportedGeometry):
		return "unsupported_geometry"
	case errors.Is(err, ErrMergeSizeMismatch):
		return "merge_size_mismatch"
	default:
		return "other"
	}
}
