//go:build !linux

package routing

// NewOSRouter is not implemented on this platform; callers must supply
// their own Router.
func NewOSRouter() (Router, error) {
	return nil, ErrUnsupportedPlatform
}
