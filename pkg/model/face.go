package model

import (
	"path"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

const faceExt = ".jpg"

// Identity names a person in the reference gallery
type Identity string

// NewIdentity validates that s can be used as a gallery key
func NewIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", goerr.Wrap(ErrInvalidArgument, "identity is required")
	}
	if s == "." || s == ".." || strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, 0) {
		return "", goerr.Wrap(ErrInvalidArgument, "identity must be a plain name", goerr.V("identity", s))
	}
	return Identity(s), nil
}

// Key returns the gallery object name, <identity>.jpg
func (x Identity) Key() string {
	return string(x) + faceExt
}

func (x Identity) String() string { return string(x) }

// IdentityFromPath recovers the identity from a gallery path such as faces/JP.jpg. Only
// the extension is dropped, so faces/Mary.Ann.jpg is Mary.Ann.
func IdentityFromPath(p string) Identity {
	base := path.Base(strings.ReplaceAll(p, `\`, "/"))
	return Identity(strings.TrimSuffix(base, path.Ext(base)))
}

// FaceMatch is the best gallery candidate for one detected face
type FaceMatch struct {
	Identity   Identity `json:"identity"`
	Confidence float64  `json:"confidence"`
	SourcePath string   `json:"source_path"`
}

// ConfidenceFromDistance converts a matcher distance to a 0-100 confidence score
func ConfidenceFromDistance(distance float64) float64 {
	c := (1 - distance) * 100
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	default:
		return c
	}
}
