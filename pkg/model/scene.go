package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const (
	scenePrefix    = "scene_"
	sceneExt       = ".jpg"
	sceneTimestamp = "20060102_150405"
	sceneDate      = "20060102"
)

var sceneDatePattern = regexp.MustCompile(`^[0-9]{8}$`)

// SceneID is the file name of a stored scene capture, e.g. scene_20240102_150405.jpg
type SceneID string

// NewSceneID names a scene captured at t. Resolution is one second, so two captures in
// the same second share an ID and the later one wins.
func NewSceneID(t time.Time) SceneID {
	return SceneID(scenePrefix + t.Format(sceneTimestamp) + sceneExt)
}

// Timestamp returns the YYYYMMDD_HHMMSS part of the ID
func (x SceneID) Timestamp() string {
	s := strings.TrimPrefix(string(x), scenePrefix)
	return strings.TrimSuffix(s, sceneExt)
}

func (x SceneID) String() string { return string(x) }

// SceneDate is a YYYYMMDD day used to partition scenes
type SceneDate string

// SceneDateOf returns the partition date of t
func SceneDateOf(t time.Time) SceneDate {
	return SceneDate(t.Format(sceneDate))
}

// ParseSceneDate validates a YYYYMMDD string
func ParseSceneDate(s string) (SceneDate, error) {
	if !sceneDatePattern.MatchString(s) {
		return "", goerr.Wrap(ErrInvalidArgument, "date must be YYYYMMDD", goerr.V("date", s))
	}
	if _, err := time.Parse(sceneDate, s); err != nil {
		return "", goerr.Wrap(ErrInvalidArgument, "date is not a calendar day", goerr.V("date", s))
	}
	return SceneDate(s), nil
}

// Prefix returns the key prefix shared by every scene of the day
func (x SceneDate) Prefix() string {
	return scenePrefix + string(x)
}

func (x SceneDate) String() string { return string(x) }
