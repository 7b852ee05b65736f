package orbit

import (
	"fmt"
	"strings"
)

// Frame names a reference frame. Conversions between frames are not
// provided here; an orbit is only ever compared with orbits in its own
// frame.
type Frame struct {
	Name     string
	Inertial bool
}

var (
	GCRF    = Frame{Name: "GCRF", Inertial: true}
	EME2000 = Frame{Name: "EME2000", Inertial: true}
	ITRF    = Frame{Name: "ITRF", Inertial: false}
)

var frames = map[string]Frame{
	"gcrf":    GCRF,
	"eme2000": EME2000,
	"j2000":   EME2000,
	"itrf":    ITRF,
}

func (f Frame) String() string { return f.Name }

// IsZero reports whether f is the unset frame.
func (f Frame) IsZero() bool { return f.Name == "" }

func FrameByName(name string) (Frame, error) {
	f, ok := frames[strings.ToLower(name)]
	if !ok {
		return Frame{}, fmt.Errorf("unknown frame: %s", name)
	}
	return f, nil
}
