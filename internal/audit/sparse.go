package audit

import (
	"time"

	"github.com/rs/zerolog"
)

// sparseDict collects optional fields into a nested dictionary. Zero values
// are skipped, and an empty dictionary is never attached.
type sparseDict struct {
	dict  *zerolog.Event
	empty bool
}

func newSparseDict() *sparseDict {
	return &sparseDict{dict: zerolog.Dict(), empty: true}
}

func (d *sparseDict) Str(key, val string) *sparseDict {
	if val != "" {
		d.dict.Str(key, val)
		d.empty = false
	}
	return d
}

// Flag records key only when it is set.
func (d *sparseDict) Flag(key string, set bool) *sparseDict {
	if set {
		d.dict.Bool(key, true)
		d.empty = false
	}
	return d
}

func (d *sparseDict) Dur(key string, val time.Duration) *sparseDict {
	if val != 0 {
		d.dict.Dur(key, val)
		d.empty = false
	}
	return d
}

// AttachTo adds the dictionary to parent under key, reporting whether it had
// any content.
func (d *sparseDict) AttachTo(parent *zerolog.Event, key string) bool {
	if d.empty {
		return false
	}
	parent.Dict(key, d.dict)
	return true
}
