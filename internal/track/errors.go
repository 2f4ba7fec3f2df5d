package track

import "errors"

// Sentinel errors returned by Store operations. Callers should use
// errors.Is rather than comparing directly.
var (
	// ErrPoolFull is returned by CreateTrack when every slot is live.
	ErrPoolFull = errors.New("track: pool full")

	// ErrUnknownID is returned when a track id has no live mapping.
	ErrUnknownID = errors.New("track: unknown id")

	// ErrTerminated is returned by PushPoint when the append causes (or
	// finds) the track's extrapolation bound exceeded; the track no
	// longer exists once the call returns.
	ErrTerminated = errors.New("track: terminated")

	// ErrInsufficientPoints is returned by MergeTracks when either side
	// holds fewer than MaxExtrapolation points.
	ErrInsufficientPoints = errors.New("track: insufficient points for merge")
)
