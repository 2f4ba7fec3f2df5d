// Package track implements the track store (spec component B): a
// fixed-capacity pool of per-track header + latest-K buffer slots, keyed by
// a stable, monotonically increasing track id, with create/update/merge/
// delete lifecycle operations. A single Store is meant to be owned
// exclusively by one goroutine (the scheduler worker); it does no internal
// locking.
package track

import "trackmand/internal/ring"

// MaxExtrapolation is the number of consecutive unassociated appends a
// track tolerates before it is terminated.
const MaxExtrapolation = 3

// record is the unit of allocation in the pool: a header plus a latest-K
// buffer of points with capacity pointCapacity.
type record struct {
	header Header
	points *ring.Buffer[Point]
}

func (r *record) reset() {
	r.header = freeHeader()
	r.points.Clear()
}

// Store is a fixed-size pool of track records. Every live id maps to
// exactly one slot; every slot is either free or referenced by exactly one
// id; |liveMap| + |freeSlots| == capacity at all times.
type Store struct {
	records   []record
	liveMap   map[uint32]int
	freeSlots []int
	nextID    uint32
}

// NewStore constructs a store with trackCapacity slots, each holding up to
// pointCapacity points. Allocation happens once, up front.
func NewStore(trackCapacity, pointCapacity int) *Store {
	if trackCapacity <= 0 {
		panic("track: trackCapacity must be positive")
	}
	if pointCapacity <= 0 {
		panic("track: pointCapacity must be positive")
	}

	s := &Store{
		records:   make([]record, trackCapacity),
		liveMap:   make(map[uint32]int, trackCapacity),
		freeSlots: make([]int, trackCapacity),
		nextID:    1,
	}
	for i := range s.records {
		s.records[i].points = ring.NewBuffer[Point](pointCapacity)
		s.records[i].header = freeHeader()
		s.freeSlots[i] = trackCapacity - 1 - i
	}
	return s
}

// CreateTrack pops a free slot, assigns the next unused id, and writes a
// fresh NORMAL header. Returns ErrPoolFull if every slot is live.
func (s *Store) CreateTrack() (uint32, error) {
	if len(s.freeSlots) == 0 {
		return 0, ErrPoolFull
	}

	idx := s.freeSlots[len(s.freeSlots)-1]
	s.freeSlots = s.freeSlots[:len(s.freeSlots)-1]

	id := s.nextID
	s.nextID++

	s.records[idx].header = Header{ID: id, Extrapolation: 0, PointCount: 0, State: StateNormal}
	s.records[idx].points.Clear()
	s.liveMap[id] = idx

	return id, nil
}

// DeleteTrack clears the slot's header and buffer, removes the mapping,
// and returns the slot to the free list.
func (s *Store) DeleteTrack(id uint32) error {
	idx, ok := s.liveMap[id]
	if !ok {
		return ErrUnknownID
	}

	s.records[idx].reset()
	delete(s.liveMap, id)
	s.freeSlots = append(s.freeSlots, idx)

	return nil
}

// PushPoint appends point to the track's latest-K buffer and advances its
// extrapolation state machine. A return of ErrTerminated means the track
// no longer exists once the call returns.
func (s *Store) PushPoint(id uint32, point Point) error {
	idx, ok := s.liveMap[id]
	if !ok {
		return ErrUnknownID
	}
	rec := &s.records[idx]

	if rec.header.State == StateTerminated {
		// Reconciles an entry that somehow observed state==TERMINATED
		// without having been resolved to FREE within the operation
		// that set it; always clean up here rather than leave it.
		_ = s.DeleteTrack(id)
		return ErrTerminated
	}

	rec.points.Push(point)
	rec.header.PointCount = uint32(rec.points.Size())

	switch {
	case point.Associated:
		if rec.header.Extrapolation > 0 {
			rec.header.Extrapolation--
		}
		rec.header.State = StateNormal
		return nil
	case rec.header.Extrapolation < MaxExtrapolation:
		rec.header.Extrapolation++
		rec.header.State = StateExtrapolated
		return nil
	default:
		rec.header.State = StateTerminated
		_ = s.DeleteTrack(id)
		return ErrTerminated
	}
}

// MergeTracks grafts source's most recent MaxExtrapolation points onto
// target's buffer (overwriting target's own trailing points), carries
// source's extrapolation/state bookkeeping onto the surviving record, and
// releases source. The surviving id is target's original id. Fails with
// ErrUnknownID if either id is unknown, or ErrInsufficientPoints if either
// track holds fewer than MaxExtrapolation points.
func (s *Store) MergeTracks(sourceID, targetID uint32) error {
	srcIdx, ok := s.liveMap[sourceID]
	if !ok {
		return ErrUnknownID
	}
	tgtIdx, ok := s.liveMap[targetID]
	if !ok {
		return ErrUnknownID
	}

	src := &s.records[srcIdx]
	tgt := &s.records[tgtIdx]

	if src.points.Size() < MaxExtrapolation || tgt.points.Size() < MaxExtrapolation {
		return ErrInsufficientPoints
	}

	tgtSize := tgt.points.Size()
	srcSize := src.points.Size()
	for i := 0; i < MaxExtrapolation; i++ {
		pt := src.points.At(srcSize - MaxExtrapolation + i)
		tgt.points.Set(tgtSize-MaxExtrapolation+i, pt)
	}

	tgt.header.Extrapolation = src.header.Extrapolation
	tgt.header.State = src.header.State
	// ID and PointCount are intentionally left as target's own: the
	// buffer's size didn't change, only its trailing contents did, and
	// the surviving identifier is target's by contract.

	return s.DeleteTrack(sourceID)
}

// PackTrack writes the header immediately followed by every currently
// retained point into dest. dest must hold at least
// HeaderWireSize() + pointCapacity*WireSize() bytes; returns 0 if id is
// unknown.
func (s *Store) PackTrack(id uint32, dest []byte) int {
	idx, ok := s.liveMap[id]
	if !ok {
		return 0
	}
	rec := &s.records[idx]

	w := &byteWriter{buf: dest}
	if err := rec.header.Encode(w); err != nil {
		return 0
	}

	points := make([]Point, rec.points.Size())
	rec.points.CopyTo(points)
	for _, p := range points {
		if err := p.Encode(w); err != nil {
			break
		}
	}

	return w.n
}

// ClearAll resets every slot, rebuilds the free list, and resets the
// next-id counter to 1 — the post-construction state.
func (s *Store) ClearAll() {
	for i := range s.records {
		s.records[i].reset()
	}
	s.liveMap = make(map[uint32]int, len(s.records))
	s.freeSlots = s.freeSlots[:0]
	for i := len(s.records) - 1; i >= 0; i-- {
		s.freeSlots = append(s.freeSlots, i)
	}
	s.nextID = 1
}

// TotalCapacity returns the fixed number of slots the store was
// constructed with.
func (s *Store) TotalCapacity() int { return len(s.records) }

// UsedCount returns the number of currently live tracks.
func (s *Store) UsedCount() int { return len(s.liveMap) }

// NextID returns the id that will be assigned by the next CreateTrack
// call, for diagnostics.
func (s *Store) NextID() uint32 { return s.nextID }

// IsValid reports whether id currently resolves to a live track.
func (s *Store) IsValid(id uint32) bool {
	_, ok := s.liveMap[id]
	return ok
}

// ListActiveIDs returns a snapshot of every currently live track id.
func (s *Store) ListActiveIDs() []uint32 {
	ids := make([]uint32, 0, len(s.liveMap))
	for id := range s.liveMap {
		ids = append(ids, id)
	}
	return ids
}

// BorrowHeader returns a copy of id's header. The returned value is a
// snapshot; it does not track later mutations.
func (s *Store) BorrowHeader(id uint32) (Header, bool) {
	idx, ok := s.liveMap[id]
	if !ok {
		return Header{}, false
	}
	return s.records[idx].header, true
}

// BorrowPoints copies id's currently retained points into a freshly
// allocated slice, oldest first.
func (s *Store) BorrowPoints(id uint32) ([]Point, bool) {
	idx, ok := s.liveMap[id]
	if !ok {
		return nil, false
	}
	pts := make([]Point, s.records[idx].points.Size())
	s.records[idx].points.CopyTo(pts)
	return pts, true
}

// byteWriter is an io.Writer over a fixed destination slice that tracks
// how many bytes have been written, used by PackTrack to avoid an
// intermediate bytes.Buffer allocation.
type byteWriter struct {
	buf []byte
	n   int
}

func (w *byteWriter) Write(p []byte) (int, error) {
	if w.n+len(p) > len(w.buf) {
		n := copy(w.buf[w.n:], p)
		w.n += n
		return n, nil
	}
	copy(w.buf[w.n:w.n+len(p)], p)
	w.n += len(p)
	return len(p), nil
}
