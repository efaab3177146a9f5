package detection

import "sync"

// Session aggregates detections across the frames of one video or realtime
// capture. Only two things survive a session: the single best detection seen
// across all frames (the basis of the downstream sighting record) and a
// reference to the first frame that produced any detection at all (used once
// for condition classification).
type Session struct {
	mu sync.Mutex

	best          *RawDetection
	bestFrame     string
	firstFrame    string
	hasFirst      bool
	framesSeen    int
	framesWithHit int
}

// NewSession creates an empty aggregation session.
func NewSession() *Session {
	return &Session{}
}

// AddFrame feeds one frame's raw detections into the session. frameRef
// identifies the frame (stored filename); it is retained only for the first
// non-empty frame and the frame carrying the best detection.
func (s *Session) AddFrame(frameRef string, raw []RawDetection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.framesSeen++
	if len(raw) == 0 {
		return
	}
	s.framesWithHit++

	if !s.hasFirst {
		s.firstFrame = frameRef
		s.hasFirst = true
	}

	for i := range raw {
		if s.best == nil || raw[i].Confidence > s.best.Confidence {
			d := raw[i]
			s.best = &d
			s.bestFrame = frameRef
		}
	}
}

// Best returns the highest-confidence detection seen across the session and
// the frame it came from. Returns nil when no frame produced a detection.
func (s *Session) Best() (*RawDetection, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.best == nil {
		return nil, ""
	}
	d := *s.best
	return &d, s.bestFrame
}

// FirstFrame returns the reference to the first frame that produced a
// non-empty detection result, and whether any frame did.
func (s *Session) FirstFrame() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstFrame, s.hasFirst
}

// FrameCount returns how many frames were fed into the session and how many
// of them produced at least one detection.
func (s *Session) FrameCount() (seen, withDetections int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.framesSeen, s.framesWithHit
}
