package server

import (
	"slices"
	"sync"
)

// Song is a library record held by the fake library.
type Song struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	AlbumArtist string `json:"albumArtist,omitempty"`
	TrackNumber int    `json:"trackNumber,omitempty"`
	downloads   int
}

// Playlist is a user playlist; Entries are song ids and may repeat.
type Playlist struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Entries []string `json:"entries"`
}

type snapshot struct {
	songs     []Song
	playlists []Playlist
}

func (s snapshot) clone() snapshot {
	c := snapshot{
		songs:     slices.Clone(s.songs),
		playlists: make([]Playlist, len(s.playlists)),
	}
	for i, p := range s.playlists {
		p.Entries = slices.Clone(p.Entries)
		c.playlists[i] = p
	}
	return c
}

func (s *snapshot) song(id string) (int, bool) {
	i := slices.IndexFunc(s.songs, func(song Song) bool { return song.ID == id })
	return i, i >= 0
}

func (s *snapshot) playlist(id string) (int, bool) {
	i := slices.IndexFunc(s.playlists, func(p Playlist) bool { return p.ID == id })
	return i, i >= 0
}

// store keeps a committed state and a lagging visible state.
//
// After every write the next lag reads are served from the previous view;
// the read after that observes everything committed so far.
type store struct {
	mu        sync.Mutex
	lag       int
	stale     int
	committed snapshot
	visible   snapshot
}

func newStore(lag int) *store {
	return &store{lag: lag}
}

func (s *store) read(fn func(view snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stale > 0 {
		s.stale--
	} else {
		s.visible = s.committed.clone()
	}
	fn(s.visible)
}

// readCommitted bypasses the lag, for assertions in tests and for mutations' own lookups.
func (s *store) readCommitted(fn func(view snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.committed)
}

func (s *store) write(fn func(state *snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(&s.committed); err != nil {
		return err
	}
	s.stale = s.lag
	return nil
}

func (s *store) setLag(lag int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lag = lag
	if s.stale > lag {
		s.stale = lag
	}
}

// touch changes committed state without making readers stale.
func (s *store) touch(fn func(state *snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.committed)
}
