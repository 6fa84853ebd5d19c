package media

import (
	"log"
	"os"
)

// scratch tracks intermediate files written next to a source so they can
// be removed on every exit path with a single deferred cleanup.
type scratch struct {
	paths []string
}

func (s *scratch) track(path string) string {
	s.paths = append(s.paths, path)
	return path
}

func (s *scratch) cleanup() {
	for _, p := range s.paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Printf("thumbnail: failed to remove temp file %s: %v", p, err)
		}
	}
	s.paths = nil
}
