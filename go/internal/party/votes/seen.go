package votes

// SeenSet remembers the most recent ballot ids so redelivered votes can be dropped.
// Memory is bounded; the oldest ids are forgotten first.
type SeenSet struct {
	ids   map[string]struct{}
	order []string
	limit int
}

// NewSeenSet creates a set remembering up to limit ids
func NewSeenSet(limit int) *SeenSet {
	if limit < 1 {
		limit = 256
	}
	return &SeenSet{ids: make(map[string]struct{}, limit), limit: limit}
}

// Add records id and reports whether it was new
func (s *SeenSet) Add(id string) bool {
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.ids, oldest)
	}
	return true
}
