package index

// fieldFreqs holds a term's frequency in each field of one document.
type fieldFreqs [numFields]uint32

// docEntry is the indexed form of one document.
type docEntry struct {
	ref   DocumentRef
	terms map[string]fieldFreqs
}

// state is one complete generation of the index. Postings always mirror
// the term maps of docs exactly.
type state struct {
	byPath   map[string]*docEntry
	byID     map[int64]*docEntry
	postings map[string]map[int64]fieldFreqs
}

func newState() *state {
	return &state{
		byPath:   make(map[string]*docEntry),
		byID:     make(map[int64]*docEntry),
		postings: make(map[string]map[int64]fieldFreqs),
	}
}

func (s *state) add(e *docEntry) {
	s.remove(e.ref.Path)
	s.byPath[e.ref.Path] = e
	s.byID[e.ref.ID] = e
	for term, ff := range e.terms {
		plist, ok := s.postings[term]
		if !ok {
			plist = make(map[int64]fieldFreqs)
			s.postings[term] = plist
		}
		plist[e.ref.ID] = ff
	}
}

// remove deletes path and its postings. It reports whether path existed.
func (s *state) remove(path string) bool {
	e, ok := s.byPath[path]
	if !ok {
		return false
	}
	for term := range e.terms {
		plist := s.postings[term]
		delete(plist, e.ref.ID)
		if len(plist) == 0 {
			delete(s.postings, term)
		}
	}
	delete(s.byPath, path)
	delete(s.byID, e.ref.ID)
	return true
}

// op is a mutation recorded while a full rebuild is in flight.
type op struct {
	seq    uint64
	entry  *docEntry // nil means remove
	remove string
}

func (s *state) apply(o op) {
	if o.entry == nil {
		s.remove(o.remove)
		return
	}
	s.add(o.entry)
}
