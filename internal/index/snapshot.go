package index

import (
	"slices"
	"strings"
)

// Posting is one (term, field, frequency) triple of a document.
type Posting struct {
	Term  string
	Field Field
	TF    uint32
}

// SnapshotDocument is a document in exported form.
type SnapshotDocument struct {
	Ref      DocumentRef
	Postings []Posting
}

// Snapshot is the serializable form of the index. Restoring it skips
// tokenization.
type Snapshot struct {
	NextID    int64
	Documents []SnapshotDocument
}

// Snapshot exports the current index, documents sorted by path.
func (ix *Index) Snapshot() Snapshot {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	snap := Snapshot{
		NextID:    ix.nextID.Load(),
		Documents: make([]SnapshotDocument, 0, len(ix.st.byPath)),
	}
	for _, e := range ix.st.byPath {
		doc := SnapshotDocument{Ref: e.ref}
		for term, ff := range e.terms {
			for f, tf := range ff {
				if tf > 0 {
					doc.Postings = append(doc.Postings, Posting{Term: term, Field: Field(f), TF: tf})
				}
			}
		}
		slices.SortFunc(doc.Postings, func(a, b Posting) int {
			if c := strings.Compare(a.Term, b.Term); c != 0 {
				return c
			}
			return int(a.Field) - int(b.Field)
		})
		snap.Documents = append(snap.Documents, doc)
	}
	slices.SortFunc(snap.Documents, func(a, b SnapshotDocument) int {
		return strings.Compare(a.Ref.Path, b.Ref.Path)
	})
	return snap
}

// Restore replaces the index with snap and marks it ready. Like
// ReindexAll, it supersedes any rebuild still in flight.
func (ix *Index) Restore(snap Snapshot) {
	st := newState()
	maxID := snap.NextID
	for _, doc := range snap.Documents {
		maxID = max(maxID, doc.Ref.ID)
		e := &docEntry{ref: doc.Ref, terms: make(map[string]fieldFreqs)}
		for _, p := range doc.Postings {
			if p.Field >= numFields || p.TF == 0 {
				continue
			}
			ff := e.terms[p.Term]
			ff[p.Field] += p.TF
			e.terms[p.Term] = ff
		}
		st.add(e)
	}

	ix.generation.Add(1)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	for {
		cur := ix.nextID.Load()
		if cur >= maxID || ix.nextID.CompareAndSwap(cur, maxID) {
			break
		}
	}
	// Ops journaled so far predate the snapshot's replacement of the index.
	ix.commit(st, ix.opSeq)
}
