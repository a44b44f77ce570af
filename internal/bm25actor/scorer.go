package bm25actor

import (
	"math"
	"sort"

	"github.com/ploke-dev/rele/internal/store"
)

// docEntry is one document's tokenized state inside the scorer.
type docEntry struct {
	termFreq map[string]int
	length   int
}

// scorer is a classic BM25 postings index over an in-memory term->doc
// map. No library in the corpus exposes a standalone BM25 scorer callable
// outside of bleve's or SQLite FTS5's own index structures (both compute
// bm25() internally, never as a separable function over a caller-owned
// postings map), so this is a direct implementation of the textbook
// formula against stdlib data structures — the one part of bm25actor with
// no third-party grounding, justified above.
type scorer struct {
	cfg      store.BM25Config
	stopWords map[string]struct{}

	docs     map[store.NodeId]*docEntry
	postings map[string]map[store.NodeId]int // term -> docID -> freq
	totalLen int
	avgdl    float64
}

func newScorer(cfg store.BM25Config) *scorer {
	return &scorer{
		cfg:       cfg,
		stopWords: store.BuildStopWordMap(cfg.StopWords),
		docs:      make(map[store.NodeId]*docEntry),
		postings:  make(map[string]map[store.NodeId]int),
	}
}

func (s *scorer) tokenize(text string) []string {
	tokens := store.TokenizeCode(text)
	tokens = store.FilterStopWords(tokens, s.stopWords)
	filtered := tokens[:0]
	for _, t := range tokens {
		if len(t) >= s.cfg.MinTokenLength {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// upsert adds or replaces a document's postings. Callers must call
// recomputeAvgdl afterward before Search reflects the new average length.
func (s *scorer) upsert(id store.NodeId, symbolText, bodyText string) {
	s.remove(id)

	tokens := s.tokenize(symbolText + " " + bodyText)
	entry := &docEntry{termFreq: make(map[string]int), length: len(tokens)}
	for _, t := range tokens {
		entry.termFreq[t]++
	}
	s.docs[id] = entry
	s.totalLen += entry.length

	for term, freq := range entry.termFreq {
		bucket, ok := s.postings[term]
		if !ok {
			bucket = make(map[store.NodeId]int)
			s.postings[term] = bucket
		}
		bucket[id] = freq
	}
}

func (s *scorer) remove(id store.NodeId) {
	entry, ok := s.docs[id]
	if !ok {
		return
	}
	s.totalLen -= entry.length
	delete(s.docs, id)
	for term := range entry.termFreq {
		bucket := s.postings[term]
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(s.postings, term)
		}
	}
}

func (s *scorer) recomputeAvgdl() {
	if len(s.docs) == 0 {
		s.avgdl = 0
		return
	}
	s.avgdl = float64(s.totalLen) / float64(len(s.docs))
}

func (s *scorer) docCount() int { return len(s.docs) }

// search scores every document containing at least one query term and
// returns the top limit hits, descending by score.
func (s *scorer) search(query string, limit int) []SearchHit {
	queryTokens := s.tokenize(query)
	if len(queryTokens) == 0 || len(s.docs) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(queryTokens))
	var terms []string
	for _, t := range queryTokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}

	scores := make(map[store.NodeId]float64)
	n := float64(len(s.docs))
	avgdl := s.avgdl
	if avgdl == 0 {
		avgdl = 1
	}

	for _, term := range terms {
		bucket, ok := s.postings[term]
		if !ok {
			continue
		}
		nq := float64(len(bucket))
		idf := math.Log((n-nq+0.5)/(nq+0.5) + 1)
		for id, freq := range bucket {
			docLen := float64(s.docs[id].length)
			f := float64(freq)
			denom := f + s.cfg.K1*(1-s.cfg.B+s.cfg.B*docLen/avgdl)
			scores[id] += idf * (f * (s.cfg.K1 + 1)) / denom
		}
	}

	hits := make([]SearchHit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, SearchHit{ID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID.Less(hits[j].ID)
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

