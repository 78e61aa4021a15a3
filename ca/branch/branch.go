// Package branch implements the in-progress track candidate and the
// winner-take-all competition between candidates that share hits
// (spec.md §3 Branch, §4.4d DoCompetitionLoop).
package branch

import "github.com/cbm-reco/catrack/ca/pars"

// Branch is an in-progress track candidate: an ordered run of window-
// local hit indices, grown by DFS over linked triplets (spec.md §3).
type Branch struct {
	Hits         []int32
	StartStation int32
	Chi2         float64
	ID           int // the branch's own index in the shared Pool
	IsAlive      bool
}

// NHits is the number of hits currently owned by the branch.
func (b *Branch) NHits() int { return len(b.Hits) }

// IsBetterThan orders two branches by spec.md §3: more hits wins; tied
// on hits, the branch starting on the lower (more upstream) station
// wins; tied on both, the lower chi2 wins.
func (a *Branch) IsBetterThan(b *Branch) bool {
	if a.NHits() != b.NHits() {
		return a.NHits() > b.NHits()
	}
	if a.StartStation != b.StartStation {
		return a.StartStation < b.StartStation
	}
	return a.Chi2 <= b.Chi2
}

// Pool is the shared candidate pool for one CA pass (spec.md §4.4d): a
// flat array of Branches, indexed by their own Id, plus the per-key
// claim table used by the competition loop.
type Pool struct {
	branches []Branch
	claimed  []int32 // claimed[key] = branch id currently holding key, or -1
}

// NewPool returns an empty Pool sized for nHitKeys.
func NewPool(nHitKeys int) *Pool {
	p := &Pool{claimed: make([]int32, nHitKeys)}
	for i := range p.claimed {
		p.claimed[i] = -1
	}
	return p
}

// Reset clears the pool's branches and claim table for a new CA pass,
// retaining the backing arrays (spec.md §5 "reserved once and reused").
func (p *Pool) Reset() {
	p.branches = p.branches[:0]
	for i := range p.claimed {
		p.claimed[i] = -1
	}
}

// Push appends a new, initially dead candidate to the pool and returns
// its Id (spec.md §4.4d "Push each survivor into a shared candidate
// pool marked IsAlive=false").
func (p *Pool) Push(hits []int32, startStation int32, chi2 float64) int {
	id := len(p.branches)
	p.branches = append(p.branches, Branch{
		Hits:         append([]int32(nil), hits...),
		StartStation: startStation,
		Chi2:         chi2,
		ID:           id,
		IsAlive:      false,
	})
	return id
}

// Branches exposes the pool's candidates by index.
func (p *Pool) Branches() []Branch { return p.branches }

// Branch returns a pointer to the candidate with the given id.
func (p *Pool) Branch(id int) *Branch { return &p.branches[id] }

// keysOf returns the two hit-keys (front/back) every hit in the branch
// needs to claim, deduplicated is not necessary: claiming is idempotent.
func keysOf(hits []pars.Hit, branch *Branch) []int32 {
	keys := make([]int32, 0, 2*len(branch.Hits))
	for _, h := range branch.Hits {
		keys = append(keys, hits[h].FrontKey, hits[h].BackKey)
	}
	return keys
}

// DoCompetitionLoop resolves hit-sharing between candidates by repeated
// claim/verify passes, up to pars.CompetitionLoopMaxPasses, after which
// it returns regardless of convergence (spec.md §4.4d, §9 "preserve [the
// 100-pass bound] as a termination guarantee rather than optimising it
// away"). hits is the window's local hit array (for FrontKey/BackKey).
func (p *Pool) DoCompetitionLoop(hits []pars.Hit) {
	for pass := 0; pass < pars.CompetitionLoopMaxPasses; pass++ {
		changed := false

		for i := range p.branches {
			b := &p.branches[i]
			if b.IsAlive {
				continue
			}
			for _, k := range keysOf(hits, b) {
				holder := p.claimed[k]
				if holder == -1 {
					p.claimed[k] = int32(b.ID)
					changed = true
					continue
				}
				if holder == int32(b.ID) {
					continue
				}
				other := &p.branches[holder]
				if other.IsAlive {
					continue
				}
				if b.IsBetterThan(other) {
					p.claimed[k] = int32(b.ID)
					changed = true
				}
			}
		}

		promoted := false
		for i := range p.branches {
			b := &p.branches[i]
			if b.IsAlive {
				continue
			}
			owns := true
			for _, k := range keysOf(hits, b) {
				if p.claimed[k] != int32(b.ID) {
					owns = false
					break
				}
			}
			if owns {
				b.IsAlive = true
				promoted = true
			}
		}

		if !changed && !promoted {
			return
		}
	}
}
