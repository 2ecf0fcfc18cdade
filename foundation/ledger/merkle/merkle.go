// Package merkle provides merkle root construction, inclusion proofs and
// proof verification for sealed blocks. The tree is never materialized:
// roots and proofs are computed level by level from an ordered leaf list,
// and an Engine caches results per block so repeated verification of the
// same block doesn't recompute the tree.
package merkle

import (
	"fmt"
	"strings"
	"sync"

	"github.com/minibank/ledger/foundation/ledger/signature"
)

// maxProofCacheEntries caps the number of proofs the engine will hold.
// Once the cap is reached proofs are still computed and returned, just
// not cached.
const maxProofCacheEntries = 10_000

// ProofStep is one level of an inclusion proof: the sibling hash and the
// side it occupies in the pairing. Right means the sibling is the second
// operand of the concatenation.
type ProofStep struct {
	Hash  string `json:"hash"`
	Right bool   `json:"right"`
}

// =============================================================================

// BuildRoot computes the merkle root over the ordered leaf list. Each leaf
// is hashed, adjacent hashes are paired left-to-right and an odd level
// duplicates its last hash (a single leaf pairs with itself). An empty
// list yields the empty root. Permuting the leaves changes the root.
func BuildRoot(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}

	level := hashLeaves(leaves)
	if len(level)%2 == 1 {
		level = append(level, level[len(level)-1])
	}

	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, signature.HashString(left+right))
		}
		level = next
	}

	return level[0]
}

// GenerateProof produces the inclusion proof for the leaf against the
// ordered leaf list, recording the sibling hash and side at each level.
// A leaf not present in the list yields an empty proof.
func GenerateProof(leaf string, leaves []string) []ProofStep {
	if len(leaves) == 0 {
		return nil
	}

	level := hashLeaves(leaves)
	leafHash := signature.HashString(leaf)

	index := -1
	for i, h := range level {
		if h == leafHash {
			index = i
			break
		}
	}
	if index == -1 {
		return nil
	}

	if len(level)%2 == 1 {
		level = append(level, level[len(level)-1])
	}

	var proof []ProofStep
	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}

			switch index {
			case i:
				proof = append(proof, ProofStep{Hash: right, Right: true})
			case i + 1:
				proof = append(proof, ProofStep{Hash: left, Right: false})
			}

			next = append(next, signature.HashString(left+right))
		}
		level = next
		index /= 2
	}

	return proof
}

// VerifyProof folds the proof over the hashed leaf and compares the result
// to the expected root. An empty proof is always invalid. Verification
// never fails with an error; any inconsistency reports false.
func VerifyProof(leaf string, proof []ProofStep, root string) bool {
	if len(proof) == 0 || root == "" {
		return false
	}

	current := signature.HashString(leaf)
	for _, step := range proof {
		if step.Right {
			current = signature.HashString(current + step.Hash)
		} else {
			current = signature.HashString(step.Hash + current)
		}
	}

	return current == root
}

// hashLeaves hashes every leaf value to form the bottom level of the tree.
func hashLeaves(leaves []string) []string {
	level := make([]string, len(leaves))
	for i, leaf := range leaves {
		level[i] = signature.HashString(leaf)
	}
	return level
}

// =============================================================================

// EncodeProof serializes a proof to the comma separated L:/R: form stored
// on transactions linked into a block.
func EncodeProof(proof []ProofStep) string {
	parts := make([]string, len(proof))
	for i, step := range proof {
		side := "L"
		if step.Right {
			side = "R"
		}
		parts[i] = side + ":" + step.Hash
	}
	return strings.Join(parts, ",")
}

// DecodeProof parses the serialized form produced by EncodeProof.
func DecodeProof(s string) ([]ProofStep, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	proof := make([]ProofStep, len(parts))
	for i, part := range parts {
		side, hash, ok := strings.Cut(part, ":")
		if !ok || (side != "L" && side != "R") {
			return nil, fmt.Errorf("malformed proof step %q", part)
		}
		proof[i] = ProofStep{Hash: hash, Right: side == "R"}
	}

	return proof, nil
}

// =============================================================================

// Stats reports the current cache sizes of an engine.
type Stats struct {
	Roots  int
	Proofs int
}

// Engine computes roots and proofs with per-block caching. Construct one
// per service instance and inject it; it carries no global state and can
// be cleared at any time.
type Engine struct {
	mu     sync.RWMutex
	roots  map[string]string
	counts map[string]int
	proofs map[string][]ProofStep
}

// New constructs an engine with empty caches.
func New() *Engine {
	return &Engine{
		roots:  make(map[string]string),
		counts: make(map[string]int),
		proofs: make(map[string][]ProofStep),
	}
}

// Root returns the merkle root for the block key, computing and caching it
// from the leaves on first use.
func (e *Engine) Root(blockKey string, leaves []string) string {
	e.mu.RLock()
	root, exists := e.roots[blockKey]
	e.mu.RUnlock()
	if exists {
		return root
	}

	root = BuildRoot(leaves)

	e.mu.Lock()
	e.roots[blockKey] = root
	e.counts[blockKey] = len(leaves)
	e.mu.Unlock()

	return root
}

// Proof returns the inclusion proof for the leaf within the block,
// caching it while the proof cache is under its cap.
func (e *Engine) Proof(blockKey string, leaf string, leaves []string) []ProofStep {
	key := blockKey + ":" + signature.HashString(leaf)

	e.mu.RLock()
	proof, exists := e.proofs[key]
	e.mu.RUnlock()
	if exists {
		return proof
	}

	proof = GenerateProof(leaf, leaves)

	e.mu.Lock()
	if len(e.proofs) < maxProofCacheEntries {
		e.proofs[key] = proof
	}
	e.mu.Unlock()

	return proof
}

// Verify checks the leaf's proof against the block's root, computing the
// root from the leaves if it isn't cached.
func (e *Engine) Verify(blockKey string, leaf string, proof []ProofStep, leaves []string) bool {
	return VerifyProof(leaf, proof, e.Root(blockKey, leaves))
}

// VerifyBlockIntegrity reports whether the cached root for the block still
// matches a root recomputed from the leaves. An unknown block reports false.
func (e *Engine) VerifyBlockIntegrity(blockKey string, leaves []string) bool {
	e.mu.RLock()
	root, exists := e.roots[blockKey]
	e.mu.RUnlock()
	if !exists {
		return false
	}

	return root == BuildRoot(leaves)
}

// TransactionCount returns the number of leaves recorded for the block key.
func (e *Engine) TransactionCount(blockKey string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.counts[blockKey]
}

// Invalidate drops the cached root, count and proofs for one block key.
// A seal attempt that fails after computing its root must invalidate, or
// a retry over a changed batch would reuse the stale root.
func (e *Engine) Invalidate(blockKey string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.roots, blockKey)
	delete(e.counts, blockKey)

	prefix := blockKey + ":"
	for key := range e.proofs {
		if strings.HasPrefix(key, prefix) {
			delete(e.proofs, key)
		}
	}
}

// Clear drops all cached roots and proofs.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.roots = make(map[string]string)
	e.counts = make(map[string]int)
	e.proofs = make(map[string][]ProofStep)
}

// CacheStats reports the current cache sizes.
func (e *Engine) CacheStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Stats{Roots: len(e.roots), Proofs: len(e.proofs)}
}
