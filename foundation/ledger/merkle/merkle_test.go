package merkle_test

import (
	"fmt"
	"testing"

	"github.com/minibank/ledger/foundation/ledger/merkle"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_ProofRoundTrip(t *testing.T) {
	tt := []struct {
		name   string
		leaves []string
	}{
		{name: "single", leaves: []string{"tx-a"}},
		{name: "even", leaves: []string{"tx-a", "tx-b", "tx-c", "tx-d"}},
		{name: "odd", leaves: []string{"tx-a", "tx-b", "tx-c", "tx-d", "tx-e"}},
		{name: "large", leaves: manyLeaves(33)},
	}

	t.Log("Given the need to validate proofs verify for every leaf of a tree.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a tree of %d leaves.", testID, len(tst.leaves))
			{
				f := func(t *testing.T) {
					root := merkle.BuildRoot(tst.leaves)
					if root == "" {
						t.Fatalf("\t%s\tTest %d:\tShould be able to build a root.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to build a root.", success, testID)

					for _, leaf := range tst.leaves {
						proof := merkle.GenerateProof(leaf, tst.leaves)
						if len(proof) == 0 {
							t.Fatalf("\t%s\tTest %d:\tShould be able to generate a proof for leaf %q.", failed, testID, leaf)
						}

						if !merkle.VerifyProof(leaf, proof, root) {
							t.Errorf("\t%s\tTest %d:\tShould be able to verify the proof for leaf %q.", failed, testID, leaf)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould be able to verify the proof for every leaf.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_ProofRejections(t *testing.T) {
	leaves := []string{"tx-a", "tx-b", "tx-c", "tx-d"}

	t.Log("Given the need to validate bad proofs are rejected.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handling tampered and foreign leaves.", testID)
		{
			root := merkle.BuildRoot(leaves)
			proof := merkle.GenerateProof("tx-a", leaves)

			if merkle.VerifyProof("tx-tampered", proof, root) {
				t.Errorf("\t%s\tTest %d:\tShould reject a tampered leaf.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould reject a tampered leaf.", success, testID)
			}

			if merkle.VerifyProof("tx-a", nil, root) {
				t.Errorf("\t%s\tTest %d:\tShould reject an empty proof.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould reject an empty proof.", success, testID)
			}

			if merkle.VerifyProof("tx-a", proof, "") {
				t.Errorf("\t%s\tTest %d:\tShould reject an empty root.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould reject an empty root.", success, testID)
			}

			if len(merkle.GenerateProof("tx-z", leaves)) != 0 {
				t.Errorf("\t%s\tTest %d:\tShould return no proof for an unknown leaf.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould return no proof for an unknown leaf.", success, testID)
			}
		}
	}
}

func Test_RootProperties(t *testing.T) {
	t.Log("Given the need to validate root construction properties.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen comparing roots over different leaf lists.", testID)
		{
			if merkle.BuildRoot(nil) != "" {
				t.Errorf("\t%s\tTest %d:\tShould produce the empty root for no leaves.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould produce the empty root for no leaves.", success, testID)
			}

			a := merkle.BuildRoot([]string{"tx-a", "tx-b", "tx-c"})
			b := merkle.BuildRoot([]string{"tx-b", "tx-a", "tx-c"})
			if a == b {
				t.Errorf("\t%s\tTest %d:\tShould produce different roots for permuted leaves.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould produce different roots for permuted leaves.", success, testID)
			}

			c := merkle.BuildRoot([]string{"tx-a", "tx-b", "tx-c"})
			if a != c {
				t.Errorf("\t%s\tTest %d:\tShould produce the same root for the same leaves.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould produce the same root for the same leaves.", success, testID)
			}
		}
	}
}

func Test_ProofSerialization(t *testing.T) {
	leaves := []string{"tx-a", "tx-b", "tx-c", "tx-d", "tx-e"}

	t.Log("Given the need to validate proofs survive serialization.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen encoding and decoding a proof.", testID)
		{
			root := merkle.BuildRoot(leaves)
			proof := merkle.GenerateProof("tx-d", leaves)

			encoded := merkle.EncodeProof(proof)
			decoded, err := merkle.DecodeProof(encoded)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to decode the proof: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to decode the proof.", success, testID)

			if !merkle.VerifyProof("tx-d", decoded, root) {
				t.Errorf("\t%s\tTest %d:\tShould verify the decoded proof.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould verify the decoded proof.", success, testID)
			}

			if _, err := merkle.DecodeProof("X:deadbeef"); err == nil {
				t.Errorf("\t%s\tTest %d:\tShould reject a malformed side marker.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould reject a malformed side marker.", success, testID)
			}
		}
	}
}

func Test_EngineCaching(t *testing.T) {
	leaves := []string{"tx-a", "tx-b", "tx-c", "tx-d"}

	t.Log("Given the need to validate the engine caches per block.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen computing roots and proofs through the engine.", testID)
		{
			engine := merkle.New()

			root := engine.Root("block-1", leaves)
			if root != merkle.BuildRoot(leaves) {
				t.Fatalf("\t%s\tTest %d:\tShould compute the same root as the direct build.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould compute the same root as the direct build.", success, testID)

			// A cached root is returned even if different leaves are handed in.
			if engine.Root("block-1", leaves[:2]) != root {
				t.Errorf("\t%s\tTest %d:\tShould serve the cached root for a known block.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould serve the cached root for a known block.", success, testID)
			}

			proof := engine.Proof("block-1", "tx-c", leaves)
			if !engine.Verify("block-1", "tx-c", proof, leaves) {
				t.Errorf("\t%s\tTest %d:\tShould verify a proof through the engine.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould verify a proof through the engine.", success, testID)
			}

			if !engine.VerifyBlockIntegrity("block-1", leaves) {
				t.Errorf("\t%s\tTest %d:\tShould report integrity for unchanged leaves.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould report integrity for unchanged leaves.", success, testID)
			}

			if engine.VerifyBlockIntegrity("block-1", []string{"tx-a", "tx-b", "tx-x", "tx-d"}) {
				t.Errorf("\t%s\tTest %d:\tShould report corruption for changed leaves.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould report corruption for changed leaves.", success, testID)
			}

			if engine.TransactionCount("block-1") != len(leaves) {
				t.Errorf("\t%s\tTest %d:\tShould track the leaf count for the block.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould track the leaf count for the block.", success, testID)
			}

			stats := engine.CacheStats()
			if stats.Roots != 1 || stats.Proofs != 1 {
				t.Errorf("\t%s\tTest %d:\tShould report cache stats of 1 root and 1 proof, got %+v.", failed, testID, stats)
			} else {
				t.Logf("\t%s\tTest %d:\tShould report cache stats of 1 root and 1 proof.", success, testID)
			}

			engine.Clear()
			stats = engine.CacheStats()
			if stats.Roots != 0 || stats.Proofs != 0 {
				t.Errorf("\t%s\tTest %d:\tShould report empty caches after a clear.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould report empty caches after a clear.", success, testID)
			}
		}
	}
}

func Test_EngineInvalidation(t *testing.T) {
	t.Log("Given the need to validate invalidation drops one block's cached tree.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a block is recomputed over a changed leaf set.", testID)
		{
			engine := merkle.New()

			first := []string{"tx-a"}
			grown := []string{"tx-a", "tx-b"}

			stale := engine.Root("block-1", first)
			engine.Proof("block-1", "tx-a", first)

			// Without invalidation the grown set would still get the
			// cached root.
			if engine.Root("block-1", grown) != stale {
				t.Fatalf("\t%s\tTest %d:\tShould serve the cached root before invalidation.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould serve the cached root before invalidation.", success, testID)

			engine.Invalidate("block-1")

			root := engine.Root("block-1", grown)
			if root == stale || root != merkle.BuildRoot(grown) {
				t.Fatalf("\t%s\tTest %d:\tShould recompute the root after invalidation.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould recompute the root after invalidation.", success, testID)

			for _, leaf := range grown {
				proof := engine.Proof("block-1", leaf, grown)
				if !merkle.VerifyProof(leaf, proof, root) {
					t.Errorf("\t%s\tTest %d:\tShould verify the proof for leaf %q against the new root.", failed, testID, leaf)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould verify every proof against the new root.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen other blocks are cached alongside.", testID)
		{
			engine := merkle.New()

			kept := engine.Root("block-1", []string{"tx-a", "tx-b"})
			engine.Proof("block-1", "tx-a", []string{"tx-a", "tx-b"})
			engine.Root("block-2", []string{"tx-c"})
			engine.Proof("block-2", "tx-c", []string{"tx-c"})

			engine.Invalidate("block-2")

			stats := engine.CacheStats()
			if stats.Roots != 1 || stats.Proofs != 1 {
				t.Errorf("\t%s\tTest %d:\tShould keep the other block's cache, got %+v.", failed, testID, stats)
			} else {
				t.Logf("\t%s\tTest %d:\tShould keep the other block's cache.", success, testID)
			}

			if engine.Root("block-1", nil) != kept {
				t.Errorf("\t%s\tTest %d:\tShould still serve the untouched block's root.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould still serve the untouched block's root.", success, testID)
			}
		}
	}
}

// =============================================================================

func manyLeaves(n int) []string {
	leaves := make([]string, n)
	for i := range leaves {
		leaves[i] = fmt.Sprintf("tx-%04d", i)
	}
	return leaves
}
