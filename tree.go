package xmss

// tree.go implements the Merkle tree over WOTS+ public keys: leaf
// derivation, recursive node computation, the root, and authentication
// path extraction, per spec section 4.4 and 4.5. It generalizes the
// teacher's core.go (lTree/genLeaf/getWotsSeed) and api.go's recursive
// subtree-root logic, dropping the teacher's l-tree reduction (an
// artifact of RFC8391's WOTS+ address layer) in favor of this scheme's
// simpler leaf: a single hash over the concatenated WOTS+ public chain
// tails.

// Leaf computes the Merkle leaf for the WOTS+ key pair at the given
// index: the public chain tails derived from masterSeed, hashed
// together. The secret chain heads are SecureZero'd before return, per
// spec section 4.8's memory discipline.
func Leaf(p *Params, masterSeed []byte, index uint32) []byte {
	skChains := DeriveWotsSK(p, masterSeed, index)
	pkChains := WotsPkGen(p, skChains)
	for _, c := range skChains {
		secureZero(c)
	}
	return leafFromPk(pkChains)
}

// leafFromPk hashes a set of WOTS+ public chain tails down to a single
// leaf value, the step both Leaf (signing side) and Verify (verification
// side, reconstructing the tails from a signature) share.
func leafFromPk(pkChains [][]byte) []byte {
	buf := make([]byte, len(pkChains)*N)
	for i, c := range pkChains {
		copy(buf[i*N:(i+1)*N], c)
	}
	leaf := hash(buf, N)
	secureZero(buf)
	return leaf
}

// Node recursively computes the node at (height, index) in the Merkle
// tree rooted over 2^H leaves: height 0 is a leaf, and node(h,i) for
// h>0 is hash(node(h-1,2i) || node(h-1,2i+1)), per spec section 4.4.
//
// cache may be nil. When non-nil, it is consulted before recursing and
// populated with every node computed along the way, letting repeated
// calls (as during authentication-path generation) amortize the cost
// of recomputing a large subtree from scratch.
func Node(p *Params, masterSeed []byte, height, index uint32, cache *NodeCache) []byte {
	if cache != nil {
		if n, ok := cache.Get(height, index); ok {
			return n
		}
	}

	var node []byte
	if height == 0 {
		node = Leaf(p, masterSeed, index)
	} else {
		left := Node(p, masterSeed, height-1, 2*index, cache)
		right := Node(p, masterSeed, height-1, 2*index+1, cache)
		node = hashConcatInto(left, right)
	}

	if cache != nil {
		cache.Put(height, index, node)
	}
	return node
}

// Root computes the Merkle root over all 2^H leaves.
func Root(p *Params, masterSeed []byte, cache *NodeCache) []byte {
	return Node(p, masterSeed, p.H, 0, cache)
}

// AuthPath computes the authentication path for the leaf at index: the
// H sibling nodes on the path from that leaf to the root, ordered from
// the leaf upward, per spec section 4.5.
func AuthPath(p *Params, masterSeed []byte, index uint32, cache *NodeCache) [][]byte {
	path := make([][]byte, p.H)
	idx := index
	for height := uint32(0); height < p.H; height++ {
		sibling := idx ^ 1
		path[height] = Node(p, masterSeed, height, sibling, cache)
		idx >>= 1
	}
	return path
}

// RootFromAuthPath recomputes the root an authentication path and leaf
// imply, for verification: at each level, the running value and the
// path node are combined in the order their indices dictate.
func RootFromAuthPath(p *Params, leaf []byte, index uint32, path [][]byte) []byte {
	node := leaf
	idx := index
	for height := uint32(0); height < p.H; height++ {
		sibling := path[height]
		if idx&1 == 0 {
			node = hashConcatInto(node, sibling)
		} else {
			node = hashConcatInto(sibling, node)
		}
		idx >>= 1
	}
	return node
}
