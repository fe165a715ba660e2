package trie

import (
	"sort"

	"github.com/clusterauth/scope-engine/pkg/model"
)

// Node is one state of the recognizer. Children maps the next literal byte
// of a query to the state reached by consuming it. Star is always non-nil:
// it is the state reached when the query itself ends in a wildcard "*"
// character, and its End already accounts for every role reachable from
// this node, concrete or wildcard, so a wildcard query can stop here rather
// than walking the rest of the role ids it covers.
type Node struct {
	Children map[byte]*Node
	Star     *Node
	End      int
	Default  int
}

// Build sorts roles by role id, with '*' treated as sorting immediately
// before the character it would otherwise tie-break against, and builds a
// recognizer over the result. The returned Sets is what Node.End and
// Node.Default index into.
func Build(roles []model.Role) (*Node, *Sets) {
	ids := make([]string, len(roles))
	for i, r := range roles {
		ids[i] = r.RoleID
	}
	sort.Slice(ids, func(i, j int) bool { return roleLess(ids[i], ids[j]) })

	sets := newSets()
	root := build(ids, 0, len(ids), 0, sets, 0)
	return root, sets
}

// roleLess implements the dedicated role-id comparator: at the first byte
// two ids differ, a trailing '*' at that position sorts before anything
// else, including the other id simply ending there. This keeps a prefix
// role (e.g. "try*") immediately before the roles it was built to cover
// ("try", "try-more", ...), which is what lets build partition a sorted
// range by a single scan.
func roleLess(a, b string) bool {
	la, lb := len(a), len(b)
	n := la
	if lb < n {
		n = lb
	}
	for i := 0; i < n; i++ {
		ca, cb := a[i], b[i]
		if ca == cb {
			continue
		}
		aStar := ca == '*' && i == la-1
		bStar := cb == '*' && i == lb-1
		switch {
		case aStar && !bStar:
			return true
		case bStar && !aStar:
			return false
		default:
			return ca < cb
		}
	}
	if la == lb {
		return false
	}
	if la < lb {
		// a ends exactly here; b continues. b sorts first only if it is a's
		// own wildcard form (one char longer, trailing '*').
		if lb == la+1 && b[la] == '*' {
			return false
		}
		return true
	}
	if la == lb+1 && a[la-1] == '*' {
		return true
	}
	return false
}

// build constructs the node recognizing ids[lo:hi], all of which share the
// first depth bytes, given implied: the Sets index already matched by every
// role in this subtree from roles resolved at shallower depths (ancestor
// wildcard roles such as "a*" when this call is building the subtree under
// "a").
func build(ids []string, lo, hi, depth int, sets *Sets, implied int) *Node {
	if lo >= hi {
		return leaf(implied)
	}

	node := &Node{}
	rangeStart, rangeImplied := lo, implied

	// A role whose '*' sits exactly at this depth (e.g. "ab*" at depth 2)
	// applies to this entire subtree: fold it into implied before anything
	// else is decided.
	if len(ids[lo]) == depth+1 && ids[lo][depth] == '*' {
		implied = sets.pushLinked(ids[lo], implied)
		lo++
	}

	node.Default = implied
	node.End = implied

	// A role that terminates exactly at this depth (e.g. "ab" at depth 2)
	// matches a query equal to it, but not a query that continues further.
	if lo < hi && len(ids[lo]) == depth {
		node.End = sets.pushLinked(ids[lo], implied)
		lo++
	}

	folded := lo != rangeStart

	node.Children = make(map[byte]*Node, hi-lo)
	var onlyChild *Node
	for lo < hi {
		c := ids[lo][depth]
		runStart := lo
		for lo < hi && ids[lo][depth] == c {
			lo++
		}
		child := build(ids, runStart, lo, depth+1, sets, implied)
		node.Children[c] = child
		onlyChild = child
	}

	// The wildcard transition covers every role that shares this node's
	// path, including the ones just folded into End/implied above: a
	// trailing "*" in the query satisfies a role consumed here exactly as
	// much as one still waiting in a child subtree. When nothing was
	// folded at this depth and there is exactly one child, that child's
	// own subtree already covers this entire range with the same implied
	// set, so its *.End is reused by reference instead of materializing a
	// second, identical Sets entry.
	if !folded && len(node.Children) == 1 {
		node.Star = onlyChild.Star
	} else {
		node.Star = starNode(ids, rangeStart, hi, sets, rangeImplied)
	}
	return node
}

// starNode builds the state a wildcard query character transitions to. Its
// End is every role id sharing this node's path (concrete or themselves
// wildcard: both directions of satisfaction land here) plus whatever was
// already implied coming in, since a trailing "*" in the query covers the
// rest of the subtree regardless of how those roles are shaped past this
// point.
func starNode(ids []string, begin, hi int, sets *Sets, implied int) *Node {
	if begin == hi {
		return leaf(implied)
	}
	members := make([]string, 0, hi-begin+len(sets.Flatten(implied)))
	members = append(members, ids[begin:hi]...)
	members = append(members, sets.Flatten(implied)...)
	end := sets.pushConcrete(members)
	n := &Node{End: end, Default: implied}
	n.Star = n
	return n
}

func leaf(implied int) *Node {
	n := &Node{End: implied, Default: implied}
	n.Star = n
	return n
}

// Execute walks query against the recognizer rooted at root and returns the
// Sets index of every role id it matches. A literal '*' in query (always
// its last character, by convention) transitions to the current node's Star
// state and stops there; any other character not found among the current
// node's children ends the walk at node.Default.
func Execute(root *Node, query string) int {
	node := root
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '*' {
			return node.Star.End
		}
		child, ok := node.Children[c]
		if !ok {
			return node.Default
		}
		node = child
	}
	return node.End
}
