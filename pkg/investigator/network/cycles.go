package network

type colour uint8

const (
	white colour = iota // unvisited
	grey                // on the current DFS path
	black               // finished
)

// DetectCycles walks parent edges depth-first from every node and returns
// the number of back edges found. Zero means the network is acyclic.
//
// The walk keeps an explicit stack, so deep chains do not grow the
// goroutine stack.
func (n *Network) DetectCycles() int {
	type frame struct {
		node NodeID
		next int // index of the next parent edge to explore
	}
	colours := make([]colour, len(n.nodes))
	backEdges := 0
	for _, root := range n.Nodes() {
		if colours[root.ID] != white {
			continue
		}
		colours[root.ID] = grey
		stack := []frame{{node: root.ID}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			parents := n.nodes[top.node].Parents
			if top.next == len(parents) {
				colours[top.node] = black
				stack = stack[:len(stack)-1]
				continue
			}
			p := n.edges[parents[top.next]].Parent
			top.next++
			switch colours[p] {
			case grey:
				backEdges++
			case white:
				colours[p] = grey
				stack = append(stack, frame{node: p})
			}
		}
	}
	return backEdges
}
