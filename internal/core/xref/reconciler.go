package xref

import "log"

// Report summarizes one reconciliation run.
type Report struct {
	Pivots           int `json:"pivots"`
	MatchedClusters  int `json:"matched_clusters"`
	FailedClusters   int `json:"failed_clusters"`
	StandaloneReused int `json:"standalone_reused"`
	StandaloneNew    int `json:"standalone_new"`
	Reused           int `json:"reused"`
	Created          int `json:"created"`
}

// Reconciler drives a graph to a state where every node is resolved either
// to an existing topic or to New.
type Reconciler struct {
	Graph *Graph
}

func NewReconciler(g *Graph) *Reconciler {
	return &Reconciler{Graph: g}
}

// Reconcile resolves every node of the graph. It panics with a
// *PreconditionError if the graph was built inconsistently.
func (r *Reconciler) Reconcile() Report {
	var report Report

	for {
		pivot := r.nextPivot()
		if pivot == nil {
			break
		}
		report.Pivots++

		var best Assignment
		for _, id := range pivot.ViableCandidates() {
			if result, ok := pivot.IsValid(id, nil); ok && len(result) > len(best) {
				best = result
			}
		}

		if best != nil {
			for _, as := range best {
				as.Node.resolve(as.ID)
			}
			report.MatchedClusters++
			log.Printf("xref: matched %d topics around %v", len(best), pivot)
			continue
		}

		failed := pivot.UnresolvedSubgraph(nil)
		for _, n := range failed {
			n.resolve(New)
		}
		report.FailedClusters++
		log.Printf("xref: no consistent match around %v, %d topics will be created", pivot, len(failed))
	}

	for _, n := range r.Graph.nodes {
		if n.resolved != "" {
			continue
		}
		if viable := n.ViableCandidates(); len(viable) > 0 {
			n.resolve(viable[0])
			report.StandaloneReused++
		} else {
			n.resolve(New)
			report.StandaloneNew++
		}
	}

	for _, n := range r.Graph.nodes {
		if n.resolved == New {
			report.Created++
		} else {
			report.Reused++
		}
	}
	return report
}

// nextPivot returns the first unresolved node that has candidates and takes
// part in a link network.
func (r *Reconciler) nextPivot() *Node {
	for _, n := range r.Graph.nodes {
		if n.resolved == "" && n.HasCandidates() && n.HasOutgoingRequirements() {
			return n
		}
	}
	return nil
}
