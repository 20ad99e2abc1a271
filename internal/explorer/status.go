package explorer

import (
	"context"
	"errors"
	"fmt"

	"github.com/msalah0e/trustmap/internal/graph"
)

// ErrContainerUnavailable means the view never reported a non-zero size.
var ErrContainerUnavailable = errors.New("graph container not available")

// Phase is the coarse state of a view.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseLoading           Phase = "loading"
	PhasePartial           Phase = "partial"
	PhaseReady             Phase = "ready"
	PhaseEmpty             Phase = "empty"
	PhaseNoData            Phase = "no_data"
	PhaseMissingIdentifier Phase = "missing_identifier"
	PhaseUnavailable       Phase = "unavailable"
	PhaseError             Phase = "error"
)

// Status is what the view tells the user.
type Status struct {
	Phase      Phase  `json:"phase"`
	Stage      string `json:"stage,omitempty"`
	Message    string `json:"message"`
	Generation uint64 `json:"generation"`
	HTTPStatus int    `json:"httpStatus,omitempty"`
	Err        error  `json:"-"`
}

// Failed reports whether the status ends a load unsuccessfully. Empty and
// no-data results are informational, not failures.
func (s Status) Failed() bool {
	return s.Phase == PhaseError || s.Phase == PhaseUnavailable || s.Phase == PhaseMissingIdentifier
}

// statusFor maps a load error onto the user-facing taxonomy.
func statusFor(err error) Status {
	switch {
	case errors.Is(err, graph.ErrMissingIdentifier):
		return Status{Phase: PhaseMissingIdentifier, Message: "this identity has no profile yet", Err: err}
	case errors.Is(err, graph.ErrNoDataFound):
		return Status{Phase: PhaseNoData, Message: "nothing here for this identity", Err: err}
	case errors.Is(err, graph.ErrEmptyResult):
		return Status{Phase: PhaseEmpty, Message: "no relationships found", Err: err}
	case errors.Is(err, ErrContainerUnavailable):
		return Status{Phase: PhaseUnavailable, Message: err.Error(), Err: err}
	}
	return Status{Phase: PhaseError, Message: err.Error(), HTTPStatus: graph.StatusOf(err), Err: err}
}

func cancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

func readyMessage(g *graph.Graph, visible graph.Subgraph) string {
	return fmt.Sprintf("%d of %d nodes, %d edges", len(visible.Nodes), len(g.Nodes), len(visible.Edges))
}
