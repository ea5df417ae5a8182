package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// transitions lists the allowed forward moves. Failed is reachable from
// every non-terminal state and is added by canTransition.
var transitions = map[model.RunState][]model.RunState{
	model.RunStateInit:              {model.RunStateGeneratingQueries},
	model.RunStateGeneratingQueries: {model.RunStateSearching},
	model.RunStateSearching:         {model.RunStateScraping, model.RunStateEmpty},
	model.RunStateScraping:          {model.RunStateExtracting},
	model.RunStateExtracting:        {model.RunStateScoring},
	model.RunStateScoring:           {model.RunStateCompleted},
}

func canTransition(from, to model.RunState) bool {
	if from.Terminal() {
		return false
	}
	if to == model.RunStateFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition returns an error for a move the state machine forbids.
func checkTransition(from, to model.RunState) error {
	if !canTransition(from, to) {
		return eris.Errorf("pipeline: illegal transition %s -> %s", from, to)
	}
	return nil
}
