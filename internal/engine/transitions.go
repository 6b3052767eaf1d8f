package engine

import "slices"

// Statuses in which an action may be applied. Actions missing from the table are
// accepted in any status.
var allowedFrom = map[ActionType][]Status{
	ActRollDice:     {StatusDuel},
	ActRevealAnswer: {StatusRound, StatusSteal, StatusFinished},
	ActAddStrike:    {StatusRound, StatusSteal},
	ActResetStrikes: {StatusRound},
}

func allowed(kind ActionType, s Status) bool {
	from, ok := allowedFrom[kind]
	if !ok {
		return true
	}
	return slices.Contains(from, s)
}
