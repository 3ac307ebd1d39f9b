package model

// Status is the lifecycle state of an incident.
type Status string

const (
	// StatusPendingInfo 等待用户补充信息
	StatusPendingInfo Status = "pending_info"
	// StatusOpen 信息收集完毕, 等待处理
	StatusOpen Status = "open"
	// StatusResolved 已解决, 解决方案已发布
	StatusResolved Status = "resolved"
	// StatusClosed 终态, 不可再变更
	StatusClosed Status = "closed"
)

// legalTransitions enumerates every permitted status change. Anything not
// listed here is rejected, including open -> pending_info and any move out
// of closed.
var legalTransitions = map[Status][]Status{
	StatusPendingInfo: {StatusOpen, StatusClosed},
	StatusOpen:        {StatusResolved, StatusClosed},
	StatusResolved:    {StatusOpen, StatusClosed},
	StatusClosed:      {},
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingInfo, StatusOpen, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool {
	return len(legalTransitions[s]) == 0 && s.Valid()
}

// CanTransitionTo reports whether the change s -> to is legal.
func (s Status) CanTransitionTo(to Status) bool {
	for _, t := range legalTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}
