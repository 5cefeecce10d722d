package merge

// visitState is a per-commit bitmap tracking which side(s) of a bidirectional
// walk have reached it, whether it has been marked stale (superseded by an
// already-known common ancestor), and whether it has been recorded as a
// result. The four flags compose independently, mirroring the
// VisitedFromSource/VisitedFromTarget/Stale/Result state the walk threads
// through the commit graph.
type visitState uint8

const (
	none              visitState = 0
	visitedFromSource visitState = 1 << 0
	visitedFromTarget visitState = 1 << 1
	visitedFromBoth              = visitedFromSource | visitedFromTarget
	stale             visitState = 1 << 2
	result            visitState = 1 << 3
)

func (s visitState) has(flag visitState) bool { return s&flag == flag }
func (s visitState) with(flag visitState) visitState { return s | flag }
