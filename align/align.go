// Package align computes banded prefix edit distances between overlapping
// reads. A Workspace keeps the edit-distance frontier rows between calls and
// grows them one error layer at a time, so it must not be shared between
// goroutines.
package align

import (
	"errors"
	"fmt"

	"github.com/mudesheng/ovlcorrect/params"
	"github.com/mudesheng/ovlcorrect/utils"
)

type Status uint8

const (
	Failed Status = iota
	Complete
	Branch
)

func (s Status) String() string {
	switch s {
	case Complete:
		return "complete"
	case Branch:
		return "branch"
	}
	return "failed"
}

var ErrErrorLimit = errors.New("align: error limit beyond workspace size")

// Result describes the alignment of a prefix of a against a prefix of b.
// Delta aliases workspace memory and is only valid until the next call.
type Result struct {
	Errors int
	AEnd   int // one past the last aligned base of a
	BEnd   int
	Status Status
	// Delta: |d|-1 aligned columns, then one base of b inserted (d < 0) or
	// one base of a deleted (d > 0).
	Delta []int32
}

type Workspace struct {
	editMatchLimit []int
	// rows[e] holds the furthest row reached on diagonals -e-2..e+2 with e errors
	rows       [][]int32
	allocated  int
	delta      []int32
	deltaStack []int32
}

func NewWorkspace(cfg *params.RunConfig) *Workspace {
	return &Workspace{
		editMatchLimit: cfg.EditMatchLimit,
		rows:           make([][]int32, cfg.EditArrayMax),
	}
}

// row returns layer e, allocating it the first time it is reached.
func (ws *Workspace) row(e int) []int32 {
	r := ws.rows[e]
	if r == nil {
		r = make([]int32, 2*e+5)
		ws.rows[e] = r
		ws.allocated++
	}
	return r
}

// Allocated is the number of error layers materialised so far.
func (ws *Workspace) Allocated() int {
	return ws.allocated
}

// Release drops every row; the workspace grows again on next use.
func (ws *Workspace) Release() {
	for i := range ws.rows {
		ws.rows[i] = nil
	}
	ws.allocated = 0
	ws.delta = nil
	ws.deltaStack = nil
}

// PrefixEditDist aligns a against b from their first bases until the end of
// either one, allowing at most errorLimit edits. The search stops early at a
// branch point, where the alignment quality falls off sharply.
func (ws *Workspace) PrefixEditDist(a, b []byte, errorLimit int) (Result, error) {
	if errorLimit < 0 || errorLimit >= len(ws.rows) {
		return Result{}, fmt.Errorf("%w: %d not in [0,%d)", ErrErrorLimit, errorLimit, len(ws.rows))
	}
	m, n := len(a), len(b)
	ws.delta = ws.delta[:0]
	shorter := utils.MinInt(m, n)

	row := 0
	for row < shorter && a[row] == b[row] {
		row++
	}
	ws.row(0)[2] = int32(row)
	if row == shorter {
		return Result{AEnd: row, BEnd: row, Status: Complete, Delta: ws.delta}, nil
	}

	left, right := 0, 0
	longest, bestD, bestE := row, 0, 0
	maxScore := float64(row) * params.BranchPtMatchValue
	maxScoreLen, maxScoreBestD, maxScoreBestE := row, 0, 0

	e := 1
	for ; e <= errorLimit; e++ {
		prev, po := ws.row(e-1), e+1
		cur, co := ws.row(e), e+2

		left = utils.MaxInt(left-1, -e)
		right = utils.MinInt(right+1, e)
		prev[po+left] = -2
		prev[po+left-1] = -2
		prev[po+right] = -2
		prev[po+right+1] = -2

		for d := left; d <= right; d++ {
			r := 1 + prev[po+d]
			if j := prev[po+d-1]; j > r {
				r = j
			}
			if j := 1 + prev[po+d+1]; j > r {
				r = j
			}
			ri := int(r)
			for ri < m && ri+d < n && a[ri] == b[ri+d] {
				ri++
			}
			cur[co+d] = int32(ri)

			if ri == m || ri+d == n {
				// score assumes BranchPtMatchValue - BranchPtErrorValue == 1
				score := float64(ri)*params.BranchPtMatchValue - float64(e)
				tailLen := ri - maxScoreLen
				if tailLen >= params.MinBranchEndDist && maxScore-score > float64(tailLen)*params.MinBranchTailSlope {
					ws.computeDelta(maxScoreBestE, maxScoreBestD, maxScoreLen)
					return Result{Errors: maxScoreBestE, AEnd: maxScoreLen, BEnd: maxScoreLen + maxScoreBestD, Status: Branch, Delta: ws.delta}, nil
				}
				ws.computeDelta(e, d, ri)
				return Result{Errors: e, AEnd: ri, BEnd: ri + d, Status: Complete, Delta: ws.delta}, nil
			}
		}

		limit := int32(ws.editMatchLimit[e])
		for left <= right && left < 0 && cur[co+left] < limit {
			left++
		}
		if left >= 0 {
			for left <= right && cur[co+left]+int32(left) < limit {
				left++
			}
		}
		if left > right {
			break
		}
		for right > 0 && cur[co+right]+int32(right) < limit {
			right--
		}
		if right <= 0 {
			for right > left && cur[co+right] < limit {
				right--
			}
		}

		for d := left; d <= right; d++ {
			if int(cur[co+d]) > longest {
				bestD, bestE, longest = d, e, int(cur[co+d])
			}
		}
		score := float64(longest)*params.BranchPtMatchValue - float64(e)
		if score > maxScore {
			maxScore = score
			maxScoreLen, maxScoreBestD, maxScoreBestE = longest, bestD, bestE
		}
	}

	return Result{Errors: e, AEnd: maxScoreLen, BEnd: maxScoreLen + maxScoreBestD, Status: Failed}, nil
}

// computeDelta walks back from row on diagonal d of layer e and leaves the
// alignment in ws.delta.
func (ws *Workspace) computeDelta(e, d, row int) {
	last := int32(row)
	ws.deltaStack = ws.deltaStack[:0]
	for k := e; k > 0; k-- {
		prev, po := ws.rows[k-1], k+1
		from := d
		max := 1 + prev[po+d]
		if j := prev[po+d-1]; j > max {
			from, max = d-1, j
		}
		if j := 1 + prev[po+d+1]; j > max {
			from, max = d+1, j
		}
		if from == d-1 {
			ws.deltaStack = append(ws.deltaStack, max-last-1)
			d--
			last = prev[po+from]
		} else if from == d+1 {
			ws.deltaStack = append(ws.deltaStack, last-(max-1))
			d++
			last = prev[po+from]
		}
	}
	ws.deltaStack = append(ws.deltaStack, last+1)

	ws.delta = ws.delta[:0]
	for i := len(ws.deltaStack) - 1; i > 0; i-- {
		ws.delta = append(ws.delta, abs32(ws.deltaStack[i])*sign32(ws.deltaStack[i-1]))
	}
}

func abs32(a int32) int32 {
	if a < 0 {
		return -a
	}
	return a
}

func sign32(a int32) int32 {
	if a > 0 {
		return 1
	} else if a < 0 {
		return -1
	}
	return 0
}
