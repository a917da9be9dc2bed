package finderrors

import (
	"fmt"

	humanize "github.com/dustin/go-humanize"

	"github.com/mudesheng/ovlcorrect/align"
	"github.com/mudesheng/ovlcorrect/bnt"
	"github.com/mudesheng/ovlcorrect/params"
)

// Stats counts what happened to the overlaps a worker was given.
type Stats struct {
	Olaps        uint64
	PassedOlaps  uint64
	FailedOlaps  uint64 // includes BranchOlaps
	BranchOlaps  uint64
	SkippedOlaps uint64
}

func (s *Stats) Add(o Stats) {
	s.Olaps += o.Olaps
	s.PassedOlaps += o.PassedOlaps
	s.FailedOlaps += o.FailedOlaps
	s.BranchOlaps += o.BranchOlaps
	s.SkippedOlaps += o.SkippedOlaps
}

func (s Stats) String() string {
	return fmt.Sprintf("overlaps: %s passed: %s failed: %s (branch: %s) skipped: %s",
		humanize.Comma(int64(s.Olaps)), humanize.Comma(int64(s.PassedOlaps)),
		humanize.Comma(int64(s.FailedOlaps)), humanize.Comma(int64(s.BranchOlaps)),
		humanize.Comma(int64(s.SkippedOlaps)))
}

type eventKind uint8

const (
	evStart eventKind = iota
	evSubst
	evDelete
	evInsert
	evEnd
)

// event is one edit of an alignment, in coordinates of the aligned part of a.
type event struct {
	kind eventKind
	// evSubst, evDelete: the a base; evInsert: the a base the insertion follows
	aPos int
	base byte
	// evInsert: inserted bases are insBuf[insBgn:insEnd]
	insBgn, insEnd int
}

// span returns the first a position the event occupies and the first one
// after it. Insertions occupy none.
func (e *event) span() (first, next int) {
	switch e.kind {
	case evStart:
		return 0, 0
	case evInsert:
		return e.aPos + 1, e.aPos + 1
	case evEnd:
		return e.aPos, e.aPos
	}
	return e.aPos, e.aPos + 1
}

// threadContext is the state a worker owns; nothing in it is shared.
type threadContext struct {
	id     int
	rc     bnt.RevCompCache
	ws     *align.Workspace
	ops    []align.Op
	events []event
	insBuf []byte
	stats  Stats
}

func newThreadContext(id int, cfg *params.RunConfig) *threadContext {
	n := cfg.MaxReadLen + 2
	if n > 1<<16 {
		n = 1 << 16
	}
	return &threadContext{
		id:     id,
		ws:     align.NewWorkspace(cfg),
		ops:    make([]align.Op, 0, n),
		events: make([]event, 0, 64),
	}
}

// release drops the alignment rows once the worker is done.
func (tc *threadContext) release() {
	tc.ws.Release()
	tc.rc.Reset()
	tc.ops = nil
	tc.events = nil
	tc.insBuf = nil
}
