package finderrors

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/mudesheng/ovlcorrect/align"
	"github.com/mudesheng/ovlcorrect/bnt"
	"github.com/mudesheng/ovlcorrect/ovlstore"
	"github.com/mudesheng/ovlcorrect/params"
	"github.com/mudesheng/ovlcorrect/readstore"
	"github.com/mudesheng/ovlcorrect/utils"
)

// processOverlap aligns read b against anchor read a and, when the alignment
// runs to the end of either read, casts its votes into a.
func (tc *threadContext) processOverlap(cfg *params.RunConfig, rs *readstore.ReadSet, o ovlstore.Overlap) error {
	tc.stats.Olaps++
	a, b := rs.Get(o.AID), rs.Get(o.BID)
	if a == nil || !a.Anchor() || b == nil || a.Skip() || b.Skip() {
		tc.stats.SkippedOlaps++
		return nil
	}
	olen := len(a.Seq) + utils.MinInt(0, int(o.BHang)) - utils.MaxInt(0, int(o.AHang))
	if olen < cfg.MinOverlap {
		tc.stats.SkippedOlaps++
		return nil
	}

	bSeq := b.Seq
	if o.Innie {
		bSeq = tc.rc.Get(b.ID, b.Seq)
	}
	aOff, bOff := 0, 0
	if o.AHang >= 0 {
		aOff = int(o.AHang)
	} else {
		bOff = int(-o.AHang)
	}
	if aOff >= len(a.Seq) || bOff >= len(bSeq) {
		log.Debugf("[processOverlap] hang beyond read end: %v", o)
		tc.stats.SkippedOlaps++
		return nil
	}
	aPart, bPart := a.Seq[aOff:], bSeq[bOff:]
	errorLimit := cfg.ErrorBound[utils.MinInt(len(aPart), len(bPart))]

	res, err := tc.ws.PrefixEditDist(aPart, bPart, errorLimit)
	if err != nil {
		return fmt.Errorf("overlap %v: %w", o, err)
	}
	switch res.Status {
	case align.Complete:
		if err := tc.analyze(cfg, a, aOff, aPart, bPart, res); err != nil {
			return fmt.Errorf("overlap %v: %w", o, err)
		}
		tc.stats.PassedOlaps++
		if aOff == 0 {
			a.IncLeftDegree()
		}
		if aOff+res.AEnd == len(a.Seq) {
			a.IncRightDegree()
		}
	case align.Branch:
		tc.stats.BranchOlaps++
		tc.stats.FailedOlaps++
	default:
		tc.stats.FailedOlaps++
	}
	return nil
}

// buildEvents lists the edits of the alignment between a start and an end
// sentinel. Insertions after the same base are merged into one event.
func (tc *threadContext) buildEvents(aEnd int) {
	tc.events = append(tc.events[:0], event{kind: evStart, aPos: -1})
	tc.insBuf = tc.insBuf[:0]
	ops := tc.ops
	for i := 0; i < len(ops); i++ {
		op := ops[i]
		switch op.Kind {
		case align.Subst:
			tc.events = append(tc.events, event{kind: evSubst, aPos: op.APos, base: op.Base})
		case align.Delete:
			tc.events = append(tc.events, event{kind: evDelete, aPos: op.APos})
		case align.Insert:
			bgn := len(tc.insBuf)
			tc.insBuf = append(tc.insBuf, op.Base)
			for i+1 < len(ops) && ops[i+1].Kind == align.Insert && ops[i+1].APos == op.APos {
				i++
				tc.insBuf = append(tc.insBuf, ops[i].Base)
			}
			tc.events = append(tc.events, event{kind: evInsert, aPos: op.APos, insBgn: bgn, insEnd: len(tc.insBuf)})
		}
	}
	tc.events = append(tc.events, event{kind: evEnd, aPos: aEnd})
}

// analyze casts the votes of one complete alignment. Runs of at least
// KmerLen matches confirm their bases, less EndExcludeLen bases next to an
// edit. An edit is voted for only with VoteQualifyLen matches on both sides.
func (tc *threadContext) analyze(cfg *params.RunConfig, a *readstore.Read, aOff int, aPart, bPart []byte, res align.Result) error {
	tc.ops = align.AppendTrace(tc.ops[:0], aPart, bPart, res)
	tc.buildEvents(res.AEnd)
	votes := a.Votes[aOff:]
	events := tc.events

	for i := 0; i+1 < len(events); i++ {
		cur, nxt := &events[i], &events[i+1]
		_, lo := cur.span()
		hi, _ := nxt.span()
		if hi-lo < cfg.KmerLen {
			continue
		}
		if cur.kind != evStart {
			lo += cfg.EndExcludeLen
		}
		if nxt.kind != evEnd {
			hi -= cfg.EndExcludeLen
		}
		for p := lo; p < hi; p++ {
			if err := votes[p].Confirm(); err != nil {
				return fmt.Errorf("read %d pos %d: %w", a.ID, aOff+p, err)
			}
			if p < hi-1 {
				if err := votes[p].NoInsertVote(); err != nil {
					return fmt.Errorf("read %d pos %d: %w", a.ID, aOff+p, err)
				}
			}
		}
	}

	for i := 1; i+1 < len(events); i++ {
		prev, e, nxt := &events[i-1], &events[i], &events[i+1]
		_, prevNext := prev.span()
		first, next := e.span()
		nxtFirst, _ := nxt.span()
		if first-prevNext < cfg.VoteQualifyLen || nxtFirst-next < cfg.VoteQualifyLen {
			continue
		}
		var err error
		switch e.kind {
		case evSubst:
			if !bnt.IsBase(e.base) || !bnt.IsBase(aPart[e.aPos]) {
				continue
			}
			err = votes[e.aPos].Substitute(e.base)
		case evDelete:
			err = votes[e.aPos].Delete()
		case evInsert:
			if e.aPos < 0 {
				continue
			}
			err = votes[e.aPos].Insert(string(tc.insBuf[e.insBgn:e.insEnd]))
		}
		if err != nil {
			return fmt.Errorf("read %d pos %d: %w", a.ID, aOff+e.aPos, err)
		}
	}
	return nil
}

