// Package params holds the immutable run configuration of an error finding
// run and the bound tables derived from it.
package params

import (
	"errors"
	"fmt"
	"math"
)

const (
	// Value to add for a match in finding branch points.
	// 1.20 was the calculated value for 6% vs 35% error discrimination.
	BranchPtMatchValue = 0.272
	// Value to add for a mismatch in finding branch points.
	// -2.19 was the calculated value for 6% vs 35% error discrimination.
	BranchPtErrorValue = -0.728

	// errors ignored when setting the probability bound for ending an extension
	ErrorsForFree = 1

	// Branch points must be at least this many bases from the end of the read
	MinBranchEndDist = 20
	// Branch point tails must fall off from the max by at least this rate
	MinBranchTailSlope = 0.20

	// this many or more votes at the same base indicate a separate haplotype
	MinHaploOccurs = 3

	// degree counters stop here
	MaxDegree = 32767

	EditDistProbBound  = 1e-4
	NormalDistribThold = 3.62

	DefaultMaxReadLen     = math.MaxUint16
	DefaultErrorRate      = 0.06
	DefaultDegreeThresh   = 2
	DefaultEndExcludeLen  = 3
	DefaultKmerLen        = 9
	DefaultVoteQualifyLen = 9
	DefaultHaploMinOccurs = MinHaploOccurs
)

var (
	ErrBadErrorRate = errors.New("params: error rate must be in (0, 0.5)")
	ErrBadRange     = errors.New("params: bad read ID range")
	ErrBadReadLen   = errors.New("params: max read length must be positive")
	ErrBadThreads   = errors.New("params: thread number must be positive")
	ErrBadLength    = errors.New("params: negative length parameter")
)

// Options are the user supplied values a RunConfig is built from.
// Zero values of the tunables are replaced by their defaults.
type Options struct {
	ReadFiles      []string
	OverlapFiles   []string
	BgnID          uint32
	EndID          uint32
	NumThreads     int
	ErrorRate      float64
	MinOverlap     int
	Output         string
	MaxReadLen     int
	DegreeThresh   int
	UseHaploCt     bool
	HaploMinOccurs int
	EndExcludeLen  int
	KmerLen        int
	VoteQualifyLen int
}

func DefaultOptions() Options {
	return Options{
		BgnID:          1,
		EndID:          math.MaxUint32,
		NumThreads:     4,
		ErrorRate:      DefaultErrorRate,
		MaxReadLen:     DefaultMaxReadLen,
		DegreeThresh:   DefaultDegreeThresh,
		HaploMinOccurs: DefaultHaploMinOccurs,
		EndExcludeLen:  DefaultEndExcludeLen,
		KmerLen:        DefaultKmerLen,
		VoteQualifyLen: DefaultVoteQualifyLen,
	}
}

// RunConfig is built once and shared read-only by every worker.
type RunConfig struct {
	Options

	// EditArrayMax is the number of edit-distance layers a workspace may hold,
	// one more than the bound for a MaxReadLen alignment.
	EditArrayMax int
	// ErrorBound[L] is the maximum number of errors allowed in an alignment of length L.
	ErrorBound []int
	// EditMatchLimit[e] is the smallest row worth pursuing with e errors.
	EditMatchLimit []int
}

func New(opt Options) (*RunConfig, error) {
	if !(opt.ErrorRate > 0 && opt.ErrorRate < 0.5) {
		return nil, fmt.Errorf("%w: %v", ErrBadErrorRate, opt.ErrorRate)
	}
	if opt.BgnID > opt.EndID {
		return nil, fmt.Errorf("%w: %d > %d", ErrBadRange, opt.BgnID, opt.EndID)
	}
	if opt.MaxReadLen <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadReadLen, opt.MaxReadLen)
	}
	if opt.NumThreads <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadThreads, opt.NumThreads)
	}
	if opt.MinOverlap < 0 || opt.EndExcludeLen < 0 || opt.KmerLen < 0 || opt.VoteQualifyLen < 0 || opt.DegreeThresh < 0 {
		return nil, ErrBadLength
	}
	if opt.HaploMinOccurs <= 0 {
		opt.HaploMinOccurs = MinHaploOccurs
	}

	cfg := &RunConfig{Options: opt}
	cfg.ErrorBound = ErrorBoundTable(opt.ErrorRate, opt.MaxReadLen)
	cfg.EditArrayMax = 1 + cfg.ErrorBound[opt.MaxReadLen]
	cfg.EditMatchLimit = EditMatchLimitTable(opt.ErrorRate, cfg.EditArrayMax, opt.MaxReadLen)
	return cfg, nil
}

// InRange reports whether id is one of the reads being corrected.
func (cfg *RunConfig) InRange(id uint32) bool {
	return cfg.BgnID <= id && id <= cfg.EndID
}

func ErrorBoundTable(errorRate float64, maxReadLen int) []int {
	eb := make([]int, maxReadLen+1)
	for i := range eb {
		eb[i] = int(float64(i)*errorRate + 0.0000000000001)
	}
	return eb
}

func EditMatchLimitTable(errorRate float64, editArrayMax, maxReadLen int) []int {
	ml := make([]int, editArrayMax)
	start := 1
	for e := ErrorsForFree + 1; e < editArrayMax; e++ {
		start = BinomialBound(e-ErrorsForFree, errorRate, start, maxReadLen)
		ml[e] = start - 1
	}
	return ml
}

// BinomialBound returns the smallest n >= start such that the probability of
// at least e errors in n trials with error probability p exceeds
// EditDistProbBound. maxReadLen is returned when no n qualifies.
func BinomialBound(e int, p float64, start, maxReadLen int) int {
	q := 1.0 - p
	if start < e {
		start = e
	}
	for n := start; n < maxReadLen; n++ {
		if n <= 35 {
			sum := 0.0
			binCoeff := 1.0
			pPower := 1.0
			qPower := math.Pow(q, float64(n))
			for k := 0; k < e && 1.0-sum > EditDistProbBound; k++ {
				sum += binCoeff * pPower * qPower
				binCoeff *= float64(n - k)
				binCoeff /= float64(k + 1)
				pPower *= p
				qPower /= q
			}
			if 1.0-sum > EditDistProbBound {
				return n
			}
		} else {
			normalZ := (float64(e) - 0.5 - float64(n)*p) / math.Sqrt(float64(n)*p*q)
			if normalZ <= NormalDistribThold {
				return n
			}
			mu := float64(n) * p
			sum := 0.0
			term := math.Exp(-mu)
			for k := 0; k < e; k++ {
				sum += term
				term *= mu / float64(k+1)
			}
			if 1.0-sum > EditDistProbBound {
				return n
			}
		}
	}
	return maxReadLen
}
