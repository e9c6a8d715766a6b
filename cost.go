package autoplier

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
)

// L1Term is one group of parameters penalized by their
// absolute values.
type L1Term struct {
	Penalty float64
	Params  []*anydiff.Var
}

// L1Reg wraps a Cost and adds L1 penalties.
//
// For every term, the absolute values of the parameters
// are summed and multiplied by the term's Penalty.
// The total penalty is added to every sample's cost, so a
// cost averaged over the batch includes the penalty once.
type L1Reg struct {
	Terms   []L1Term
	Wrapped anynet.Cost
}

// Cost computes the cost from l.Wrapped and adds the L1
// penalty to each component.
func (l *L1Reg) Cost(desired, actual anydiff.Res, n int) anydiff.Res {
	return anydiff.AddRepeated(l.Wrapped.Cost(desired, actual, n), l.Penalty(actual))
}

// Penalty computes the total L1 penalty as a vector with
// one component.
//
// The like argument is only used for its Creator.
func (l *L1Reg) Penalty(like anydiff.Res) anydiff.Res {
	c := like.Output().Creator()
	var sum anydiff.Res
	sum = anydiff.NewConst(c.MakeVector(1))
	for _, term := range l.Terms {
		if term.Penalty == 0 {
			continue
		}
		for _, p := range term.Params {
			sum = anydiff.Add(sum, anydiff.Scale(anydiff.Sum(anydiff.Abs(p)),
				c.MakeNumeric(term.Penalty)))
		}
	}
	return sum
}

// squareSum computes the sum of squared components.
func squareSum(out anydiff.Res) float64 {
	vec := out.Output()
	return vec.Creator().Float64(vec.Dot(vec))
}
