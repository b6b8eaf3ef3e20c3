// Package part1 implements the Part 1 steps 9 through 26 of the J1939-84
// procedure. Each step is a Controller registered in step order.
package part1

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"example.com/obdgate/internal/rules"
)

// PartNumber is the procedure part implemented here.
const PartNumber = 1

// ErrUnknownStep is returned by Lookup for an unregistered step number.
var ErrUnknownStep = errors.New("part1: unknown step")

// Controller runs one numbered step. Run returns the outcomes in the order
// they were produced; an error means the bus failed and the session should
// stop.
type Controller interface {
	DisplayName() string
	PartNumber() int
	StepNumber() int
	// TotalSteps is the number of sub steps exposed to the UI; none are.
	TotalSteps() int
	Run(ctx context.Context, s *Session) ([]rules.Outcome, error)
}

type stepBase struct {
	step int
}

func (b stepBase) DisplayName() string { return fmt.Sprintf("Part %d Step %d", PartNumber, b.step) }
func (b stepBase) PartNumber() int     { return PartNumber }
func (b stepBase) StepNumber() int     { return b.step }
func (b stepBase) TotalSteps() int     { return 0 }
func (b stepBase) scope() rules.Scope  { return rules.Scope{Part: PartNumber, Step: b.step} }

var registered = make(map[int]Controller)

// Register adds a step. Registering the same step number twice is a
// programming error and panics.
func Register(c Controller) {
	if _, ok := registered[c.StepNumber()]; ok {
		panic("duplicate part 1 step: " + strconv.Itoa(c.StepNumber()))
	}
	registered[c.StepNumber()] = c
}

// Steps returns every registered step in step order.
func Steps() []Controller {
	out := make([]Controller, 0, len(registered))
	for _, c := range registered {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepNumber() < out[j].StepNumber() })
	return out
}

// Lookup returns the controller for step.
func Lookup(step int) (Controller, error) {
	c, ok := registered[step]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStep, step)
	}
	return c, nil
}
