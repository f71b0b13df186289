package engine

import (
	"fmt"
	"sort"

	"github.com/OpenNSW/formengine/internal/form/model"
)

// Status is the lifecycle state of a form-filling session.
type Status string

const (
	StatusFilling    Status = "FILLING"
	StatusSubmitting Status = "SUBMITTING"
	StatusSubmitted  Status = "SUBMITTED"
)

type navAction string

const (
	navNext            navAction = "NEXT"
	navPrevious        navAction = "PREVIOUS"
	navSubmit          navAction = "SUBMIT"
	navSubmitSucceeded navAction = "SUBMIT_SUCCEEDED"
	navSubmitFailed    navAction = "SUBMIT_FAILED"
)

type transitionKey struct {
	From   Status
	Action navAction
}

// navigationTransitions is the full state graph. Stage moves happen inside FILLING;
// SUBMITTED has no outgoing edges.
var navigationTransitions = map[transitionKey]Status{
	{StatusFilling, navNext}:               StatusFilling,
	{StatusFilling, navPrevious}:           StatusFilling,
	{StatusFilling, navSubmit}:             StatusSubmitting,
	{StatusSubmitting, navSubmitSucceeded}: StatusSubmitted,
	{StatusSubmitting, navSubmitFailed}:    StatusFilling,
}

// NavigationState is a read-only snapshot of a Navigator.
type NavigationState struct {
	CurrentStageIndex int    `json:"currentStageIndex"`
	TotalStages       int    `json:"totalStages"`
	CompletedStages   []int  `json:"completedStages"`
	Status            Status `json:"status"`
}

// Navigator steps through the ordered stages of a form. Leaving a stage forward requires
// its visible fields to validate; going back never validates and never touches values.
type Navigator struct {
	def       *model.FormDefinition
	current   int
	completed map[int]struct{}
	status    Status
}

func NewNavigator(def *model.FormDefinition) *Navigator {
	return &Navigator{
		def:       def,
		completed: make(map[int]struct{}),
		status:    StatusFilling,
	}
}

func (n *Navigator) Current() int {
	return n.current
}

// CurrentStage returns nil only for a definition without stages, which the loader never produces.
func (n *Navigator) CurrentStage() *model.Stage {
	if n.current < 0 || n.current >= len(n.def.Stages) {
		return nil
	}
	return &n.def.Stages[n.current]
}

func (n *Navigator) Status() Status {
	return n.status
}

func (n *Navigator) IsFinalStage() bool {
	return n.current >= len(n.def.Stages)-1
}

// IsCompleted reports whether stage i has passed its gate at least once.
func (n *Navigator) IsCompleted(i int) bool {
	_, ok := n.completed[i]
	return ok
}

func (n *Navigator) State() NavigationState {
	completed := make([]int, 0, len(n.completed))
	for i := range n.completed {
		completed = append(completed, i)
	}
	sort.Ints(completed)
	return NavigationState{
		CurrentStageIndex: n.current,
		TotalStages:       len(n.def.Stages),
		CompletedStages:   completed,
		Status:            n.status,
	}
}

// CanAdvance is the live gate of the current stage: true when its visible fields all validate.
func (n *Navigator) CanAdvance(store *model.ValueStore) bool {
	if n.status != StatusFilling {
		return false
	}
	return len(n.stageErrors(store)) == 0
}

// Next validates the current stage and moves forward. Validation failures are returned as data
// and leave the index unchanged. On the final stage it returns ErrFinalStage: the caller submits instead.
func (n *Navigator) Next(store *model.ValueStore) ([]model.FieldError, error) {
	if err := n.permit(navNext); err != nil {
		return nil, err
	}
	if n.IsFinalStage() {
		return nil, ErrFinalStage
	}
	if errs := n.stageErrors(store); len(errs) > 0 {
		return errs, nil
	}
	n.completed[n.current] = struct{}{}
	n.current++
	return nil, nil
}

// Previous moves back one stage without validating.
func (n *Navigator) Previous() error {
	if err := n.permit(navPrevious); err != nil {
		return err
	}
	if n.current == 0 {
		return ErrFirstStage
	}
	n.current--
	return nil
}

// BeginSubmit gates the final stage and moves to SUBMITTING.
func (n *Navigator) BeginSubmit(store *model.ValueStore) ([]model.FieldError, error) {
	if err := n.permit(navSubmit); err != nil {
		return nil, err
	}
	if !n.IsFinalStage() {
		return nil, ErrNotFinalStage
	}
	if errs := n.stageErrors(store); len(errs) > 0 {
		return errs, nil
	}
	n.status = navigationTransitions[transitionKey{n.status, navSubmit}]
	return nil, nil
}

// CompleteSubmit resolves an in-flight submission. A failure restores FILLING on the same
// stage; success marks the final stage completed and closes the navigator for good.
func (n *Navigator) CompleteSubmit(succeeded bool) error {
	action := navSubmitFailed
	if succeeded {
		action = navSubmitSucceeded
	}
	if err := n.permit(action); err != nil {
		return err
	}
	if succeeded {
		n.completed[n.current] = struct{}{}
	}
	n.status = navigationTransitions[transitionKey{n.status, action}]
	return nil
}

func (n *Navigator) permit(action navAction) error {
	if _, ok := navigationTransitions[transitionKey{n.status, action}]; ok {
		return nil
	}
	switch n.status {
	case StatusSubmitting:
		return ErrSubmissionInProgress
	case StatusSubmitted:
		return ErrSessionClosed
	}
	return fmt.Errorf("action %s not permitted in state %s", action, n.status)
}

func (n *Navigator) stageErrors(store *model.ValueStore) []model.FieldError {
	stage := n.CurrentStage()
	if stage == nil {
		return nil
	}
	return ValidateStage(stage, store)
}
