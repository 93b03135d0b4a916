package model

import "time"

// EvaluationKind tags the concrete evaluation variant.
type EvaluationKind int

const (
	// KindBasic is a like/dislike vote.
	KindBasic EvaluationKind = iota + 1
	// KindComplete is a commented evaluation carrying grades.
	KindComplete
)

func (k EvaluationKind) String() string {
	switch k {
	case KindBasic:
		return "basic"
	case KindComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Evaluation is implemented by *BasicEvaluation and *CompleteEvaluation
// only.
type Evaluation interface {
	Keyed
	Kind() EvaluationKind
	VisitedOn() time.Time
	Owner() *Restaurant

	sealed()
}

// EvaluationBase carries the fields shared by both variants.
type EvaluationBase struct {
	ID         int64
	VisitDate  time.Time
	Restaurant *Restaurant
}

// Key returns the evaluation id.
func (e *EvaluationBase) Key() int64 { return e.ID }

// VisitedOn returns the visit date.
func (e *EvaluationBase) VisitedOn() time.Time { return e.VisitDate }

// Owner returns the evaluated restaurant.
func (e *EvaluationBase) Owner() *Restaurant { return e.Restaurant }

func (e *EvaluationBase) sealed() {}

// BasicEvaluation is an anonymous like or dislike.
type BasicEvaluation struct {
	EvaluationBase
	Like      bool
	IPAddress string
}

// NewBasicEvaluation returns an unpersisted basic evaluation of r.
func NewBasicEvaluation(r *Restaurant, visitDate time.Time, like bool, ipAddress string) *BasicEvaluation {
	return &BasicEvaluation{
		EvaluationBase: EvaluationBase{VisitDate: visitDate, Restaurant: r},
		Like:           like,
		IPAddress:      ipAddress,
	}
}

// Kind returns KindBasic.
func (e *BasicEvaluation) Kind() EvaluationKind { return KindBasic }

// CompleteEvaluation is a signed, commented evaluation graded per criteria.
type CompleteEvaluation struct {
	EvaluationBase
	Comment  string
	Username string

	grades []*Grade
}

// NewCompleteEvaluation returns an unpersisted complete evaluation of r.
func NewCompleteEvaluation(r *Restaurant, visitDate time.Time, comment, username string) *CompleteEvaluation {
	return &CompleteEvaluation{
		EvaluationBase: EvaluationBase{VisitDate: visitDate, Restaurant: r},
		Comment:        comment,
		Username:       username,
	}
}

// Kind returns KindComplete.
func (e *CompleteEvaluation) Kind() EvaluationKind { return KindComplete }

// Grades returns the grade set.
func (e *CompleteEvaluation) Grades() []*Grade { return snapshot(e.grades) }

// AddGrade attaches g and points its back-reference at e.
func (e *CompleteEvaluation) AddGrade(g *Grade) {
	g.Evaluation = e
	e.grades = addMember(e.grades, g)
}

// RemoveGrade detaches g and reports whether it was attached. The grade's
// back-reference is left untouched.
func (e *CompleteEvaluation) RemoveGrade(g *Grade) bool {
	var ok bool
	e.grades, ok = removeMember(e.grades, g)
	return ok
}

// HasGrade reports whether g is attached.
func (e *CompleteEvaluation) HasGrade(g *Grade) bool { return containsMember(e.grades, g) }

// SetGrades replaces the grade set, attaching every grade to e.
func (e *CompleteEvaluation) SetGrades(grades []*Grade) {
	e.grades = nil
	for _, g := range grades {
		e.AddGrade(g)
	}
}

// EvaluationCriteria names what a grade scores (service, cuisine, ...).
type EvaluationCriteria struct {
	ID          int64
	Name        string
	Description string
}

// NewEvaluationCriteria returns an unpersisted criteria.
func NewEvaluationCriteria(name, description string) *EvaluationCriteria {
	return &EvaluationCriteria{Name: name, Description: description}
}

// Key returns the criteria id.
func (c *EvaluationCriteria) Key() int64 { return c.ID }

// Grade scores one criteria within a complete evaluation.
type Grade struct {
	ID         int64
	Score      int
	Evaluation *CompleteEvaluation
	Criteria   *EvaluationCriteria
}

// NewGrade returns an unpersisted grade. It is attached to an evaluation
// through CompleteEvaluation.AddGrade.
func NewGrade(score int, criteria *EvaluationCriteria) *Grade {
	return &Grade{Score: score, Criteria: criteria}
}

// Key returns the grade id.
func (g *Grade) Key() int64 { return g.ID }
