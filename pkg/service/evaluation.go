package service

import (
	"context"
	"sort"
	"time"

	"github.com/ammar0144/guideresto/pkg/mapper"
	"github.com/ammar0144/guideresto/pkg/model"

	"github.com/pkg/errors"
)

type basicDraft struct {
	IPAddress string `validate:"nonzero,max=100"`
}

type completeDraft struct {
	Username string `validate:"nonzero,max=100"`
}

type criteriaDraft struct {
	Name        string `validate:"nonzero,max=100"`
	Description string `validate:"max=512"`
}

// EvaluationService records likes and graded evaluations of restaurants
type EvaluationService struct {
	base
	now func() time.Time
}

// NewEvaluationService returns a service running on pc. Evaluations are
// dated with the current time.
func NewEvaluationService(pc *mapper.PersistenceContext) *EvaluationService {
	return &EvaluationService{base: newBase(pc, "evaluation_service"), now: time.Now}
}

// GetAllCriteria returns every evaluation criteria
func (s *EvaluationService) GetAllCriteria(ctx context.Context) ([]*model.EvaluationCriteria, error) {
	criteria, err := s.pc.Criteria().FindAll(ctx)
	return criteria, errors.Wrap(err, "get all criteria")
}

// CreateCriteria stores a new evaluation criteria
func (s *EvaluationService) CreateCriteria(ctx context.Context, name, description string) (*model.EvaluationCriteria, error) {
	if err := check("create criteria", criteriaDraft{Name: name, Description: description}); err != nil {
		return nil, err
	}

	c := model.NewEvaluationCriteria(name, description)
	err := s.inTx(ctx, "create criteria", nil, func(ctx context.Context) error {
		_, err := s.pc.Criteria().Create(ctx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AddBasicEvaluation records a like or dislike of r from ipAddress
func (s *EvaluationService) AddBasicEvaluation(ctx context.Context, r *model.Restaurant, like bool, ipAddress string) (*model.BasicEvaluation, error) {
	if err := check("add basic evaluation", basicDraft{IPAddress: ipAddress}); err != nil {
		return nil, err
	}

	e := model.NewBasicEvaluation(r, s.now(), like, ipAddress)
	err := s.inTx(ctx, "add basic evaluation", nil, func(ctx context.Context) error {
		_, err := s.pc.BasicEvaluations().Create(ctx, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// EvaluateRestaurant records a complete evaluation of r with one grade per
// criteria in scores
func (s *EvaluationService) EvaluateRestaurant(ctx context.Context, r *model.Restaurant, username, comment string, scores map[*model.EvaluationCriteria]int) (*model.CompleteEvaluation, error) {
	if err := check("evaluate restaurant", completeDraft{Username: username}); err != nil {
		return nil, err
	}

	if _, ok := scores[nil]; ok {
		return nil, &OperationError{Op: "evaluate restaurant", Err: errors.Wrap(mapper.ErrInvalidArgument, "grade without criteria")}
	}

	e := model.NewCompleteEvaluation(r, s.now(), comment, username)
	for _, c := range sortedCriteria(scores) {
		e.AddGrade(model.NewGrade(scores[c], c))
	}

	err := s.inTx(ctx, "evaluate restaurant", nil, func(ctx context.Context) error {
		_, err := s.pc.CompleteEvaluations().Create(ctx, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("restaurant", r.ID).WithField("evaluation", e.ID).Info("restaurant evaluated")
	return e, nil
}

// UpdateEvaluation stores e with exactly the grades it holds
func (s *EvaluationService) UpdateEvaluation(ctx context.Context, e *model.CompleteEvaluation) error {
	return s.inTx(ctx, "update evaluation", nil, func(ctx context.Context) error {
		ok, err := s.pc.CompleteEvaluations().Update(ctx, e)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf("evaluation %d is not stored", e.ID)
		}
		return nil
	})
}

// DeleteEvaluation deletes e, with its grades for a complete evaluation
func (s *EvaluationService) DeleteEvaluation(ctx context.Context, e model.Evaluation) error {
	return s.inTx(ctx, "delete evaluation", nil, func(ctx context.Context) error {
		var (
			ok  bool
			err error
		)
		switch e := e.(type) {
		case *model.BasicEvaluation:
			ok, err = s.pc.BasicEvaluations().Delete(ctx, e)
		case *model.CompleteEvaluation:
			ok, err = s.pc.CompleteEvaluations().Delete(ctx, e)
		default:
			return mapper.ErrInvalidArgument
		}
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf("%s evaluation %d is not stored", e.Kind(), e.Key())
		}
		return nil
	})
}

// CountLikesForRestaurant counts the likes, or dislikes, of r
func (s *EvaluationService) CountLikesForRestaurant(ctx context.Context, r *model.Restaurant, like bool) (int64, error) {
	if r == nil || r.ID == 0 {
		return 0, errors.Wrap(mapper.ErrInvalidArgument, "count likes")
	}
	n, err := s.pc.BasicEvaluations().CountLikesForRestaurant(ctx, r.ID, like)
	return n, errors.Wrap(err, "count likes")
}

// sortedCriteria orders grades by criteria id so grade ids follow it
func sortedCriteria(scores map[*model.EvaluationCriteria]int) []*model.EvaluationCriteria {
	criteria := make([]*model.EvaluationCriteria, 0, len(scores))
	for c := range scores {
		criteria = append(criteria, c)
	}
	sort.Slice(criteria, func(i, j int) bool {
		return criteria[i].ID < criteria[j].ID
	})
	return criteria
}
