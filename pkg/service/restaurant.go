package service

import (
	"context"
	"strings"

	"github.com/ammar0144/guideresto/pkg/mapper"
	"github.com/ammar0144/guideresto/pkg/model"

	"github.com/pkg/errors"
)

type restaurantDraft struct {
	Name    string `validate:"nonzero,max=100"`
	Website string `validate:"max=100"`
	Street  string `validate:"nonzero,max=100"`
}

type cityDraft struct {
	ZipCode string `validate:"nonzero,max=100"`
	Name    string `validate:"nonzero,max=100"`
}

type typeDraft struct {
	Label string `validate:"nonzero,max=100"`
}

// RestaurantService covers browsing restaurants, cities and types and
// editing restaurants
type RestaurantService struct {
	base
}

// NewRestaurantService returns a service running on pc
func NewRestaurantService(pc *mapper.PersistenceContext) *RestaurantService {
	return &RestaurantService{base: newBase(pc, "restaurant_service")}
}

// GetAllRestaurants returns every restaurant
func (s *RestaurantService) GetAllRestaurants(ctx context.Context) ([]*model.Restaurant, error) {
	restaurants, err := s.pc.Restaurants().FindAll(ctx)
	return restaurants, errors.Wrap(err, "get all restaurants")
}

// GetRestaurantsByName returns the restaurants whose name contains research
func (s *RestaurantService) GetRestaurantsByName(ctx context.Context, research string) ([]*model.Restaurant, error) {
	restaurants, err := s.pc.Restaurants().FindByName(ctx, research)
	return restaurants, errors.Wrap(err, "get restaurants by name")
}

// GetRestaurantsByCity returns the restaurants of the cities whose name
// contains research
func (s *RestaurantService) GetRestaurantsByCity(ctx context.Context, research string) ([]*model.Restaurant, error) {
	restaurants, err := s.pc.Restaurants().FindByCity(ctx, research)
	return restaurants, errors.Wrap(err, "get restaurants by city")
}

// GetRestaurantsByType returns the restaurants of typ
func (s *RestaurantService) GetRestaurantsByType(ctx context.Context, typ *model.RestaurantType) ([]*model.Restaurant, error) {
	if typ == nil || typ.ID == 0 {
		return nil, errors.Wrap(mapper.ErrInvalidArgument, "get restaurants by type")
	}
	restaurants, err := s.pc.Restaurants().FindByType(ctx, typ.ID)
	return restaurants, errors.Wrap(err, "get restaurants by type")
}

// GetRestaurantByExactName returns the restaurant named name ignoring case,
// nil if there is none
func (s *RestaurantService) GetRestaurantByExactName(ctx context.Context, name string) (*model.Restaurant, error) {
	r, err := s.pc.Restaurants().FindByExactName(ctx, strings.TrimSpace(name))
	return r, errors.Wrap(err, "get restaurant by exact name")
}

// GetAllRestaurantTypes returns every restaurant type
func (s *RestaurantService) GetAllRestaurantTypes(ctx context.Context) ([]*model.RestaurantType, error) {
	types, err := s.pc.RestaurantTypes().FindAll(ctx)
	return types, errors.Wrap(err, "get all restaurant types")
}

// GetRestaurantTypeByLabel returns the type with that label, nil if none
func (s *RestaurantService) GetRestaurantTypeByLabel(ctx context.Context, label string) (*model.RestaurantType, error) {
	t, err := s.pc.RestaurantTypes().FindByLabel(ctx, strings.TrimSpace(label))
	return t, errors.Wrap(err, "get restaurant type by label")
}

// CreateRestaurantType stores a new restaurant type
func (s *RestaurantService) CreateRestaurantType(ctx context.Context, label, description string) (*model.RestaurantType, error) {
	if err := check("create restaurant type", typeDraft{Label: label}); err != nil {
		return nil, err
	}

	t := model.NewRestaurantType(label, description)
	err := s.inTx(ctx, "create restaurant type", nil, func(ctx context.Context) error {
		_, err := s.pc.RestaurantTypes().Create(ctx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetAllCities returns every city
func (s *RestaurantService) GetAllCities(ctx context.Context) ([]*model.City, error) {
	cities, err := s.pc.Cities().FindAll(ctx)
	return cities, errors.Wrap(err, "get all cities")
}

// CreateCity stores a new city
func (s *RestaurantService) CreateCity(ctx context.Context, zipCode, name string) (*model.City, error) {
	if err := check("create city", cityDraft{ZipCode: zipCode, Name: name}); err != nil {
		return nil, err
	}

	c := model.NewCity(zipCode, name)
	err := s.inTx(ctx, "create city", nil, func(ctx context.Context) error {
		_, err := s.pc.Cities().Create(ctx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateRestaurant stores a new restaurant in city with type typ. Both must
// already be stored.
func (s *RestaurantService) CreateRestaurant(ctx context.Context, name, description, website, street string, city *model.City, typ *model.RestaurantType) (*model.Restaurant, error) {
	if err := check("create restaurant", restaurantDraft{Name: name, Website: website, Street: street}); err != nil {
		return nil, err
	}

	r := model.NewRestaurant(name, description, website, street, city, typ)
	err := s.inTx(ctx, "create restaurant", nil, func(ctx context.Context) error {
		_, err := s.pc.Restaurants().Create(ctx, r)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("restaurant", r.ID).Info("restaurant created")
	return r, nil
}

// UpdateRestaurant writes the current fields of r
func (s *RestaurantService) UpdateRestaurant(ctx context.Context, r *model.Restaurant) error {
	if r != nil {
		if err := check("update restaurant", restaurantDraft{Name: r.Name, Website: r.Website, Street: r.Address.Street}); err != nil {
			return err
		}
	}
	return s.inTx(ctx, "update restaurant", nil, func(ctx context.Context) error {
		return s.update(ctx, r)
	})
}

// EditRestaurantAddress moves r to street in city and stores it. On failure
// r keeps its previous address.
func (s *RestaurantService) EditRestaurantAddress(ctx context.Context, r *model.Restaurant, street string, city *model.City) error {
	if r == nil || city == nil {
		return &OperationError{Op: "edit restaurant address", Err: mapper.ErrInvalidArgument}
	}
	if street == "" {
		street = r.Address.Street
	}

	prev := r.Address
	r.Address = model.Localisation{Street: street, City: city}
	return s.inTx(ctx, "edit restaurant address", func() { r.Address = prev }, func(ctx context.Context) error {
		return s.update(ctx, r)
	})
}

// EditRestaurantType changes the type of r and stores it. On failure r
// keeps its previous type.
func (s *RestaurantService) EditRestaurantType(ctx context.Context, r *model.Restaurant, typ *model.RestaurantType) error {
	if r == nil || typ == nil {
		return &OperationError{Op: "edit restaurant type", Err: mapper.ErrInvalidArgument}
	}
	if typ == r.Type {
		return nil
	}

	prev := r.Type
	r.Type = typ
	return s.inTx(ctx, "edit restaurant type", func() { r.Type = prev }, func(ctx context.Context) error {
		return s.update(ctx, r)
	})
}

// DeleteRestaurant deletes r. Whether its evaluations go with it depends on
// the session's delete policy.
func (s *RestaurantService) DeleteRestaurant(ctx context.Context, r *model.Restaurant) error {
	return s.inTx(ctx, "delete restaurant", nil, func(ctx context.Context) error {
		ok, err := s.pc.Restaurants().Delete(ctx, r)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf("restaurant %d is not stored", r.ID)
		}
		return nil
	})
}

func (s *RestaurantService) update(ctx context.Context, r *model.Restaurant) error {
	ok, err := s.pc.Restaurants().Update(ctx, r)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("restaurant %d is not stored", r.ID)
	}
	return nil
}
