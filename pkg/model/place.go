package model

// City is referenced by restaurants through their address.
type City struct {
	ID      int64
	ZipCode string
	Name    string

	restaurants []*Restaurant
}

// NewCity returns an unpersisted city.
func NewCity(zipCode, name string) *City {
	return &City{ZipCode: zipCode, Name: name}
}

// Key returns the city id.
func (c *City) Key() int64 { return c.ID }

// Restaurants returns the restaurants of this city materialized in the
// current session.
func (c *City) Restaurants() []*Restaurant { return snapshot(c.restaurants) }

// AddRestaurant links r to the city.
func (c *City) AddRestaurant(r *Restaurant) { c.restaurants = addMember(c.restaurants, r) }

// RemoveRestaurant unlinks r and reports whether it was linked.
func (c *City) RemoveRestaurant(r *Restaurant) bool {
	var ok bool
	c.restaurants, ok = removeMember(c.restaurants, r)
	return ok
}

// HasRestaurant reports whether r is linked to the city.
func (c *City) HasRestaurant(r *Restaurant) bool { return containsMember(c.restaurants, r) }

// RestaurantType is the gastronomic category of a restaurant.
type RestaurantType struct {
	ID          int64
	Label       string
	Description string

	restaurants []*Restaurant
}

// NewRestaurantType returns an unpersisted restaurant type.
func NewRestaurantType(label, description string) *RestaurantType {
	return &RestaurantType{Label: label, Description: description}
}

// Key returns the type id.
func (t *RestaurantType) Key() int64 { return t.ID }

// Restaurants returns the restaurants of this type materialized in the
// current session.
func (t *RestaurantType) Restaurants() []*Restaurant { return snapshot(t.restaurants) }

// AddRestaurant links r to the type.
func (t *RestaurantType) AddRestaurant(r *Restaurant) { t.restaurants = addMember(t.restaurants, r) }

// RemoveRestaurant unlinks r and reports whether it was linked.
func (t *RestaurantType) RemoveRestaurant(r *Restaurant) bool {
	var ok bool
	t.restaurants, ok = removeMember(t.restaurants, r)
	return ok
}

// HasRestaurant reports whether r is linked to the type.
func (t *RestaurantType) HasRestaurant(r *Restaurant) bool { return containsMember(t.restaurants, r) }

// Localisation is a street address within a city.
type Localisation struct {
	Street string
	City   *City
}

// Restaurant is the aggregate root of the guide.
type Restaurant struct {
	ID          int64
	Name        string
	Description string
	Website     string
	Address     Localisation
	Type        *RestaurantType

	evaluations       []Evaluation
	evaluationsLoaded bool
}

// NewRestaurant returns an unpersisted restaurant. Its evaluation set is
// considered loaded (and empty) since nothing can reference it yet.
func NewRestaurant(name, description, website, street string, city *City, typ *RestaurantType) *Restaurant {
	return &Restaurant{
		Name:              name,
		Description:       description,
		Website:           website,
		Address:           Localisation{Street: street, City: city},
		Type:              typ,
		evaluationsLoaded: true,
	}
}

// Key returns the restaurant id.
func (r *Restaurant) Key() int64 { return r.ID }

// City is a shortcut for the address city.
func (r *Restaurant) City() *City { return r.Address.City }

// Evaluations returns the evaluation set, basic and complete evaluations
// together. It is empty until EvaluationsLoaded reports true.
func (r *Restaurant) Evaluations() []Evaluation { return snapshot(r.evaluations) }

// EvaluationsLoaded reports whether the evaluation set has been resolved.
func (r *Restaurant) EvaluationsLoaded() bool { return r.evaluationsLoaded }

// SetEvaluations replaces the evaluation set and marks it resolved.
func (r *Restaurant) SetEvaluations(evaluations []Evaluation) {
	r.evaluations = nil
	for _, e := range evaluations {
		r.evaluations = addEvaluation(r.evaluations, e)
	}
	r.evaluationsLoaded = true
}

// ResetEvaluations drops the evaluation set; it must be resolved again.
func (r *Restaurant) ResetEvaluations() {
	r.evaluations = nil
	r.evaluationsLoaded = false
}

// AddEvaluation links e to the restaurant.
func (r *Restaurant) AddEvaluation(e Evaluation) { r.evaluations = addEvaluation(r.evaluations, e) }

// RemoveEvaluation unlinks e and reports whether it was linked.
func (r *Restaurant) RemoveEvaluation(e Evaluation) bool {
	for i, existing := range r.evaluations {
		if sameEvaluation(existing, e) {
			r.evaluations = append(r.evaluations[:i], r.evaluations[i+1:]...)
			return true
		}
	}
	return false
}

// HasEvaluation reports whether e belongs to the evaluation set.
func (r *Restaurant) HasEvaluation(e Evaluation) bool {
	for _, existing := range r.evaluations {
		if sameEvaluation(existing, e) {
			return true
		}
	}
	return false
}

// BasicEvaluations filters the evaluation set.
func (r *Restaurant) BasicEvaluations() []*BasicEvaluation {
	var out []*BasicEvaluation
	for _, e := range r.evaluations {
		if b, ok := e.(*BasicEvaluation); ok {
			out = append(out, b)
		}
	}
	return out
}

// CompleteEvaluations filters the evaluation set.
func (r *Restaurant) CompleteEvaluations() []*CompleteEvaluation {
	var out []*CompleteEvaluation
	for _, e := range r.evaluations {
		if c, ok := e.(*CompleteEvaluation); ok {
			out = append(out, c)
		}
	}
	return out
}

func addEvaluation(set []Evaluation, e Evaluation) []Evaluation {
	for i, existing := range set {
		if sameEvaluation(existing, e) {
			set[i] = e
			return set
		}
	}
	return append(set, e)
}

func sameEvaluation(a, b Evaluation) bool {
	if a == b {
		return true
	}
	return a.Kind() == b.Kind() && a.Key() != 0 && a.Key() == b.Key()
}
