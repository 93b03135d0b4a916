package mapper

import "time"

// Table names
const (
	tableCities              = "cities"
	tableRestaurantTypes     = "restaurant_types"
	tableRestaurants         = "restaurants"
	tableCriteria            = "evaluation_criteria"
	tableBasicEvaluations    = "basic_evaluations"
	tableCompleteEvaluations = "complete_evaluations"
	tableGrades              = "grades"
	tableSequences           = "sequences"
)

// record is implemented by every row type: one struct per table, carrying
// the GORM schema used by AutoMigrate and by row scans
type record interface {
	TableName() string
	GetPrimaryKeyValue() int64
}

type cityRow struct {
	ID      int64  `gorm:"primaryKey;autoIncrement"`
	ZipCode string `gorm:"size:100;not null"`
	Name    string `gorm:"size:100;not null"`
}

func (cityRow) TableName() string           { return tableCities }
func (r cityRow) GetPrimaryKeyValue() int64 { return r.ID }

type restaurantTypeRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Label       string `gorm:"size:100;not null;uniqueIndex"`
	Description string `gorm:"type:text"`
}

func (restaurantTypeRow) TableName() string           { return tableRestaurantTypes }
func (r restaurantTypeRow) GetPrimaryKeyValue() int64 { return r.ID }

type criteriaRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement:false"`
	Name        string `gorm:"size:100;not null;uniqueIndex"`
	Description string `gorm:"size:512"`
}

func (criteriaRow) TableName() string           { return tableCriteria }
func (r criteriaRow) GetPrimaryKeyValue() int64 { return r.ID }

type restaurantRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"size:100;not null;uniqueIndex"`
	Description string `gorm:"type:text"`
	Website     string `gorm:"size:100"`
	Street      string `gorm:"column:street;size:100;not null"`
	CityID      int64  `gorm:"not null;index"`
	TypeID      int64  `gorm:"not null;index"`

	// belongs-to associations, only used to declare the foreign keys
	City *cityRow           `gorm:"foreignKey:CityID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Type *restaurantTypeRow `gorm:"foreignKey:TypeID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
}

func (restaurantRow) TableName() string           { return tableRestaurants }
func (r restaurantRow) GetPrimaryKeyValue() int64 { return r.ID }

type basicEvaluationRow struct {
	ID           int64     `gorm:"primaryKey;autoIncrement:false"`
	VisitDate    time.Time `gorm:"type:date;not null"`
	Liked        bool      `gorm:"not null"`
	IPAddress    string    `gorm:"column:ip_address;size:100;not null"`
	RestaurantID int64     `gorm:"not null;index"`

	Restaurant *restaurantRow `gorm:"foreignKey:RestaurantID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
}

func (basicEvaluationRow) TableName() string           { return tableBasicEvaluations }
func (r basicEvaluationRow) GetPrimaryKeyValue() int64 { return r.ID }

type completeEvaluationRow struct {
	ID           int64     `gorm:"primaryKey;autoIncrement:false"`
	VisitDate    time.Time `gorm:"type:date;not null"`
	Comment      string    `gorm:"type:text;not null"`
	Username     string    `gorm:"size:100;not null"`
	RestaurantID int64     `gorm:"not null;index"`

	Restaurant *restaurantRow `gorm:"foreignKey:RestaurantID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
}

func (completeEvaluationRow) TableName() string           { return tableCompleteEvaluations }
func (r completeEvaluationRow) GetPrimaryKeyValue() int64 { return r.ID }

type gradeRow struct {
	ID           int64 `gorm:"primaryKey;autoIncrement:false"`
	Score        int   `gorm:"not null"`
	EvaluationID int64 `gorm:"not null;index"`
	CriteriaID   int64 `gorm:"not null;index"`

	Evaluation *completeEvaluationRow `gorm:"foreignKey:EvaluationID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Criteria   *criteriaRow           `gorm:"foreignKey:CriteriaID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
}

func (gradeRow) TableName() string           { return tableGrades }
func (r gradeRow) GetPrimaryKeyValue() int64 { return r.ID }

type sequenceRow struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value int64  `gorm:"not null"`
}

func (sequenceRow) TableName() string { return tableSequences }

// Models returns the row types backing every table, in creation order, for
// db.Manager.Migrate
func Models() []interface{} {
	return []interface{}{
		&cityRow{},
		&restaurantTypeRow{},
		&criteriaRow{},
		&restaurantRow{},
		&basicEvaluationRow{},
		&completeEvaluationRow{},
		&gradeRow{},
		&sequenceRow{},
	}
}

// visitDay keeps the calendar day of t; visit dates are stored as DATE
func visitDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
