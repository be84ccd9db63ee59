package model

// Course is owned by the course CRUD surface; the workspace core only
// reads it. RequiredQuizPoints is the certificate threshold.
type Course struct {
	BaseModel
	Title              string         `gorm:"size:255;not null" json:"title"`
	Description        string         `gorm:"type:text" json:"description"`
	RequiredQuizPoints int            `gorm:"default:0" json:"requiredQuizPoints"`
	Modules            []CourseModule `gorm:"foreignKey:CourseID" json:"modules,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

type CourseModule struct {
	BaseModel
	CourseID    uint    `gorm:"index;not null" json:"courseId"`
	Title       string  `gorm:"size:255;not null" json:"title"`
	Description string  `gorm:"type:text" json:"description"`
	Order       int     `gorm:"default:0" json:"order"`
	Stages      []Stage `gorm:"foreignKey:ModuleID" json:"stages,omitempty"`
}

func (CourseModule) TableName() string {
	return "course_modules"
}

// OrderedStages flattens the module tree into course order: modules by
// Order, then stages by Order within each module.
func (c *Course) OrderedStages() []*Stage {
	var out []*Stage
	for mi := range c.Modules {
		for si := range c.Modules[mi].Stages {
			out = append(out, &c.Modules[mi].Stages[si])
		}
	}
	return out
}
