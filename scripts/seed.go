// Seeds a demo course so the workspace can be exercised against a
// fresh database.
//
// Usage: go run scripts/seed.go
package main

import (
	"log"
	"os"

	"github.com/evanightly/pedavue-sub000/internal/config"
	"github.com/evanightly/pedavue-sub000/internal/model"
	"github.com/evanightly/pedavue-sub000/pkg/database"
	"github.com/evanightly/pedavue-sub000/pkg/logger"

	"gopkg.in/yaml.v3"
)

func main() {
	data, err := os.ReadFile("configs/config.yaml")
	if err != nil {
		log.Fatalf("cannot read config file: %v", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("cannot parse config file: %v", err)
	}

	logger.InitLogger(&cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	var existing int64
	db.Model(&model.Course{}).Where("title = ?", "Go Fundamentals").Count(&existing)
	if existing > 0 {
		log.Println("demo course already present, nothing to do")
		return
	}

	quiz := model.Quiz{
		Name:             "Basics Checkpoint",
		Description:      "Covers the first module.",
		DurationMinutes:  10,
		ShuffleQuestions: true,
		Questions: []model.QuizQuestion{
			{
				Text:           "Which keyword declares a new variable with inferred type?",
				Points:         10,
				Order:          1,
				ShuffleOptions: true,
				Options: []model.QuizOption{
					{Text: ":=", IsCorrect: true, Order: 1},
					{Text: "var only", Order: 2},
					{Text: "let", Order: 3},
				},
			},
			{
				Text:   "Select every built-in reference type.",
				Points: 5,
				Order:  2,
				Options: []model.QuizOption{
					{Text: "map", IsCorrect: true, Order: 1},
					{Text: "chan", IsCorrect: true, Order: 2},
					{Text: "int", Order: 3},
				},
			},
		},
	}
	if err := db.Create(&quiz).Error; err != nil {
		log.Fatalf("seeding quiz failed: %v", err)
	}

	course := model.Course{
		Title:              "Go Fundamentals",
		Description:        "A short demo course for the workspace.",
		RequiredQuizPoints: 12,
		Modules: []model.CourseModule{
			{
				Title: "Basics",
				Order: 1,
				Stages: []model.Stage{
					{Title: "Introduction", Order: 1, Type: model.StageContent, EstimatedMinutes: 10},
					{Title: "Basics Checkpoint", Order: 2, Type: model.StageQuiz, QuizID: &quiz.ID},
				},
			},
			{
				Title: "Closing",
				Order: 2,
				Stages: []model.Stage{
					{Title: "Wrap-up", Order: 1, Type: model.StageContent, EstimatedMinutes: 5},
				},
			},
		},
	}
	if err := db.Create(&course).Error; err != nil {
		log.Fatalf("seeding course failed: %v", err)
	}

	log.Printf("seeded course %d with %d modules", course.ID, len(course.Modules))
}
