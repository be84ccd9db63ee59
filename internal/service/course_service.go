package service

import (
	"time"

	"github.com/evanightly/pedavue-sub000/internal/model"
	"github.com/evanightly/pedavue-sub000/internal/repository"
)

// CourseService is thin read-only plumbing for course navigation.
// Course authoring lives outside this system; the workspace only
// needs to list what a learner is enrolled in.
type CourseService struct {
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
}

func NewCourseService(courseRepo *repository.CourseRepository, enrollmentRepo *repository.EnrollmentRepository) *CourseService {
	return &CourseService{
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
	}
}

type CourseListing struct {
	ID              uint       `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Enrolled        bool       `json:"enrolled"`
	ProgressPercent int        `json:"progressPercent"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

// ListCourses returns every course with the caller's cached enrollment
// progress attached where one exists.
func (s *CourseService) ListCourses(userID uint) ([]CourseListing, error) {
	courses, err := s.CourseRepo.List()
	if err != nil {
		return nil, err
	}
	enrollments, err := s.EnrollmentRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	byCourse := make(map[uint]*model.Enrollment, len(enrollments))
	for i := range enrollments {
		byCourse[enrollments[i].CourseID] = &enrollments[i]
	}

	listings := make([]CourseListing, 0, len(courses))
	for i := range courses {
		listing := CourseListing{
			ID:          courses[i].ID,
			Title:       courses[i].Title,
			Description: courses[i].Description,
		}
		if enrollment, ok := byCourse[courses[i].ID]; ok {
			listing.Enrolled = true
			listing.ProgressPercent = enrollment.ProgressPercent
			listing.CompletedAt = enrollment.CompletedAt
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// GetCourse returns one course with the caller's cached enrollment
// progress, or Enrolled=false when the caller is not enrolled.
func (s *CourseService) GetCourse(userID, courseID uint) (*CourseListing, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, err
	}

	listing := &CourseListing{
		ID:          course.ID,
		Title:       course.Title,
		Description: course.Description,
	}
	enrollment, err := s.EnrollmentRepo.FindByUserAndCourse(userID, courseID)
	if err == nil {
		listing.Enrolled = true
		listing.ProgressPercent = enrollment.ProgressPercent
		listing.CompletedAt = enrollment.CompletedAt
	}
	return listing, nil
}

// Enroll creates the enrollment row if it does not exist yet.
func (s *CourseService) Enroll(userID, courseID uint) (*model.Enrollment, error) {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		return nil, err
	}
	if existing, err := s.EnrollmentRepo.FindByUserAndCourse(userID, courseID); err == nil {
		return existing, nil
	}
	enrollment := &model.Enrollment{UserID: userID, CourseID: courseID}
	if err := s.EnrollmentRepo.Create(enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}
