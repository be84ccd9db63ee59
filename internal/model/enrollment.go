package model

import "time"

// Enrollment pairs a learner with a course. CompletedAt and
// ProgressPercent are caches maintained by the workspace core's
// synchronization step; everything else belongs to the enrollment
// lifecycle (registration/approval), which is external.
type Enrollment struct {
	BaseModel
	UserID            uint       `gorm:"uniqueIndex:idx_enrollment_user_course;not null" json:"userId"`
	CourseID          uint       `gorm:"uniqueIndex:idx_enrollment_user_course;not null" json:"courseId"`
	User              *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Course            *Course    `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	ProgressPercent   int        `gorm:"default:0" json:"progressPercent"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	CertificateSerial string     `gorm:"size:36" json:"certificateSerial,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
