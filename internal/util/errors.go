package util

import "errors"

var (
	ErrEmailRegistered    = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// NotFound: the claimed Course -> Module -> Stage hierarchy does not
	// hold. Checked before any state mutation.
	ErrCourseNotFound = errors.New("course not found")
	ErrStageNotFound  = errors.New("stage not found in course")

	// Forbidden: workspace access.
	ErrNotEnrolled = errors.New("not enrolled in course")
	ErrStageLocked = errors.New("stage is locked")

	// ValidationFailure: payload does not match the stage type.
	ErrNotQuizStage    = errors.New("stage has no quiz")
	ErrNotContentStage = errors.New("stage is not a content stage")
	ErrQuizMissing     = errors.New("quiz stage has no quiz definition")
)
