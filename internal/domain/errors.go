package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// Guard failures are reported with these values; services log them and
// leave state untouched.
// -----------------------------------------------------------------------------

// Lesson errors
var (
	ErrLessonNotFound     = errors.New("lesson not found")
	ErrCourseNotFound     = errors.New("course not found")
	ErrLessonAlreadyDone  = errors.New("lesson already completed")
	ErrStepNotProceedable = errors.New("step not complete")
	ErrStepOutOfRange     = errors.New("step index out of range")
	ErrWrongStepType      = errors.New("operation not valid for step type")
)

// Sprint errors
var (
	ErrModuleNotFound = errors.New("module not found")
	ErrModuleLocked   = errors.New("module locked")
)

// Recap errors
var (
	ErrNoRecapCandidate = errors.New("no recently completed lesson to recap")
	ErrNoRecap          = errors.New("no recap cached")
)

// Generation errors
var (
	ErrGenerationFailed = errors.New("exercise generation failed")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)
