// Package lesson holds the static course catalog and drives a learner
// through a lesson's steps.
package lesson

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/champ/internal/domain"
)

// Loader reads courses and lessons from a directory tree:
//
//	<course>/course.yaml
//	<course>/lessons/<lesson>.yaml
type Loader struct {
	fsys fs.FS
	root string
}

// NewLoader creates a loader rooted at root within fsys
func NewLoader(fsys fs.FS, root string) *Loader {
	if root == "" {
		root = "."
	}
	return &Loader{fsys: fsys, root: root}
}

// LoadCourse loads one course definition
func (l *Loader) LoadCourse(dir string) (*domain.Course, error) {
	data, err := fs.ReadFile(l.fsys, path.Join(l.root, dir, "course.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read course file: %w", err)
	}

	var c domain.Course
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse course file: %w", err)
	}
	if c.ID == "" {
		c.ID = dir
	}
	if _, err := domain.ParseLanguage(string(c.Language)); err != nil {
		return nil, fmt.Errorf("course %s: %w", c.ID, err)
	}
	return &c, nil
}

// LoadLesson loads one lesson of a course
func (l *Loader) LoadLesson(dir string, course *domain.Course, slug string) (*domain.Lesson, error) {
	data, err := fs.ReadFile(l.fsys, path.Join(l.root, dir, "lessons", slug+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("read lesson file: %w", err)
	}

	var lesson domain.Lesson
	if err := yaml.Unmarshal(data, &lesson); err != nil {
		return nil, fmt.Errorf("parse lesson file: %w", err)
	}
	if lesson.ID == "" {
		lesson.ID = course.ID + "-" + slug
	}
	lesson.CourseID = course.ID
	lesson.Language = course.Language

	if err := validateLesson(&lesson); err != nil {
		return nil, err
	}
	return &lesson, nil
}

func validateLesson(l *domain.Lesson) error {
	if len(l.Steps) == 0 {
		return fmt.Errorf("lesson %s: no steps", l.ID)
	}
	seen := make(map[string]bool, len(l.Steps))
	for i, s := range l.Steps {
		if s.ID == "" {
			return fmt.Errorf("lesson %s: step %d has no id", l.ID, i)
		}
		if seen[s.ID] {
			return fmt.Errorf("lesson %s: duplicate step id %s", l.ID, s.ID)
		}
		seen[s.ID] = true

		switch s.Type {
		case domain.StepInstruction:
		case domain.StepCode:
			if strings.TrimSpace(s.TestCode) == "" {
				return fmt.Errorf("lesson %s: code step %s has no tests", l.ID, s.ID)
			}
		case domain.StepFillBlank:
			if len(s.Blanks) == 0 {
				return fmt.Errorf("lesson %s: fill-blank step %s has no blanks", l.ID, s.ID)
			}
		case domain.StepQuiz:
			if s.Answer < 0 || s.Answer >= len(s.Options) {
				return fmt.Errorf("lesson %s: quiz step %s answer out of range", l.ID, s.ID)
			}
		default:
			return fmt.Errorf("lesson %s: step %s has unknown type %q", l.ID, s.ID, s.Type)
		}
	}
	return nil
}

// LoadAll loads every course directory containing a course.yaml
func (l *Loader) LoadAll() ([]*domain.Course, []*domain.Lesson, error) {
	entries, err := fs.ReadDir(l.fsys, l.root)
	if err != nil {
		return nil, nil, fmt.Errorf("read courses directory: %w", err)
	}

	var courses []*domain.Course
	var lessons []*domain.Lesson
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := fs.Stat(l.fsys, path.Join(l.root, entry.Name(), "course.yaml")); err != nil {
			continue
		}

		course, err := l.LoadCourse(entry.Name())
		if err != nil {
			return nil, nil, fmt.Errorf("load course %s: %w", entry.Name(), err)
		}

		ids := make([]string, 0, len(course.Lessons))
		for _, slug := range course.Lessons {
			lesson, err := l.LoadLesson(entry.Name(), course, slug)
			if err != nil {
				return nil, nil, fmt.Errorf("load lesson %s/%s: %w", course.ID, slug, err)
			}
			lessons = append(lessons, lesson)
			ids = append(ids, lesson.ID)
		}
		course.Lessons = ids
		courses = append(courses, course)
	}

	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, lessons, nil
}

// Catalog is the immutable in-memory lesson store
type Catalog struct {
	courses  []*domain.Course
	byCourse map[string]*domain.Course
	lessons  map[string]*domain.Lesson
}

// NewCatalog loads everything from loader
func NewCatalog(loader *Loader) (*Catalog, error) {
	courses, lessons, err := loader.LoadAll()
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		courses:  courses,
		byCourse: make(map[string]*domain.Course, len(courses)),
		lessons:  make(map[string]*domain.Lesson, len(lessons)),
	}
	for _, course := range courses {
		c.byCourse[course.ID] = course
	}
	for _, lesson := range lessons {
		if _, dup := c.lessons[lesson.ID]; dup {
			return nil, fmt.Errorf("duplicate lesson id %s", lesson.ID)
		}
		c.lessons[lesson.ID] = lesson
	}
	return c, nil
}

// Courses returns all courses ordered by ID
func (c *Catalog) Courses() []*domain.Course {
	return c.courses
}

// Course returns a course by ID
func (c *Catalog) Course(id string) (*domain.Course, error) {
	course, ok := c.byCourse[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCourseNotFound, id)
	}
	return course, nil
}

// Lesson returns a lesson by ID
func (c *Catalog) Lesson(id string) (*domain.Lesson, error) {
	lesson, ok := c.lessons[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLessonNotFound, id)
	}
	return lesson, nil
}

// CourseLessons returns a course's lessons in order
func (c *Catalog) CourseLessons(courseID string) ([]*domain.Lesson, error) {
	course, err := c.Course(courseID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Lesson, 0, len(course.Lessons))
	for _, id := range course.Lessons {
		out = append(out, c.lessons[id])
	}
	return out, nil
}

// Count returns the number of lessons
func (c *Catalog) Count() int {
	return len(c.lessons)
}
