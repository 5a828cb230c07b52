package render

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrTemplateNotFound is returned when no template matches a feature name.
// The dev server answers it with a 404.
var ErrTemplateNotFound = errors.New("template not found")

// DocumentNotFoundError is returned when an explicit entity id has no
// record in the content source.
type DocumentNotFoundError struct {
	EntityID string
	Locale   string
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("Could not find document data for entityId and locale: %s %s", e.EntityID, e.Locale)
}

// RenderError scopes a failure to one page of one template.
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering %s: %v", e.Template, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func (e *RenderError) Cause() error {
	return e.Err
}
