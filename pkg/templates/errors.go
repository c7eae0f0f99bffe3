package templates

import "errors"

var (
	ErrTemplateNotFound = errors.New("templates: template not found")
	ErrInvalidCatalog   = errors.New("templates: invalid catalog")
)
