// Package core provides the execution model types for selenium-runner.
package core

// ArtifactRef points at a captured artifact.
// Path is relative to the report directory, File is the copy in the screenshot directory.
type ArtifactRef struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Path        string `json:"path"`
	File        string `json:"file,omitempty"`
}

// IsEmpty reports whether the reference points at nothing.
func (a ArtifactRef) IsEmpty() bool {
	return a.Path == "" && a.File == ""
}

// Common content types
const (
	ContentTypePNG  = "image/png"
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
	ContentTypePDF  = "application/pdf"
)

// NewScreenshotRef creates a screenshot reference
func NewScreenshotRef(name, path, file string) ArtifactRef {
	return ArtifactRef{
		Name:        name,
		ContentType: ContentTypePNG,
		Path:        path,
		File:        file,
	}
}
