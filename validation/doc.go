// Package validation checks caller input before any I/O happens.
//
// Struct tag validation (go-playground/validator) covers single-field rules;
// the programmatic Validator covers cross-field rules such as "exactly one of".
// Both report failures as *errors.AppError.
//
//	type UploadSpec struct {
//	    URL      string `json:"url" validate:"required"`
//	    MimeType string `json:"mime_type" validate:"required,mimetype"`
//	}
//	err := validation.Validate(spec)
//
//	v := validation.New()
//	v.ExactlyOne("payload", map[string]bool{"data": hasData, "file_path": hasPath})
//	err := v.Validate()
package validation
