// Package validate rejects malformed, oversized or wrong-type uploads before
// any processing happens. Every check is evaluated so callers get the full
// list of violations in one pass.
package validate

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"

	"github.com/maauso/inspectmedia/internal/media"
)

// Size bounds applied to every upload.
const (
	MinSize         int64 = 1 << 10
	MaxSize         int64 = 100 << 20
	MaxFilenameRune       = 255
)

// Violation codes.
const (
	CodeTooSmall        = "file_too_small"
	CodeTooLarge        = "file_too_large"
	CodeMIMEType        = "unsupported_mime_type"
	CodeExtension       = "unsupported_extension"
	CodeFilenameTooLong = "filename_too_long"
)

// DefaultMIMETypes lists the accepted declared content types.
var DefaultMIMETypes = []string{
	"video/mp4",
	"video/webm",
	"video/avi",
	"video/mov",
	"video/quicktime",
	"video/x-msvideo",
	"video/3gpp",
	"video/x-ms-wmv",
}

// DefaultExtensions lists the accepted file extensions, without the dot.
var DefaultExtensions = []string{"mp4", "webm", "avi", "mov", "qt", "3gp", "wmv", "mkv"}

// Violation is a single failed check.
type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the outcome of validating one asset.
type Result struct {
	OK         bool        `json:"ok"`
	Violations []Violation `json:"violations,omitempty"`
}

// Messages returns the human-readable reason for each violation, in order.
func (r Result) Messages() []string {
	out := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		out[i] = v.Message
	}
	return out
}

// ValidationError is returned by Check when an asset fails validation.
type ValidationError struct {
	Result Result
}

func (e *ValidationError) Error() string {
	return "invalid media asset: " + strings.Join(e.Result.Messages(), "; ")
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// assetFields maps AssetInfo onto validator tags. Field order defines the
// order of reported violations.
type assetFields struct {
	Size      int64  `validate:"minsize,maxsize"`
	MIMEType  string `validate:"videomime"`
	Extension string `validate:"videoext"`
	Filename  string `validate:"max=255"`
}

// Validator checks asset metadata against fixed limits and whitelists.
type Validator struct {
	v          *validator.Validate
	minSize    int64
	maxSize    int64
	mimeTypes  []string
	extensions []string
}

// Option configures a Validator.
type Option func(*Validator)

// WithSizeRange overrides the accepted size range.
func WithSizeRange(minSize, maxSize int64) Option {
	return func(v *Validator) {
		if minSize > 0 && maxSize >= minSize {
			v.minSize = minSize
			v.maxSize = maxSize
		}
	}
}

// WithMIMETypes overrides the MIME whitelist.
func WithMIMETypes(types ...string) Option {
	return func(v *Validator) {
		if len(types) > 0 {
			v.mimeTypes = types
		}
	}
}

// WithExtensions overrides the extension whitelist.
func WithExtensions(exts ...string) Option {
	return func(v *Validator) {
		if len(exts) > 0 {
			v.extensions = exts
		}
	}
}

// New creates a Validator with the default limits.
func New(opts ...Option) *Validator {
	val := &Validator{
		minSize:    MinSize,
		maxSize:    MaxSize,
		mimeTypes:  DefaultMIMETypes,
		extensions: DefaultExtensions,
	}
	for _, opt := range opts {
		opt(val)
	}

	v := validator.New()
	mustRegister(v, "minsize", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() >= val.minSize
	})
	mustRegister(v, "maxsize", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() <= val.maxSize
	})
	mustRegister(v, "videomime", func(fl validator.FieldLevel) bool {
		return slices.Contains(val.mimeTypes, strings.ToLower(strings.TrimSpace(fl.Field().String())))
	})
	mustRegister(v, "videoext", func(fl validator.FieldLevel) bool {
		return slices.Contains(val.extensions, fl.Field().String())
	})
	val.v = v

	return val
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validate: register %s: %v", tag, err))
	}
}

// Validate runs every check on info and returns the complete result.
func (val *Validator) Validate(info media.AssetInfo) Result {
	fields := assetFields{
		Size:      info.Size,
		MIMEType:  info.MIMEType,
		Extension: info.Extension(),
		Filename:  info.Filename,
	}

	err := val.v.Struct(fields)
	if err == nil {
		return Result{OK: true}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Result{Violations: []Violation{{Field: "asset", Code: "invalid", Message: err.Error()}}}
	}

	res := Result{Violations: make([]Violation, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		res.Violations = append(res.Violations, val.describe(fe, info))
	}
	return res
}

// Check validates info and returns a *ValidationError when it fails.
func (val *Validator) Check(info media.AssetInfo) error {
	if res := val.Validate(info); !res.OK {
		return &ValidationError{Result: res}
	}
	return nil
}

func (val *Validator) describe(fe validator.FieldError, info media.AssetInfo) Violation {
	switch fe.Tag() {
	case "minsize":
		return Violation{
			Field: "size",
			Code:  CodeTooSmall,
			Message: fmt.Sprintf("file too small: %s is below the %s minimum (possibly corrupted)",
				humanize.IBytes(uint64(max(info.Size, 0))), humanize.IBytes(uint64(val.minSize))),
		}
	case "maxsize":
		return Violation{
			Field: "size",
			Code:  CodeTooLarge,
			Message: fmt.Sprintf("file too large: %s exceeds the %s maximum",
				humanize.IBytes(uint64(info.Size)), humanize.IBytes(uint64(val.maxSize))),
		}
	case "videomime":
		mime := info.MIMEType
		if mime == "" {
			mime = "(none)"
		}
		return Violation{
			Field:   "mimeType",
			Code:    CodeMIMEType,
			Message: fmt.Sprintf("unsupported file type %s; allowed: %s", mime, strings.Join(val.mimeTypes, ", ")),
		}
	case "videoext":
		return Violation{
			Field: "extension",
			Code:  CodeExtension,
			Message: fmt.Sprintf("unsupported file extension .%s; allowed: %s",
				info.Extension(), strings.Join(val.extensions, ", ")),
		}
	default:
		return Violation{
			Field:   "filename",
			Code:    CodeFilenameTooLong,
			Message: fmt.Sprintf("file name too long (maximum %d characters)", MaxFilenameRune),
		}
	}
}
