package wizard

import (
	stderrors "errors"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeNotFound       = "REPORT_NOT_FOUND"
	ErrCodeFrozen         = "REPORT_FROZEN"
	ErrCodeIncomplete     = "REPORT_INCOMPLETE"
	ErrCodeSectionInvalid = "SECTION_INVALID"
	ErrCodeUnavailable    = "PERSISTENCE_UNAVAILABLE"
	ErrCodePayloadInvalid = "PAYLOAD_INVALID"
)

var (
	ErrNotFound = apperrors.New("report not found", apperrors.CategoryNotFound).
			WithTextCode(ErrCodeNotFound)
	ErrFrozen = apperrors.New("report has been submitted and can no longer change", apperrors.CategoryConflict).
			WithTextCode(ErrCodeFrozen)
	ErrIncomplete = apperrors.New("report is missing required sections", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeIncomplete)
	ErrUnavailable = apperrors.New("report storage is unavailable", apperrors.CategoryExternal).
			WithTextCode(ErrCodeUnavailable)
	ErrPayloadInvalid = apperrors.New("section payload is invalid", apperrors.CategoryBadInput).
				WithTextCode(ErrCodePayloadInvalid)
)

func newError(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// NotFound reports an unknown response id.
func NotFound(responseID string) error {
	return newError(ErrNotFound, "", nil, map[string]any{"response_id": responseID})
}

// Frozen reports a write against a submitted report.
func Frozen(responseID string) error {
	return newError(ErrFrozen, "", nil, map[string]any{"response_id": responseID})
}

// Incomplete reports a submission attempted before every gate holds.
func Incomplete(responseID string, missing Step) error {
	return newError(ErrIncomplete, "", nil, map[string]any{
		"response_id": responseID,
		"step":        string(missing),
	})
}

// Unavailable wraps a storage or transport failure.
func Unavailable(source error, op string) error {
	return newError(ErrUnavailable, "", source, map[string]any{"operation": op})
}

// PayloadInvalid reports a patch body that does not match the section shape.
func PayloadInvalid(step Step, source error) error {
	return newError(ErrPayloadInvalid, "", source, map[string]any{"section": string(step)})
}

// SectionInvalid carries field -> reason from Schema.Validate.
func SectionInvalid(step Step, fieldErrors map[string]string) error {
	err := apperrors.NewValidationFromMap("section has invalid answers", fieldErrors).
		WithTextCode(ErrCodeSectionInvalid).
		WithMetadata(map[string]any{"section": string(step)})
	return err
}

// Code returns the text code of an error produced by this package, or "".
func Code(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

func IsNotFound(err error) bool    { return Code(err) == ErrCodeNotFound }
func IsFrozen(err error) bool      { return Code(err) == ErrCodeFrozen }
func IsIncomplete(err error) bool  { return Code(err) == ErrCodeIncomplete }
func IsUnavailable(err error) bool { return Code(err) == ErrCodeUnavailable }

// FieldErrors extracts field -> reason from a SectionInvalid error.
func FieldErrors(err error) map[string]string {
	list, ok := apperrors.GetValidationErrors(err)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(list))
	for _, fe := range list {
		out[fe.Field] = fe.Message
	}
	return out
}
