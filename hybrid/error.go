package hybrid

import (
	"github.com/fishy/errbatch"
)

// Make sure *UploadError satisfies error interface.
var _ error = (*UploadError)(nil)

// UploadError is returned by Upload when more than one thing went wrong:
// several documents were rejected with "403 Forbidden",
// or some were and then another error stopped the upload.
//
// errors.As and errors.Is see Err first, then every error in Forbidden,
// so docsync.StatusOf reports the status of the error that stopped the upload
// when there's one.
type UploadError struct {
	// Err is the error that stopped the upload, nil if it ran to the end.
	Err error

	// Forbidden are the errors of the documents rejected with 403.
	Forbidden []error
}

func (err *UploadError) Error() string {
	var batch errbatch.ErrBatch
	batch.Add(err.Err)
	for _, e := range err.Forbidden {
		batch.Add(e)
	}
	return "hybrid: upload failed: " + batch.Error()
}

// Unwrap returns Err (if any) followed by Forbidden.
func (err *UploadError) Unwrap() []error {
	errs := make([]error, 0, len(err.Forbidden)+1)
	if err.Err != nil {
		errs = append(errs, err.Err)
	}
	return append(errs, err.Forbidden...)
}

// uploadResult combines the error stopping an upload with the 403 errors
// collected before.
//
// A lone error is returned as is.
func uploadResult(abort error, forbidden *errbatch.ErrBatch) error {
	errs := forbidden.GetErrors()
	switch {
	case abort == nil && len(errs) == 0:
		return nil
	case abort == nil && len(errs) == 1:
		return errs[0]
	case abort != nil && len(errs) == 0:
		return abort
	}
	return &UploadError{
		Err:       abort,
		Forbidden: errs,
	}
}
