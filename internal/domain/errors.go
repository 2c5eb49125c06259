package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrCameraNotFound = &AppError{
		Code:       "CAMERA_NOT_FOUND",
		Message:    "Camera not found",
		StatusCode: 404,
	}

	ErrCameraInactive = &AppError{
		Code:       "CAMERA_INACTIVE",
		Message:    "Camera is disabled",
		StatusCode: 409,
	}

	// ErrCameraUnreachable covers connection and authentication failures
	// against the camera. Monitor setup retries it with backoff before
	// giving up.
	ErrCameraUnreachable = &AppError{
		Code:       "CAMERA_UNREACHABLE",
		Message:    "Camera is unreachable or rejected credentials",
		StatusCode: 503,
	}

	ErrMonitorFailed = &AppError{
		Code:       "MONITOR_FAILED",
		Message:    "Camera monitor failed during setup",
		StatusCode: 503,
	}

	// ErrDecodeFailed marks a corrupt or empty snapshot. The recognition
	// pass is skipped and the loop continues.
	ErrDecodeFailed = &AppError{
		Code:       "DECODE_FAILED",
		Message:    "Snapshot could not be decoded",
		StatusCode: 422,
	}

	ErrSnapshotTimeout = &AppError{
		Code:       "SNAPSHOT_TIMEOUT",
		Message:    "No fresh frame within the snapshot deadline",
		StatusCode: 504,
	}

	ErrEndOfStream = &AppError{
		Code:       "END_OF_STREAM",
		Message:    "Camera stream has ended",
		StatusCode: 410,
	}

	// ErrNoFaceDetected is not a failure in the monitoring pipeline: a
	// frame with no faces simply produces no work.
	ErrNoFaceDetected = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No face detected in the image",
		StatusCode: 422,
	}

	ErrNoMatch = &AppError{
		Code:       "NO_MATCH",
		Message:    "No catalog entry within tolerance",
		StatusCode: 404,
	}

	// ErrLivenessRejected is a business decision, observability-only. It
	// is never persisted as an attendance record.
	ErrLivenessRejected = &AppError{
		Code:       "LIVENESS_REJECTED",
		Message:    "Face failed the liveness check, possible spoofing attempt",
		StatusCode: 422,
	}

	// ErrDuplicateSuppressed is the expected steady state while a
	// cooldown window is active for an identity.
	ErrDuplicateSuppressed = &AppError{
		Code:       "DUPLICATE_SUPPRESSED",
		Message:    "Attendance already accepted within the cooldown window",
		StatusCode: 409,
	}

	ErrStreamUnavailable = &AppError{
		Code:       "STREAM_UNAVAILABLE",
		Message:    "Live preview stream could not be opened",
		StatusCode: 503,
	}

	ErrInvalidEmbedding = &AppError{
		Code:       "INVALID_EMBEDDING",
		Message:    "Embedding has the wrong dimensionality",
		StatusCode: 422,
	}
)
