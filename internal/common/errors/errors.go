package commonerrors

import "net/http"

var (
	ErrMissingRequiredEnv = NewDomainError(
		"MISSING_REQUIRED_ENV",
		CategoryValidation,
		http.StatusInternalServerError,
		"missing required environment variable",
	)

	ErrInvalidJWTSecret = NewDomainError(
		"INVALID_JWT_SECRET",
		CategoryValidation,
		http.StatusInternalServerError,
		"JWT_SECRET must be at least 32 bytes",
	)

	ErrSelfFollow = NewDomainError(
		"SELF_FOLLOW",
		CategoryValidation,
		http.StatusBadRequest,
		"cannot follow yourself",
	)

	ErrUserNotFound = NewDomainError(
		"USER_NOT_FOUND",
		CategoryNotFound,
		http.StatusNotFound,
		"user not found",
	)

	ErrPostNotFound = NewDomainError(
		"POST_NOT_FOUND",
		CategoryNotFound,
		http.StatusNotFound,
		"post not found",
	)

	ErrNoImages = NewDomainError(
		"NO_IMAGES",
		CategoryValidation,
		http.StatusBadRequest,
		"post requires at least one image",
	)

	ErrTooManyImages = NewDomainError(
		"TOO_MANY_IMAGES",
		CategoryValidation,
		http.StatusBadRequest,
		"post accepts at most 10 images",
	)

	ErrImageTooLarge = NewDomainError(
		"IMAGE_TOO_LARGE",
		CategoryValidation,
		http.StatusBadRequest,
		"image exceeds maximum size",
	)

	ErrInvalidImageType = NewDomainError(
		"INVALID_IMAGE_TYPE",
		CategoryValidation,
		http.StatusBadRequest,
		"image type not allowed",
	)

	ErrProfileImageNotSet = NewDomainError(
		"PROFILE_IMAGE_NOT_SET",
		CategoryNotFound,
		http.StatusNotFound,
		"profile image not set",
	)

	ErrUsernameAlreadyExists = NewDomainError(
		"USERNAME_ALREADY_EXISTS",
		CategoryConflict,
		http.StatusConflict,
		"username already exists",
	)

	ErrEmailAlreadyExists = NewDomainError(
		"EMAIL_ALREADY_EXISTS",
		CategoryConflict,
		http.StatusConflict,
		"email already exists",
	)

	ErrInvalidCredentials = NewDomainError(
		"INVALID_CREDENTIALS",
		CategoryUnauthorized,
		http.StatusUnauthorized,
		"invalid username or password",
	)

	ErrInvalidToken = NewDomainError(
		"INVALID_TOKEN",
		CategoryUnauthorized,
		http.StatusUnauthorized,
		"token is not valid",
	)

	ErrInvalidSocialStatsType = NewDomainError(
		"INVALID_SOCIAL_STATS_TYPE",
		CategoryValidation,
		http.StatusBadRequest,
		"type must be followers or following",
	)

	ErrDatabaseError = NewDomainError(
		"DATABASE_ERROR",
		CategoryInternal,
		http.StatusInternalServerError,
		"database operation failed",
	)

	ErrStorageError = NewDomainError(
		"STORAGE_ERROR",
		CategoryExternal,
		http.StatusBadGateway,
		"object storage operation failed",
	)

	ErrGraphWriteIncomplete = NewDomainError(
		"GRAPH_WRITE_INCOMPLETE",
		CategoryInternal,
		http.StatusInternalServerError,
		"follow state could not be fully applied",
	)
)
