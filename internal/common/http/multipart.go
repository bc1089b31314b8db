package http

import (
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/pixfeed/pixfeed/backend/internal/common/constants"
	commonerrors "github.com/pixfeed/pixfeed/backend/internal/common/errors"
)

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// ReadImageFile checks the upload's extension and size and returns its
// bytes. The size is re-checked after reading: the header value comes from
// the client.
func ReadImageFile(fh *multipart.FileHeader) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedImageExtensions[ext] {
		return nil, commonerrors.ErrInvalidImageType
	}
	if fh.Size > constants.MaxImageSizeBytes {
		return nil, commonerrors.ErrImageTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, commonerrors.ErrStorageError.WithCause(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, constants.MaxImageSizeBytes+1))
	if err != nil {
		return nil, commonerrors.ErrStorageError.WithCause(err)
	}
	if int64(len(data)) > constants.MaxImageSizeBytes {
		return nil, commonerrors.ErrImageTooLarge
	}
	return data, nil
}
