package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"cryptflow/internal/download"
	"cryptflow/internal/errs"
	"cryptflow/internal/response"
)

// maxBoundaryLength is the RFC 2046 limit on multipart boundaries.
const maxBoundaryLength = 70

type Uploader interface {
	Upload(ctx context.Context, src io.Reader, fileName string) (string, error)
}

type Downloader interface {
	Download(ctx context.Context, key string) (*download.Object, error)
}

// UploadResponse is returned by POST /v1/files.
type UploadResponse struct {
	ObjectKey string `json:"object_key"`
}

type FilesAPI struct {
	uploader   Uploader
	downloader Downloader
	log        logrus.FieldLogger
}

func NewFilesAPI(uploader Uploader, downloader Downloader, log logrus.FieldLogger) *FilesAPI {
	return &FilesAPI{
		uploader:   uploader,
		downloader: downloader,
		log:        log,
	}
}

// HandleUpload handles POST /v1/files. The body is streamed straight from
// the first file part of the multipart form into the upload pipeline.
func (h *FilesAPI) HandleUpload(w http.ResponseWriter, r *http.Request) {
	boundary, err := multipartBoundary(r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, err)
		return
	}

	mr := multipart.NewReader(r.Body, boundary)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeError(w, errs.New("upload", errs.ErrValidation, errors.New("form has no file part")))
			return
		}
		if err != nil {
			writeError(w, errs.New("upload", errs.ErrValidation, err))
			return
		}
		if part.FileName() == "" {
			continue
		}

		key, err := h.uploader.Upload(r.Context(), part, part.FileName())
		if err != nil {
			h.logFailure(r, err, "upload failed")
			writeError(w, err)
			return
		}

		response.JSON(UploadResponse{ObjectKey: key}).Write(w, http.StatusCreated)
		return
	}
}

// HandleDownload handles GET /v1/files/{key}
func (h *FilesAPI) HandleDownload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(key); err == nil {
			key = unescaped
		}
	}

	obj, err := h.downloader.Download(r.Context(), key)
	if err != nil {
		h.logFailure(r, err, "download failed")
		writeError(w, err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": obj.FileName}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj.Body); err != nil {
		// headers are gone, all that is left is to cut the response short
		h.log.WithError(err).WithField("object_key", key).Warn("download interrupted")
		panic(http.ErrAbortHandler)
	}
}

func (h *FilesAPI) logFailure(r *http.Request, err error, msg string) {
	entry := h.log.WithError(err).WithField("path", r.URL.Path)
	if errs.IsClientFault(err) || errors.Is(err, errs.ErrCancelled) {
		entry.Info(msg)
		return
	}
	entry.Error(msg)
}

func multipartBoundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", errs.New("upload", errs.ErrValidation, fmt.Errorf("invalid content type: %w", err))
	}
	if mediaType != "multipart/form-data" {
		return "", errs.New("upload", errs.ErrValidation, fmt.Errorf("content type %q is not multipart/form-data", mediaType))
	}
	boundary := params["boundary"]
	if boundary == "" {
		return "", errs.New("upload", errs.ErrValidation, errors.New("missing content type boundary"))
	}
	if len(boundary) > maxBoundaryLength {
		return "", errs.New("upload", errs.ErrValidation, fmt.Errorf("multipart boundary length limit %d exceeded", maxBoundaryLength))
	}
	return boundary, nil
}
