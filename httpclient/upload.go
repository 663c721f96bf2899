package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"

	apperrors "github.com/kbukum/netmanager/errors"
)

// uploadBody is an encoded upload payload ready for the transport.
type uploadBody struct {
	reader      io.Reader
	length      int64
	contentType string
	disposition string
	closer      io.Closer
}

func (b *uploadBody) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// openPayload returns the upload payload and its size.
// A file payload is opened here so a bad path fails before any I/O.
func openPayload(spec UploadSpec) (io.Reader, int64, io.Closer, error) {
	if spec.FilePath == "" {
		return bytes.NewReader(spec.Data), int64(len(spec.Data)), nil, nil
	}

	f, err := os.Open(spec.FilePath)
	if err != nil {
		return nil, 0, nil, newPreconditionError(
			apperrors.InvalidInput("file_path", "file_path cannot be opened").WithCause(err))
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, nil, newPreconditionError(
			apperrors.InvalidInput("file_path", "file_path cannot be read").WithCause(err))
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, 0, nil, newPreconditionError(
			apperrors.InvalidInput("file_path", "file_path is a directory"))
	}
	return f, info.Size(), f, nil
}

// encodeUpload wraps the payload according to mode.
func encodeUpload(mode UploadMode, spec UploadSpec, payload io.Reader, size int64) (*uploadBody, error) {
	switch mode {
	case UploadRaw:
		disposition := mime.FormatMediaType("attachment", map[string]string{
			"name":     spec.FieldName,
			"filename": spec.FileName,
		})
		if disposition == "" {
			return nil, newPreconditionError(apperrors.InvalidInput("file_name", "file_name cannot be encoded in Content-Disposition"))
		}
		return &uploadBody{
			reader:      payload,
			length:      size,
			contentType: spec.MimeType,
			disposition: disposition,
		}, nil
	case UploadMultipart:
		return encodeMultipart(spec, payload, size)
	default:
		return nil, newPreconditionError(apperrors.InvalidInput("upload_mode", fmt.Sprintf("unsupported mode %q", mode)))
	}
}

// encodeMultipart streams the payload between the part header and the
// closing boundary, so file payloads are never buffered in memory.
func encodeMultipart(spec UploadSpec, payload io.Reader, size int64) (*uploadBody, error) {
	disposition := mime.FormatMediaType("form-data", map[string]string{
		"name":     spec.FieldName,
		"filename": spec.FileName,
	})
	if disposition == "" {
		return nil, newPreconditionError(apperrors.InvalidInput("file_name", "file_name cannot be encoded in Content-Disposition"))
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", disposition)
	header.Set("Content-Type", spec.MimeType)
	if _, err := w.CreatePart(header); err != nil {
		return nil, newPreconditionError(apperrors.Internal(err))
	}
	headLen := buf.Len()

	if err := w.Close(); err != nil {
		return nil, newPreconditionError(apperrors.Internal(err))
	}
	framing := buf.Bytes()

	return &uploadBody{
		reader: io.MultiReader(
			bytes.NewReader(framing[:headLen]),
			payload,
			bytes.NewReader(framing[headLen:]),
		),
		length:      int64(len(framing)) + size,
		contentType: w.FormDataContentType(),
	}, nil
}
