package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ms-resale/internal/apperr"
	"ms-resale/internal/blob"

	"github.com/shopspring/decimal"
)

const (
	maxJSONBody      = 1 * blob.MB
	maxMultipartBody = 64 * blob.MB
	multipartMemory  = 32 * blob.MB
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is empty")
		}
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("request exceeds %d MB", maxMultipartBody/blob.MB)
		}
		return apperr.Validation("invalid multipart form: %v", err)
	}
	return nil
}

// formFiles reads every file uploaded under field, in form order.
func formFiles(r *http.Request, field string) ([]blob.File, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[field]
	files := make([]blob.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readFile(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// formFile reads the first file under field; nil when none was sent.
func formFile(r *http.Request, field string) (*blob.File, error) {
	files, err := formFiles(r, field)
	if err != nil || len(files) == 0 {
		return nil, err
	}
	return &files[0], nil
}

func readFile(fh *multipart.FileHeader) (blob.File, error) {
	src, err := fh.Open()
	if err != nil {
		return blob.File{}, apperr.Validation("cannot read %q: %v", fh.Filename, err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return blob.File{}, apperr.Validation("cannot read %q: %v", fh.Filename, err)
	}
	return blob.File{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}, nil
}

// formParser collects the first conversion error so a handler can read
// several typed fields and check once.
type formParser struct {
	r   *http.Request
	err error
}

func (p *formParser) String(field string) string {
	return p.r.FormValue(field)
}

func (p *formParser) Decimal(field string) decimal.Decimal {
	raw := strings.TrimSpace(p.r.FormValue(field))
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil && p.err == nil {
		p.err = apperr.Validation("%s: must be a number", field)
	}
	return d
}

func (p *formParser) Int(field string) int {
	raw := strings.TrimSpace(p.r.FormValue(field))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil && p.err == nil {
		p.err = apperr.Validation("%s: must be a whole number", field)
	}
	return n
}

func (p *formParser) Time(field string) time.Time {
	raw := strings.TrimSpace(p.r.FormValue(field))
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil && p.err == nil {
		p.err = apperr.Validation("%s: must be an RFC 3339 timestamp", field)
	}
	return t
}
