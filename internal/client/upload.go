// ABOUTME: Multipart upload of a local file to POST /upload
// ABOUTME: Streams the file through a pipe and detects the part content type from its bytes

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/AsafNachman/file-management-system/internal/errs"
	"github.com/gabriel-vasile/mimetype"
)

// UploadField is the multipart form field the backend reads the file from
const UploadField = "file"

// sniffLen matches the amount of data mimetype inspects by default
const sniffLen = 3072

// LocalFile is a file on disk chosen for upload
type LocalFile struct {
	Path string
	Name string
	Size int64
}

// NewLocalFile stats path and returns a LocalFile named after its base name
func NewLocalFile(path string) (LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return LocalFile{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if info.IsDir() {
		return LocalFile{}, fmt.Errorf("%s is a directory", path)
	}
	return LocalFile{Path: path, Name: filepath.Base(path), Size: info.Size()}, nil
}

// DisplayName returns the name sent to the backend
func (f LocalFile) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return filepath.Base(f.Path)
}

// Upload calls POST /upload with the file as multipart field "file"
func (c *Client) Upload(ctx context.Context, file LocalFile, credential string) (*FileRecord, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "upload", fmt.Errorf("cannot open %s: %w", file.Path, err))
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errs.Wrap(errs.KindValidation, "upload", fmt.Errorf("cannot read %s: %w", file.Path, err))
	}
	head = head[:n]
	contentType := DetectContentType(file.DisplayName(), head)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writePart(mw, file.DisplayName(), contentType, io.MultiReader(bytes.NewReader(head), f)))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/upload", pr, credential)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(ctx, "upload", req)
	if err != nil {
		pr.Close()
		return nil, err
	}
	defer resp.Body.Close()
	pr.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.handleErrorResponse("upload", resp)
	}

	record := FileRecord{Filename: file.DisplayName(), ContentType: contentType, Size: file.Size}
	// An empty or non-JSON success body still means the file was stored
	_ = json.NewDecoder(resp.Body).Decode(&record)
	return &record, nil
}

// DetectContentType returns the MIME type for a file. Plain text sniffed from a
// .json file is reported as JSON.
func DetectContentType(name string, head []byte) string {
	mt := mimetype.Detect(head)
	if strings.EqualFold(filepath.Ext(name), ".json") && mt.Is("text/plain") {
		return "application/json"
	}
	if base, _, ok := strings.Cut(mt.String(), ";"); ok {
		return base
	}
	return mt.String()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writePart(mw *multipart.Writer, filename, contentType string, body io.Reader) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		UploadField, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, body); err != nil {
		return err
	}
	return mw.Close()
}
