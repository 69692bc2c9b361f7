// Package netx holds small HTTP helpers shared by the client transports.
package netx

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"sync"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// MultipartFile is a single-part multipart/form-data body whose length is
// known up front, so it can be sent with a Content-Length instead of being
// chunked or buffered twice.
type MultipartFile struct {
	io.Reader
	ContentType string
	Length      int64
}

// NewMultipartFile builds a body with one file part named field. progress,
// when set, is called as payload bytes are read, with the total payload size.
func NewMultipartFile(field, filename, contentType string, data []byte, progress func(sent, total int64)) (*MultipartFile, error) {
	var head bytes.Buffer
	mw := multipart.NewWriter(&head)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	if _, err := mw.CreatePart(h); err != nil {
		return nil, err
	}

	tail := "\r\n--" + mw.Boundary() + "--\r\n"

	var payload io.Reader = bytes.NewReader(data)
	if progress != nil {
		payload = &ProgressReader{R: payload, Total: int64(len(data)), OnRead: progress}
	}

	return &MultipartFile{
		Reader:      io.MultiReader(bytes.NewReader(head.Bytes()), payload, strings.NewReader(tail)),
		ContentType: mw.FormDataContentType(),
		Length:      int64(head.Len()) + int64(len(data)) + int64(len(tail)),
	}, nil
}

// ProgressReader reports how many bytes have been read from R.
type ProgressReader struct {
	R      io.Reader
	Total  int64
	OnRead func(read, total int64)

	mu   sync.Mutex
	read int64
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.R.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.read += int64(n)
		read := p.read
		p.mu.Unlock()
		p.OnRead(read, p.Total)
	}
	return n, err
}
