package httpx

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/searchktools/webserver/core/buffer"
)

// suffixType maps a file extension to its Content-type.
var suffixType = map[string]string{
	".html":  "text/html",
	".xml":   "text/xml",
	".xhtml": "application/xhtml+xml",
	".txt":   "text/plain",
	".rtf":   "application/rtf",
	".pdf":   "application/pdf",
	".word":  "application/nsword",
	".png":   "image/png",
	".gif":   "image/gif",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".au":    "audio/basic",
	".mpeg":  "video/mpeg",
	".mpg":   "video/mpeg",
	".avi":   "video/x-msvideo",
	".gz":    "application/x-gzip",
	".tar":   "application/x-tar",
	".css":   "text/css",
	".js":    "text/javascript",
}

// codeStatus maps a status code to its reason phrase.
var codeStatus = map[int]string{
	200: "OK",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
}

// codePath maps an error status code to its error page.
var codePath = map[int]string{
	400: "/400.html",
	403: "/403.html",
	404: "/404.html",
}

// Response builds an HTTP/1.1 response: status line, headers, and a
// memory-mapped file body delivered as a second writev segment.
type Response struct {
	code        int
	keepAlive   bool
	path        string
	srcDir      string

	mapped []byte // mmap'd file contents, nil if unmapped
	size   int64
}

// NewResponse returns an unmapped Response with code -1 (undecided).
func NewResponse() *Response {
	return &Response{code: -1}
}

// Init resets the Response for a new request, unmapping any prior
// file first. code is -1 to let MakeResponse decide 200 vs an error
// code from the stat result.
func (r *Response) Init(srcDir, path string, keepAlive bool, code int) {
	r.Unmap()
	r.code = code
	r.keepAlive = keepAlive
	r.path = path
	r.srcDir = srcDir
}

// Code returns the response's current status code.
func (r *Response) Code() int { return r.code }

// File returns the mapped file body, or nil if nothing is mapped.
func (r *Response) File() []byte { return r.mapped }

// FileLen returns the mapped file's byte length.
func (r *Response) FileLen() int64 { return r.size }

// MakeResponse composes the status line, headers, and (via mmap) the
// response body into buf:
//
//  1. stat the requested file; missing/directory -> 404, non-world-
//     readable -> 403, otherwise 200 if code hasn't already been set.
//  2. on 400/403/404 (preset or from the stat), rewrite path to the
//     matching error page. A preset error code skips step 1 so a bad
//     request stays 400 instead of turning into 404 when its
//     (meaningless) path fails the stat.
//  3. append the status line, Connection/keep-alive headers, and
//     Content-type.
//  4. mmap the file and append Content-length, or fall back to an
//     inline error body on failure.
func (r *Response) MakeResponse(buf *buffer.Buffer) {
	fullPath := filepath.Join(r.srcDir, r.path)
	if _, preset := codePath[r.code]; !preset {
		info, err := os.Stat(fullPath)
		switch {
		case err != nil || info.IsDir():
			r.code = 404
		case info.Mode().Perm()&0o004 == 0:
			r.code = 403
		case r.code == -1:
			r.code = 200
		}
	}

	if errPath, ok := codePath[r.code]; ok {
		r.path = errPath
		fullPath = filepath.Join(r.srcDir, r.path)
	}

	r.addStateLine(buf)
	r.addHeader(buf)
	r.addContent(buf, fullPath)
}

func (r *Response) addStateLine(buf *buffer.Buffer) {
	status, ok := codeStatus[r.code]
	if !ok {
		r.code = 400
		status = codeStatus[400]
	}
	buf.AppendString("HTTP/1.1 " + strconv.Itoa(r.code) + " " + status + "\r\n")
}

func (r *Response) addHeader(buf *buffer.Buffer) {
	buf.AppendString("Connection: ")
	if r.keepAlive {
		buf.AppendString("keep-alive\r\n")
		buf.AppendString("keep-alive: max=6, timeout=60\r\n")
	} else {
		buf.AppendString("close\r\n")
	}
	buf.AppendString("Content-type: " + r.fileType() + "\r\n")
}

func (r *Response) addContent(buf *buffer.Buffer, fullPath string) {
	f, err := os.OpenFile(fullPath, os.O_RDONLY, 0)
	if err != nil {
		r.errorContent(buf, "File NotFound!")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		r.errorContent(buf, "File NotFound!")
		return
	}
	size := info.Size()

	if size == 0 {
		// mmap of a zero-length file fails; a present-but-empty file
		// still gets a real 200 response with no body segment.
		r.size = 0
		buf.AppendString("Content-length: 0\r\n\r\n")
		return
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		r.errorContent(buf, "File NotFound!")
		return
	}
	r.mapped = mapped
	r.size = size
	buf.AppendString("Content-length: " + strconv.FormatInt(size, 10) + "\r\n\r\n")
}

func (r *Response) fileType() string {
	ext := filepath.Ext(r.path)
	if mime, ok := suffixType[ext]; ok {
		return mime
	}
	return "text/plain"
}

// errorContent appends an inline HTML error body when the requested
// file can't be opened or mapped.
func (r *Response) errorContent(buf *buffer.Buffer, message string) {
	status, ok := codeStatus[r.code]
	if !ok {
		status = "Bad Request"
	}
	body := fmt.Sprintf(
		"<html><title>Error</title><body bgcolor=\"ffffff\">%d : %s\n<p>%s</p><hr><em>webserver</em></body></html>",
		r.code, status, message,
	)
	buf.AppendString("Content-length: " + strconv.Itoa(len(body)) + "\r\n\r\n")
	buf.AppendString(body)
}

// Unmap releases the file mapping if present. Idempotent, and must run
// before every re-Init and before the owning connection closes.
func (r *Response) Unmap() {
	if r.mapped != nil {
		unix.Munmap(r.mapped)
		r.mapped = nil
		r.size = 0
	}
}
