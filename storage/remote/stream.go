package remote

import (
	"context"
	"io"
	"io/ioutil"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/attendly/core/attendance"
)

// maxFrameSize bounds a single part of the recognition stream.
const maxFrameSize = 16 << 20

var nowFunc = time.Now

// mjpegStream reads a multipart/x-mixed-replace response part by part.
type mjpegStream struct {
	cancel context.CancelFunc
	body   io.ReadCloser
	parts  *multipart.Reader
	seq    uint64

	once sync.Once
	err  error
}

// OpenStream opens the live recognition feed of target.
func (c *Client) OpenStream(ctx context.Context, target attendance.CaptureTarget) (attendance.Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	url := c.baseURL + "/recognize/" + strconv.Itoa(target.SessionID) + "?camera=" + strconv.Itoa(target.Camera)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "building stream request")
	}
	for key, val := range c.headers(ctx) {
		req.Header.Set(key, val)
	}
	req.Header.Set("Accept", "multipart/x-mixed-replace, image/*")

	res, err := c.stream.Do(req)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "opening recognition stream")
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := ioutil.ReadAll(io.LimitReader(res.Body, 4096))
		_ = res.Body.Close()
		cancel()
		return nil, newHTTPError(res.StatusCode, body)
	}

	mediaType, params, err := mime.ParseMediaType(res.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		_ = res.Body.Close()
		cancel()
		return nil, errors.Errorf("unexpected stream content type %q", res.Header.Get("Content-Type"))
	}

	return &mjpegStream{
		cancel: cancel,
		body:   res.Body,
		parts:  multipart.NewReader(res.Body, params["boundary"]),
	}, nil
}

// Next returns the next image of the feed, io.EOF once the backend closes it.
func (s *mjpegStream) Next() (attendance.Frame, error) {
	part, err := s.parts.NextPart()
	if err != nil {
		if endOfFeed(err) {
			return attendance.Frame{}, io.EOF
		}
		return attendance.Frame{}, errors.Wrap(err, "reading stream part")
	}
	defer part.Close()

	data, err := ioutil.ReadAll(io.LimitReader(part, maxFrameSize+1))
	if err != nil {
		switch {
		case !endOfFeed(err):
			return attendance.Frame{}, errors.Wrap(err, "reading frame")
		case len(data) == 0:
			return attendance.Frame{}, io.EOF
		}
		// last part: no boundary follows it, the next call reports the end of the feed
	}
	if len(data) > maxFrameSize {
		return attendance.Frame{}, errors.New("frame too large")
	}

	s.seq++
	ctype := part.Header.Get("Content-Type")
	if ctype == "" {
		ctype = "image/jpeg"
	}
	return attendance.Frame{Seq: s.seq, Timestamp: nowFunc(), ContentType: ctype, Data: data}, nil
}

// endOfFeed reports whether err means the backend closed the connection.
// The feed usually ends without its closing boundary.
func endOfFeed(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return strings.HasSuffix(err.Error(), ": EOF")
}

// Close cancels the request and releases the connection. Safe to call multiple times.
func (s *mjpegStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.err = s.body.Close()
	})
	return s.err
}
