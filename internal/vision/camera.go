package vision

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"
)

// MJPEGSource reads frames from an HTTP multipart/x-mixed-replace camera
// stream (the usual surface of IP cameras and USB camera bridges).
type MJPEGSource struct {
	url    string
	resp   *http.Response
	reader *multipart.Reader
	seq    uint64
}

// OpenMJPEG connects to the camera stream. A connection or handshake
// failure is reported as ErrDeviceUnavailable; the caller must not retry
// silently.
func OpenMJPEG(url string) (*MJPEGSource, error) {
	resp, err := http.Get(url) //nolint:noctx // stream outlives any single request context
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrDeviceUnavailable, url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: camera returned status %d", ErrDeviceUnavailable, resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" || params["boundary"] == "" {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: not an MJPEG stream (content-type %q)", ErrDeviceUnavailable, resp.Header.Get("Content-Type"))
	}

	return &MJPEGSource{
		url:    url,
		resp:   resp,
		reader: multipart.NewReader(resp.Body, params["boundary"]),
	}, nil
}

// Next blocks until the camera delivers the next frame.
func (s *MJPEGSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	part, err := s.reader.NextPart()
	if err != nil {
		return Frame{}, fmt.Errorf("%w: stream ended: %v", ErrDeviceUnavailable, err)
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: reading frame: %v", ErrDeviceUnavailable, err)
	}

	s.seq++
	return Frame{
		Data:     data,
		Sequence: s.seq,
		TakenAt:  time.Now(),
	}, nil
}

// Close tears down the stream connection.
func (s *MJPEGSource) Close() error {
	if s.resp != nil {
		return s.resp.Body.Close()
	}
	return nil
}
