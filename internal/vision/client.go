package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

const defaultVisionURL = "http://localhost:8000"

// Client implements Detector and Embedder against the vision sidecar
// (MTCNN-style detector + FaceNet-style embedder behind HTTP).
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new vision sidecar client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultVisionURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// detectResponse represents the response from the detection endpoint.
type detectResponse struct {
	FacesCount int `json:"faces_count"`
	Faces      []struct {
		BBox     []int   `json:"bbox"` // [x1, y1, x2, y2]
		DetScore float64 `json:"det_score"`
	} `json:"faces"`
}

// embedResponse represents the response from the embedding endpoint.
type embedResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// postMultipartImage constructs a multipart form with the image data and
// posts it to the given endpoint. The part carries an explicit Content-Type
// header based on magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Detect finds face bounding boxes in a frame.
func (c *Client) Detect(ctx context.Context, frame Frame) ([]Box, error) {
	body, err := c.postMultipartImage(ctx, "/detect", frame.Data)
	if err != nil {
		return nil, err
	}

	var detResp detectResponse
	if err := json.Unmarshal(body, &detResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	boxes := make([]Box, 0, len(detResp.Faces))
	for _, f := range detResp.Faces {
		if len(f.BBox) != 4 {
			continue
		}
		boxes = append(boxes, Box{
			X1:    f.BBox[0],
			Y1:    f.BBox[1],
			X2:    f.BBox[2],
			Y2:    f.BBox[3],
			Score: f.DetScore,
		})
	}
	return boxes, nil
}

// Embed computes the embedding for a cropped, normalized face image.
func (c *Client) Embed(ctx context.Context, faceJPEG []byte) ([]float32, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", faceJPEG)
	if err != nil {
		return nil, err
	}

	var embResp embedResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(embResp.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	if embResp.Dim > 0 && embResp.Dim != len(embResp.Embedding) {
		return nil, fmt.Errorf("embedding length %d does not match reported dim %d",
			len(embResp.Embedding), embResp.Dim)
	}

	return embResp.Embedding, nil
}

// detectMIMEType detects the MIME type from image data.
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	return "application/octet-stream"
}
