package geometry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/kozaktomas/face-recognition/internal/imaging"
)

const (
	defaultGeometryURL = "http://localhost:8000"
	uploadJPEGQuality  = 90
)

// Client talks to the Face Geometry Service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new geometry service client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultGeometryURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// BaseURL returns the service URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// detectResponse is returned by /detect. Boxes are [top, right, bottom, left].
type detectResponse struct {
	Boxes [][4]int `json:"boxes"`
}

// encodeResponse is returned by /encode.
type encodeResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// landmarksResponse is returned by /landmarks. Points are [x, y].
type landmarksResponse struct {
	Landmarks []map[string][][2]int `json:"landmarks"`
}

// postFrame encodes the frame as JPEG and posts it as multipart "file", with optional
// extra form fields, to the given endpoint.
func (c *Client) postFrame(ctx context.Context, endpoint string, img image.Image, fields map[string]string) ([]byte, error) {
	jpegData, err := imaging.EncodeJPEG(img, uploadJPEGQuality)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(jpegData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", key, err)
		}
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

// boxesField serializes boxes to the [top, right, bottom, left] wire format.
func boxesField(boxes []BoundingBox) (string, error) {
	wire := make([][4]int, len(boxes))
	for i, b := range boxes {
		wire[i] = [4]int{b.Top, b.Right, b.Bottom, b.Left}
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("failed to marshal boxes: %w", err)
	}
	return string(data), nil
}

// Detect locates faces in the frame.
func (c *Client) Detect(ctx context.Context, img image.Image) ([]BoundingBox, error) {
	body, err := c.postFrame(ctx, "/detect", img, nil)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	boxes := make([]BoundingBox, 0, len(resp.Boxes))
	for _, b := range resp.Boxes {
		box := BoundingBox{Top: b[0], Right: b[1], Bottom: b[2], Left: b[3]}
		if box.Valid() {
			boxes = append(boxes, box)
		}
	}
	return boxes, nil
}

// Encode produces one embedding per box, in order. A region the service could not
// encode keeps its slot as a nil embedding.
func (c *Client) Encode(ctx context.Context, img image.Image, boxes []BoundingBox) ([]Embedding, error) {
	if len(boxes) == 0 {
		return nil, nil
	}
	field, err := boxesField(boxes)
	if err != nil {
		return nil, err
	}

	body, err := c.postFrame(ctx, "/encode", img, map[string]string{"boxes": field})
	if err != nil {
		return nil, err
	}

	var resp encodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	embeddings := make([]Embedding, len(boxes))
	for i, e := range resp.Embeddings {
		if i >= len(boxes) {
			break
		}
		if len(e) > 0 {
			embeddings[i] = Embedding(e)
		}
	}
	return embeddings, nil
}

// Landmarks extracts facial landmarks for each box.
func (c *Client) Landmarks(ctx context.Context, img image.Image, boxes []BoundingBox) ([]LandmarkSet, error) {
	if len(boxes) == 0 {
		return nil, nil
	}
	field, err := boxesField(boxes)
	if err != nil {
		return nil, err
	}

	body, err := c.postFrame(ctx, "/landmarks", img, map[string]string{"boxes": field})
	if err != nil {
		return nil, err
	}

	var resp landmarksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	sets := make([]LandmarkSet, len(resp.Landmarks))
	for i, features := range resp.Landmarks {
		set := make(LandmarkSet, len(features))
		for name, pts := range features {
			points := make([]Point, len(pts))
			for j, p := range pts {
				points[j] = Point{X: p[0], Y: p[1]}
			}
			set[name] = points
		}
		sets[i] = set
	}
	return sets, nil
}
