package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"google.golang.org/genai"
)

// MaxImageSide bounds both dimensions of the image sent to the model.
const MaxImageSide = 1024

// Diagnosis is the model's assessment of a plant photo.
type Diagnosis struct {
	Disease    string   `json:"disease"`
	Severity   string   `json:"severity"`
	Symptoms   []string `json:"symptoms"`
	Treatment  []string `json:"treatment"`
	Prevention []string `json:"prevention"`
	Confidence float64  `json:"confidence"`
}

const diseasePrompt = `You are an agronomist helping Indian smallholder farmers.
Examine the attached photo of a crop plant or leaf and identify any disease, pest damage or nutrient deficiency.
Answer with a single JSON object and nothing else, using exactly these keys:
{"disease": string ("Healthy" if none), "confidence": number from 0 to 100, "severity": "none" | "low" | "medium" | "high",
 "symptoms": [string], "treatment": [string], "prevention": [string]}
Prefer treatments available to farmers in India and mention organic options where they exist.`

// ErrUnreadableImage is returned for uploads whose header names an image
// format but whose pixel data does not decode.
var ErrUnreadableImage = errors.New("image could not be decoded")

// PrepareImage decodes a JPEG or PNG photo, applies its EXIF orientation,
// shrinks it to fit MaxImageSide and re-encodes it as JPEG.
func PrepareImage(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}

	if b := img.Bounds(); b.Dx() > MaxImageSide || b.Dy() > MaxImageSide {
		img = imaging.Fit(img, MaxImageSide, MaxImageSide, imaging.Lanczos)
	}

	return encodeJPEG(img)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// DetectDisease asks the model to diagnose the photo in data.
func (c *Client) DetectDisease(ctx context.Context, data []byte) (*Diagnosis, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	jpeg, err := PrepareImage(data)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		genai.NewPartFromText(diseasePrompt),
		genai.NewPartFromBytes(jpeg, "image/jpeg"),
	}
	text, err := c.generate(ctx, "gemini-vision", parts, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.2),
	})
	if err != nil {
		return nil, err
	}

	d, err := parseDiagnosis(text)
	if err != nil {
		c.logger.Warn("unparseable diagnosis", "error", err, "response", truncate(text, 200))
		return nil, err
	}
	return d, nil
}

func parseDiagnosis(text string) (*Diagnosis, error) {
	text = stripFence(text)

	var d Diagnosis
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return nil, fmt.Errorf("failed to decode diagnosis: %w", err)
	}
	if d.Disease == "" {
		return nil, fmt.Errorf("diagnosis has no disease")
	}
	if d.Confidence > 0 && d.Confidence <= 1 {
		d.Confidence *= 100
	}
	if d.Symptoms == nil {
		d.Symptoms = []string{}
	}
	if d.Treatment == nil {
		d.Treatment = []string{}
	}
	if d.Prevention == nil {
		d.Prevention = []string{}
	}
	return &d, nil
}

// stripFence removes a markdown code fence around a JSON answer.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
