package manager

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"strings"

	// Register decoders for the formats the API accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// decodeImage decodes the base64 image payload of an OCR request. Data-URL
// prefixes are tolerated; standard and unpadded base64 both work.
func decodeImage(payload string) (image.Image, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, errors.New("empty image payload")
	}
	if strings.HasPrefix(payload, "data:") {
		if i := strings.IndexByte(payload, ','); i >= 0 {
			payload = payload[i+1:]
		}
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, errors.New("payload is not valid base64")
		}
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return img, nil
}
