package gallery

import (
	"encoding/json"
	"fmt"
	"os"
)

type staticEntry struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// LoadStatic reads the fixed gallery from a JSON list of {"src","alt"}
// objects. The alt text becomes the caption.
func LoadStatic(path string) ([]Image, error) {
	if path == "" {
		return []Image{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery file: %w", err)
	}

	var entries []staticEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse gallery file: %w", err)
	}

	images := make([]Image, 0, len(entries))
	for _, e := range entries {
		if e.Src == "" {
			continue
		}
		images = append(images, Image{Src: e.Src, Caption: e.Alt})
	}
	return images, nil
}
