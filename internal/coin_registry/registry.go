package coin_registry

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultOriginBaseURL is the content host serving coin artwork.
const DefaultOriginBaseURL = "https://assets.coingecko.com"

// FallbackImageID is substituted for identifiers missing from the table.
const FallbackImageID = 0

//go:embed coins.yaml
var defaultTable []byte

type tableFile struct {
	Coins map[string]int `yaml:"coins"`
}

// Registry maps normalized coin identifiers to origin image ids.
// It is read-only after construction and safe for concurrent use.
type Registry struct {
	originBaseURL string
	imageIDs      map[string]int
}

// New creates a registry from an identifier -> image id table.
// Keys are normalized, the map is copied.
func New(originBaseURL string, imageIDs map[string]int) *Registry {
	if originBaseURL == "" {
		originBaseURL = DefaultOriginBaseURL
	}

	ids := make(map[string]int, len(imageIDs))
	for id, imageID := range imageIDs {
		ids[Normalize(id)] = imageID
	}

	return &Registry{
		originBaseURL: strings.TrimRight(originBaseURL, "/"),
		imageIDs:      ids,
	}
}

// Load reads a YAML coin table of the form `coins: {identifier: imageId}`.
func Load(originBaseURL string, r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read coin table: %w", err)
	}

	var table tableFile
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse coin table: %w", err)
	}

	if len(table.Coins) == 0 {
		return nil, fmt.Errorf("coin table is empty")
	}

	for id, imageID := range table.Coins {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("coin table contains an empty identifier")
		}
		if imageID <= 0 {
			return nil, fmt.Errorf("coin %q has invalid image id %d", id, imageID)
		}
	}

	return New(originBaseURL, table.Coins), nil
}

// LoadFile loads the coin table from path, or the embedded table when path is empty.
func LoadFile(originBaseURL, path string) (*Registry, error) {
	if path == "" {
		return Load(originBaseURL, bytes.NewReader(defaultTable))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open coin table: %w", err)
	}
	defer f.Close()

	return Load(originBaseURL, f)
}

// Normalize lower-cases and trims a caller supplied identifier.
func Normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// Key returns the object store key for an (identifier, size) pair.
// Structure: coins/{identifier}/{size}.png, with the identifier escaped into
// exactly one segment so distinct identifiers never share a key.
func Key(identifier string, size Size) string {
	return fmt.Sprintf("coins/%s/%s.png", keySegment(identifier), size)
}

// keySegment escapes "/" and the dot segments "." and "..".
// url.PathEscape leaves dots alone and never emits %2E, so the mapping stays injective.
func keySegment(identifier string) string {
	if identifier == "." || identifier == ".." {
		return strings.Repeat("%2E", len(identifier))
	}
	return url.PathEscape(identifier)
}

// Lookup returns the origin image id for a normalized identifier.
func (r *Registry) Lookup(identifier string) (int, bool) {
	imageID, ok := r.imageIDs[identifier]
	return imageID, ok
}

// Len returns the number of known coins.
func (r *Registry) Len() int {
	return len(r.imageIDs)
}

// ResolveOriginAddress builds the origin image URL for a normalized identifier.
// It never fails: unknown identifiers resolve with FallbackImageID.
func (r *Registry) ResolveOriginAddress(identifier string, size Size) string {
	imageID, ok := r.imageIDs[identifier]
	if !ok {
		imageID = FallbackImageID
	}
	if !size.Valid() {
		size = DefaultSize
	}

	return fmt.Sprintf("%s/coins/images/%d/%s/%s.png", r.originBaseURL, imageID, size, url.PathEscape(identifier))
}
