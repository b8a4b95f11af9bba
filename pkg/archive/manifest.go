// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"fmt"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ManifestVersion is the manifest format written by this package.
const ManifestVersion = 1

// Manifest records how an archive was built. It is informational: loaders
// are told the unit kind by their caller and never consult it.
type Manifest struct {
	Version   int       `toml:"version"`
	Name      string    `toml:"name"`
	Mode      string    `toml:"mode"`
	Encrypted bool      `toml:"encrypted"`
	Optimize  int       `toml:"optimize"`
	Units     int       `toml:"units"`
	Created   time.Time `toml:"created"`
}

func (m Manifest) encode() (string, error) {
	data, err := toml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	return string(data), nil
}

// ParseManifest decodes a manifest from a ZIP comment. An empty comment
// yields a nil manifest.
func ParseManifest(comment string) (*Manifest, error) {
	if comment == "" {
		return nil, nil
	}
	var m Manifest
	if err := toml.Unmarshal([]byte(comment), &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}
