package classification

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSigners are publishers whose binaries are commonly reported with a
// failed local signature check although the signature itself is valid.
var DefaultSigners = []string{
	"Microsoft Corporation",
	"Microsoft Windows",
	"Microsoft Windows Publisher",
	"Microsoft Windows Hardware Compatibility Publisher",
	"Google LLC",
	"Mozilla Corporation",
	"Adobe Inc.",
	"Adobe Systems Incorporated",
	"Intel Corporation",
	"NVIDIA Corporation",
	"Advanced Micro Devices, Inc.",
	"Oracle America, Inc.",
	"Apple Inc.",
	"Dell Inc.",
	"HP Inc.",
	"Lenovo",
	"Realtek Semiconductor Corp.",
}

// SignerList is a case-insensitive set of signer names.
type SignerList struct {
	names map[string]struct{}
}

// NewSignerList builds a list from names. Blank names are ignored.
func NewSignerList(names []string) *SignerList {
	l := &SignerList{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if key := normalizeSigner(n); key != "" {
			l.names[key] = struct{}{}
		}
	}
	return l
}

// Contains reports whether name is on the list, ignoring case and surrounding whitespace.
func (l *SignerList) Contains(name string) bool {
	if l == nil {
		return false
	}
	key := normalizeSigner(name)
	if key == "" {
		return false
	}
	_, ok := l.names[key]
	return ok
}

func (l *SignerList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.names)
}

type signerFile struct {
	Signers []string `yaml:"signers"`
}

// LoadSignerList reads a YAML file of the form
//
//	signers:
//	  - Microsoft Corporation
//	  - Google LLC
//
// An empty path returns DefaultSigners.
func LoadSignerList(path string) (*SignerList, error) {
	if path == "" {
		return NewSignerList(DefaultSigners), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signer list %s: %w", path, err)
	}

	var f signerFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse signer list %s: %w", path, err)
	}

	list := NewSignerList(f.Signers)
	if list.Len() == 0 {
		return nil, fmt.Errorf("signer list %s is empty", path)
	}
	return list, nil
}

func normalizeSigner(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
