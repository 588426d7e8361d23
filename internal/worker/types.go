package worker

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	jsonExtension   = ".json"
	packageFileName = "package" + jsonExtension
)

// Kind classifies a file in the module map.
type Kind int

const (
	// KindUnclassified marks files that contribute no addressable module.
	KindUnclassified Kind = iota
	// KindModule marks a source file with a module identity.
	KindModule
	// KindPackage marks a named package descriptor (package.json).
	KindPackage
)

// String returns the wire name of k.
func (k Kind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindPackage:
		return "package"
	default:
		return "unclassified"
	}
}

// MarshalJSON encodes k by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name produced by MarshalJSON.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "module":
		*k = KindModule
	case "package":
		*k = KindPackage
	case "unclassified", "":
		*k = KindUnclassified
	default:
		return fmt.Errorf("unknown kind %q", name)
	}
	return nil
}

// PathClass is what a file path alone says about how to process the file.
type PathClass int

const (
	// ClassSource files get identity resolution and dependency extraction.
	ClassSource PathClass = iota
	// ClassPackage files are package descriptors.
	ClassPackage
	// ClassData files are other structured-data files and are left alone.
	ClassData
)

// Classify decides how a file is processed from its path. Only a file named
// package.json inside some directory counts as a package descriptor; a bare
// "package.json" with no directory is plain data.
func Classify(filePath string) PathClass {
	switch {
	case strings.HasSuffix(filePath, string(filepath.Separator)+packageFileName):
		return ClassPackage
	case strings.HasSuffix(filePath, jsonExtension):
		return ClassData
	default:
		return ClassSource
	}
}

// Request asks a Worker to process one file.
type Request struct {
	FilePath string `json:"filePath"`
	// ResolverPath names a custom identity resolver. Empty means docblock
	// pragmas decide identities, unless a resolver is already bound.
	ResolverPath string `json:"resolverPath,omitempty"`
}

// Descriptor records that a file is addressable in the module map.
type Descriptor struct {
	Path string `json:"path"`
	Kind Kind   `json:"kind"`
}

// Result is the metadata extracted from one file.
type Result struct {
	// Dependencies is nil for package descriptors and data files, and non-nil
	// (possibly empty) for source files. The JSON form keeps the distinction:
	// nil is omitted, empty encodes as [].
	Dependencies []string    `json:"dependencies,omitempty"`
	Identity     string      `json:"identity,omitempty"`
	Descriptor   *Descriptor `json:"descriptor,omitempty"`
}

// MarshalJSON encodes r, writing an empty dependency list as [].
func (r Result) MarshalJSON() ([]byte, error) {
	type wireResult struct {
		Dependencies *[]string   `json:"dependencies,omitempty"`
		Identity     string      `json:"identity,omitempty"`
		Descriptor   *Descriptor `json:"descriptor,omitempty"`
	}

	wire := wireResult{Identity: r.Identity, Descriptor: r.Descriptor}
	if r.Dependencies != nil {
		wire.Dependencies = &r.Dependencies
	}
	return json.Marshal(wire)
}

// Kind reports the descriptor's kind, or KindUnclassified without one.
func (r *Result) Kind() Kind {
	if r == nil || r.Descriptor == nil {
		return KindUnclassified
	}
	return r.Descriptor.Kind
}
