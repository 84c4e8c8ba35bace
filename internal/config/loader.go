package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	_ "embed"

	"github.com/kestrel-ci/kestrel/internal/target"
)

//go:embed schema.cue
var schemaCUE string

// LoadMode controls how errors are handled during descriptor loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadError is a descriptor loading failure with a stable code.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Descriptor loading error codes.
const (
	ErrCodeNotFound     = "D001" // descriptor directory missing
	ErrCodeNoFiles      = "D002" // no CUE files found
	ErrCodeLoadFailed   = "D003" // CUE load failed
	ErrCodeBuildFailed  = "D004" // CUE build failed
	ErrCodeSchemaFailed = "D005" // descriptors violate the schema
	ErrCodeBadTarget    = "D006" // a target is malformed
)

// cueDescriptor mirrors one entry of the "target" struct.
type cueDescriptor struct {
	Type    string   `json:"type"`
	Suite   string   `json:"suite"`
	Command string   `json:"command"`
	Sources []string `json:"sources"`
}

// LoadDescriptors loads every CUE descriptor file in dir, validates
// the lot against the embedded schema, and returns the build target
// descriptors in name order. The directory is loaded as one CUE
// package; every file needs a matching package clause.
//
// If mode is LoadModeFailFast, returns on the first error. If mode is
// LoadModeCollectAll, schema violations and malformed targets are
// collected and the well-formed remainder is still returned; setup
// failures (missing directory, unloadable CUE) end the load either
// way.
func LoadDescriptors(dir string, mode LoadMode) ([]target.Descriptor, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("descriptor directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing descriptor directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := findCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, positionedErrors(ErrCodeLoadFailed, "loading CUE files", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, positionedErrors(ErrCodeBuildFailed, "building CUE value", err)
	}

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, positionedErrors(ErrCodeBuildFailed, "compiling descriptor schema", err)
	}

	unified := schema.Unify(value)
	if err := unified.Validate(); err != nil {
		errs = append(errs, positionedErrors(ErrCodeSchemaFailed, "descriptors violate schema", err)...)
		if mode == LoadModeFailFast {
			return nil, errs
		}
	}

	targetsVal := unified.LookupPath(cue.ParsePath("target"))
	if !targetsVal.Exists() {
		errs = append(errs, &LoadError{Code: ErrCodeBadTarget, Message: "no targets declared"})
		return nil, errs
	}

	iter, err := targetsVal.Fields()
	if err != nil {
		errs = append(errs, positionedErrors(ErrCodeBuildFailed, "iterating targets", err)...)
		return nil, errs
	}

	var descriptors []target.Descriptor
	for iter.Next() {
		name := iter.Label()
		pos := iter.Value().Pos()

		var cd cueDescriptor
		if err := iter.Value().Decode(&cd); err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeBadTarget, Message: fmt.Sprintf("target %q: %v", name, err), Pos: pos})
			if mode == LoadModeFailFast {
				return nil, errs
			}
			continue
		}

		d := target.Descriptor{
			Name:    name,
			Type:    target.Type(cd.Type),
			Suite:   cd.Suite,
			Command: cd.Command,
			Sources: cd.Sources,
		}
		if d.Type == target.TypeTest {
			if d.Suite == "" {
				errs = append(errs, &LoadError{Code: ErrCodeBadTarget, Message: fmt.Sprintf("test target %q has no suite", name), Pos: pos})
				if mode == LoadModeFailFast {
					return nil, errs
				}
				continue
			}
			if d.Command == "" {
				errs = append(errs, &LoadError{Code: ErrCodeBadTarget, Message: fmt.Sprintf("test target %q has no launch command", name), Pos: pos})
				if mode == LoadModeFailFast {
					return nil, errs
				}
				continue
			}
		}
		descriptors = append(descriptors, d)
	}

	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Name < descriptors[j].Name })
	return descriptors, errs
}

// positionedErrors expands a CUE error into LoadErrors carrying the
// positions CUE recorded, one per underlying error.
func positionedErrors(code, context string, err error) []error {
	cueErrs := cueerrors.Errors(err)
	if len(cueErrs) == 0 {
		return []error{&LoadError{Code: code, Message: fmt.Sprintf("%s: %v", context, err)}}
	}
	out := make([]error, 0, len(cueErrs))
	for _, ce := range cueErrs {
		pos := ce.Position()
		if !pos.IsValid() {
			for _, p := range ce.InputPositions() {
				if p.IsValid() {
					pos = p
					break
				}
			}
		}
		out = append(out, &LoadError{
			Code:    code,
			Message: fmt.Sprintf("%s: %s", context, ce.Error()),
			Pos:     pos,
		})
	}
	return out
}

// SplitDescriptors partitions descriptors by target kind.
func SplitDescriptors(descriptors []target.Descriptor) (tests, production []target.Descriptor) {
	for _, d := range descriptors {
		if d.Type == target.TypeTest {
			tests = append(tests, d)
		} else {
			production = append(production, d)
		}
	}
	return tests, production
}

// findCUEFiles walks the directory and returns all .cue file paths.
func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
