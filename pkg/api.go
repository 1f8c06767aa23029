package prolib

// This file holds the path based entry points used by the CLI. Each call owns
// the archives it opens and closes them before returning.

// ApplyVerboseConfig sets the verbose level and debug flags from configuration
func ApplyVerboseConfig(cfg *VerboseConfig) {
	SetVerboseLevel(cfg.Level)
	if cfg.Debug != "" {
		SetDebugFlags(cfg.Debug)
	}
}

// ListFile opens the library at path and lists it
func ListFile(open Opener, path string, parser MetadataParser) ([]ListRecord, error) {
	a, err := open(path)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	return List(a, parser), nil
}

// ExtractFile opens the library at path and extracts it
func ExtractFile(open Opener, path string, opts ExtractOptions) (*ExtractResult, error) {
	a, err := open(path)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	return Extract(a, opts)
}

// CompareFiles opens both libraries and compares them
func CompareFiles(open Opener, sourcePath, targetPath string, parser MetadataParser) (*Comparison, error) {
	source, err := open(sourcePath)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	target, err := open(targetPath)
	if err != nil {
		return nil, err
	}
	defer target.Close()

	return Compare(source, target, parser), nil
}
