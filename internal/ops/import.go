package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sadopc/diskly/internal/model"
)

// ImportJSON reads an ncdu-compatible JSON export and returns the tree in
// canonical order together with the recorded item count. Directory sizes are
// recomputed from their children.
func ImportJSON(path string) (model.Node, uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Node{}, 0, fmt.Errorf("cannot open import file: %w", err)
	}

	// Top level: [major, minor, header, root]
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.Node{}, 0, fmt.Errorf("invalid JSON: %w", err)
	}
	if len(raw) < 4 {
		return model.Node{}, 0, fmt.Errorf("invalid ncdu format: expected at least 4 elements, got %d", len(raw))
	}

	var header ncduHeader
	if err := json.Unmarshal(raw[2], &header); err != nil {
		return model.Node{}, 0, fmt.Errorf("cannot parse header: %w", err)
	}

	var root model.Node
	switch first(raw[3]) {
	case '[':
		root, err = parseDir(raw[3], "")
	case '{':
		root, err = parseLeaf(raw[3], "")
	default:
		err = fmt.Errorf("root is neither a directory nor a file")
	}
	if err != nil {
		return model.Node{}, 0, fmt.Errorf("cannot parse root directory: %w", err)
	}

	total := header.Items
	if total == 0 {
		total = root.Count()
	}
	return root, total, nil
}

// parseDir parses [{dir_entry}, child1, child2, ...]. parent is empty for
// the root, whose entry name is its full path.
func parseDir(data json.RawMessage, parent string) (model.Node, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return model.Node{}, fmt.Errorf("directory is not an array: %w", err)
	}
	if len(elements) == 0 {
		return model.Node{}, fmt.Errorf("empty directory array")
	}

	var entry ncduEntry
	if err := json.Unmarshal(elements[0], &entry); err != nil {
		return model.Node{}, fmt.Errorf("cannot parse directory entry: %w", err)
	}
	name, path := names(entry.Name, parent)

	var children []model.Node
	for i := 1; i < len(elements); i++ {
		var (
			child model.Node
			err   error
		)
		switch first(elements[i]) {
		case '[':
			child, err = parseDir(elements[i], path)
		case '{':
			child, err = parseLeaf(elements[i], path)
		default:
			err = fmt.Errorf("unexpected child element at index %d in %s", i, path)
		}
		if err != nil {
			return model.Node{}, err
		}
		children = append(children, child)
	}

	return model.NewDir(name, path, children, flagsOf(entry)), nil
}

func parseLeaf(data json.RawMessage, parent string) (model.Node, error) {
	var entry ncduEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return model.Node{}, fmt.Errorf("cannot parse file entry: %w", err)
	}
	name, path := names(entry.Name, parent)
	return model.NewLeaf(name, path, entry.Asize, true, flagsOf(entry)), nil
}

func names(entryName, parent string) (name, path string) {
	if parent == "" {
		trimmed := strings.TrimRight(entryName, "/")
		if trimmed == "" {
			return entryName, entryName
		}
		return filepath.Base(trimmed), entryName
	}
	return entryName, filepath.Join(parent, entryName)
}

func flagsOf(e ncduEntry) model.NodeFlag {
	var flag model.NodeFlag
	if e.Hlnkc {
		flag |= model.FlagHardlink
	}
	if e.Err {
		flag |= model.FlagError
	}
	if e.Symlink {
		flag |= model.FlagSymlink
	}
	if e.UsageEstimated {
		flag |= model.FlagUsageEstimated
	}
	return flag
}

func first(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}
