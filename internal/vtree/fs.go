package vtree

import (
	"fmt"
	"os"
	"sort"

	"github.com/agentic-research/blocklink/api"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Import reads dir from fsys into virtual tree nodes. Entries are ordered by
// name, since a real directory has no declaration order.
func Import(fsys billy.Filesystem, dir string) ([]api.Node, error) {
	infos, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	nodes := make([]api.Node, 0, len(infos))
	for _, info := range infos {
		p := fsys.Join(dir, info.Name())
		if info.IsDir() {
			children, err := Import(fsys, p)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, api.Dir(info.Name(), children...))
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		data, err := util.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		nodes = append(nodes, api.File(info.Name(), string(data)))
	}
	return nodes, nil
}

// Export writes t below dir on fsys, creating directories as needed.
func Export(fsys billy.Filesystem, dir string, t *Tree) error {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	for name, v := range t.All() {
		p := fsys.Join(dir, name)
		switch val := v.(type) {
		case *Tree:
			if err := Export(fsys, p, val); err != nil {
				return err
			}
		case string:
			if err := util.WriteFile(fsys, p, []byte(val), os.FileMode(0o644)); err != nil {
				return fmt.Errorf("write %s: %w", p, err)
			}
		}
	}
	return nil
}
