//go:build windows

package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIdentityByPath_HardLinksShareIdentity(t *testing.T) {
	root := t.TempDir()
	a, b, c := filepath.Join(root, "a.txt"), filepath.Join(root, "b.txt"), filepath.Join(root, "c.txt")
	writeFile(t, a, 10)
	writeFile(t, c, 10)
	if err := os.Link(a, b); err != nil {
		t.Skipf("hard links not available: %v", err)
	}

	idA, nlink, ok := identityByPath(a, mustLstat(t, a))
	if !ok {
		t.Skip("volume exposes no file index")
	}
	if nlink != 2 {
		t.Fatalf("link count = %d, want 2", nlink)
	}
	idB, _, _ := identityByPath(b, mustLstat(t, b))
	idC, _, _ := identityByPath(c, mustLstat(t, c))
	if idA != idB {
		t.Fatalf("links differ: %+v vs %+v", idA, idB)
	}
	if idA == idC {
		t.Fatal("distinct files share an identity")
	}

	node, _ := scan(t, OSFileSystem{}, DefaultOptions(), root, nil)
	if node.Size != 20 {
		t.Fatalf("root size = %d, want 20", node.Size)
	}
}
