package routing

import (
	"os"
	"path/filepath"
	"testing"
)

func writeGitmodules(t *testing.T, root, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, ".gitmodules"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func makeProject(t *testing.T, root, name string, beads, inbox bool) {
	t.Helper()
	dir := filepath.Join(root, "modules", name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if beads {
		if err := os.MkdirAll(filepath.Join(dir, ".beads"), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if inbox {
		if err := os.MkdirAll(filepath.Join(dir, "dev_notes", "inbox"), 0755); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSubmoduleDiscovery(t *testing.T) {
	root := t.TempDir()
	makeProject(t, root, "alpha", true, true)
	makeProject(t, root, "beta", false, false)
	writeGitmodules(t, root, `[submodule "alpha"]
	path = modules/alpha
	url = git@example.com:org/alpha.git
[submodule "beta"]
	path = modules/beta
	url = git@example.com:org/beta.git
[submodule "ghost"]
	path = modules/ghost
	url = git@example.com:org/ghost.git
`)

	d := NewSubmoduleDiscoverer(root, nil)

	all := d.Submodules(false)
	if len(all) != 2 {
		t.Fatalf("submodules = %d, want 2 (ghost uninitialized)", len(all))
	}

	withBeads := d.Submodules(true)
	if len(withBeads) != 1 || withBeads[0].Name != "alpha" {
		t.Fatalf("beads submodules = %+v, want only alpha", withBeads)
	}
	if !withBeads[0].HasInbox {
		t.Error("alpha should have inbox support")
	}

	if _, ok := d.Find("beta"); !ok {
		t.Error("Find(beta) failed")
	}
	if _, ok := d.Find("ghost"); ok {
		t.Error("Find(ghost) succeeded for uninitialized submodule")
	}
}

func TestSubmoduleDiscoveryStripsComments(t *testing.T) {
	root := t.TempDir()
	makeProject(t, root, "alpha", true, false)
	writeGitmodules(t, root, `# top comment
[submodule "alpha"]
	# inline comment line
	path = modules/alpha
	url = git@example.com:org/alpha.git
`)

	d := NewSubmoduleDiscoverer(root, nil)
	if _, ok := d.Find("alpha"); !ok {
		t.Error("comment lines broke block parsing")
	}
}

func TestSubmoduleDiscoveryMissingFile(t *testing.T) {
	d := NewSubmoduleDiscoverer(t.TempDir(), nil)
	if got := d.Submodules(false); len(got) != 0 {
		t.Errorf("submodules = %+v, want empty without .gitmodules", got)
	}
}

func TestSubmoduleBlockWithoutPathSkipped(t *testing.T) {
	root := t.TempDir()
	writeGitmodules(t, root, `[submodule "nopath"]
	url = git@example.com:org/nopath.git
`)

	d := NewSubmoduleDiscoverer(root, nil)
	if _, ok := d.Find("nopath"); ok {
		t.Error("block without path was discovered")
	}
}

func TestProjectNames(t *testing.T) {
	root := t.TempDir()
	makeProject(t, root, "zeta", true, false)
	makeProject(t, root, "alpha", true, false)
	writeGitmodules(t, root, `[submodule "zeta"]
	path = modules/zeta
[submodule "alpha"]
	path = modules/alpha
`)

	d := NewSubmoduleDiscoverer(root, nil)
	names := d.ProjectNames(true)
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("ProjectNames = %v, want sorted [alpha zeta]", names)
	}
}
