package build

import (
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/zeebo/blake3"
)

// auxStateExts are the files whose contents define cross-reference and
// bibliography state between passes.
var auxStateExts = []string{".aux", ".toc", ".lof", ".lot", ".out", ".bbl", ".blg", ".bcf", ".run.xml"}

var (
	bibdataRe   = regexp.MustCompile(`\\bibdata\{([^}]*)\}`)
	bcfSourceRe = regexp.MustCompile(`<bcf:datasource[^>]*>([^<]+)</bcf:datasource>`)
)

func isAuxState(name string) bool {
	for _, ext := range auxStateExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// auxStateFiles lists aux-state files under dir in lexical order.
func auxStateFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return fs.SkipAll
			}
			return err
		}
		if !d.IsDir() && isAuxState(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}

// clearAuxState removes stale aux-state files so every build starts from
// the same state.
func clearAuxState(dir string) error {
	files, err := auxStateFiles(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// fingerprint hashes the names and contents of the aux-state files under
// dir. Two equal fingerprints mean a pass did not change reference state.
func fingerprint(dir string) (string, error) {
	files, err := auxStateFiles(dir)
	if err != nil {
		return "", err
	}
	h := blake3.New()
	for _, f := range files {
		rel, _ := filepath.Rel(dir, f)
		data, err := os.ReadFile(f)
		if err != nil {
			return "", err
		}
		_, _ = h.Write([]byte(filepath.ToSlash(rel)))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(data)
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// bibliographySources returns the existing .bib files referenced by the
// job's aux (bibtex) or bcf (biber) file. Names resolve against mainDir.
func bibliographySources(outDir, mainDir, job, tool string) []string {
	var names []string
	switch tool {
	case "biber":
		data, err := os.ReadFile(filepath.Join(outDir, job+".bcf"))
		if err != nil {
			return nil
		}
		for _, m := range bcfSourceRe.FindAllStringSubmatch(string(data), -1) {
			names = append(names, strings.TrimSpace(m[1]))
		}
	default:
		data, err := os.ReadFile(filepath.Join(outDir, job+".aux"))
		if err != nil {
			return nil
		}
		for _, m := range bibdataRe.FindAllStringSubmatch(string(data), -1) {
			for n := range strings.SplitSeq(m[1], ",") {
				if n = strings.TrimSpace(n); n != "" {
					names = append(names, n)
				}
			}
		}
	}

	var found []string
	for _, n := range names {
		if filepath.Ext(n) != ".bib" {
			n += ".bib"
		}
		p := n
		if !filepath.IsAbs(p) {
			p = filepath.Join(mainDir, n)
		}
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			found = append(found, p)
		}
	}
	return found
}
