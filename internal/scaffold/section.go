package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	perrors "git.home.luguber.info/inful/paperx/internal/errors"
)

// SectionsMarker is the line after which new \input lines are placed.
const SectionsMarker = "% paperx:sections"

var (
	sectionNameRe  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
	markerRe       = regexp.MustCompile(`(?m)^%\s*paperx:sections\s*$`)
	sectionInputRe = regexp.MustCompile(`(?m)^\\input\{sections/[^}]*\}[ \t]*$`)
	endDocumentRe  = regexp.MustCompile(`(?m)^\\end\{document\}`)
)

// Titleize turns a section slug like "related-work" into "Related Work".
func Titleize(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	return cases.Title(language.English, cases.NoLower).String(strings.Join(words, " "))
}

// AddSection creates sections/<name>.tex next to mainTex and includes it
// from mainTex. It returns the path of the new section file.
func AddSection(mainTex, name string) (string, error) {
	if !sectionNameRe.MatchString(name) {
		return "", perrors.ValidationFailed("name", fmt.Sprintf("invalid section name %q", name))
	}
	main, err := os.ReadFile(mainTex)
	if err != nil {
		return "", perrors.IOError("read main document", mainTex, err)
	}
	path := filepath.Join(filepath.Dir(mainTex), "sections", name+".tex")
	if _, err := os.Stat(path); err == nil {
		return "", perrors.New(perrors.CategoryValidation, perrors.SeverityError,
			"section already exists: "+path).WithContext("path", path)
	}

	content, err := render("section.tex.tmpl", struct{ Name, Title string }{name, Titleize(name)})
	if err != nil {
		return "", perrors.InternalError("render section", err)
	}
	if err := writeFile(path, content); err != nil {
		return "", err
	}

	updated := insertInput(string(main), `\input{sections/`+name+`}`)
	if err := os.WriteFile(mainTex, []byte(updated), 0o644); err != nil {
		return "", perrors.IOError("update main document", mainTex, err)
	}
	return path, nil
}

// insertInput places line after the last section \input following the
// marker, directly after the marker, or before \end{document}, in that
// order of preference. A document with none of these gets the line appended.
func insertInput(doc, line string) string {
	if loc := markerRe.FindStringIndex(doc); loc != nil {
		at := loc[1]
		for _, m := range sectionInputRe.FindAllStringIndex(doc[loc[1]:], -1) {
			at = loc[1] + m[1]
		}
		return doc[:at] + "\n" + line + doc[at:]
	}
	if loc := endDocumentRe.FindStringIndex(doc); loc != nil {
		return doc[:loc[0]] + line + "\n" + doc[loc[0]:]
	}
	if doc != "" && !strings.HasSuffix(doc, "\n") {
		doc += "\n"
	}
	return doc + line + "\n"
}
