/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package version

import (
	"fmt"
	"os"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/go-version"

	liberr "github.com/megallm/ultrabalancer/errors"
)

type model struct {
	lic         License
	pkg         string
	description string
	date        time.Time
	build       string
	release     string
	author      string
	prefix      string
	rootPath    string
}

func newModel(lic License, pkg, description, dateStr, build, release, author, prefix string, rootStruct interface{}, numSubPackage int) *model {
	m := &model{
		lic:         lic,
		pkg:         pkg,
		description: description,
		build:       build,
		release:     release,
		author:      author,
		prefix:      prefix,
	}

	if t, err := time.Parse(time.RFC3339, dateStr); err == nil {
		m.date = t
	} else {
		m.date = time.Now()
	}

	full := fullPackagePath(rootStruct)
	if m.pkg == "" || m.pkg == "noname" {
		m.pkg = lastPathSegment(full)
	}

	m.rootPath = trimPackagePath(full, numSubPackage)

	return m
}

// fullPackagePath returns the untrimmed reflection package path of
// rootStruct, dereferencing pointers.
func fullPackagePath(rootStruct interface{}) string {
	if rootStruct == nil {
		return ""
	}
	t := reflect.TypeOf(rootStruct)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.PkgPath()
}

func lastPathSegment(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return p
	}
	return p[idx+1:]
}

func trimPackagePath(p string, numSubPackage int) string {
	for i := 0; i < numSubPackage; i++ {
		idx := strings.LastIndex(p, "/")
		if idx < 0 {
			break
		}
		p = p[:idx]
	}
	return p
}

func (m *model) GetPackage() string     { return m.pkg }
func (m *model) GetDescription() string { return m.description }
func (m *model) GetBuild() string       { return m.build }
func (m *model) GetRelease() string     { return m.release }
func (m *model) GetDate() string        { return m.date.Format(time.RFC3339) }
func (m *model) GetTime() time.Time     { return m.date }
func (m *model) GetPrefix() string      { return strings.ToUpper(m.prefix) }

func (m *model) GetAuthor() string {
	return fmt.Sprintf("%s (source: %s)", m.author, m.rootPath)
}

func (m *model) GetAppId() string {
	return fmt.Sprintf("%s-%s-%s-%s (Runtime: go%s)", m.pkg, m.release, runtime.GOOS, runtime.GOARCH, strings.TrimPrefix(runtime.Version(), "go"))
}

func (m *model) GetLicenseName() string {
	return m.lic.Name()
}

var licenseSeparator = strings.Repeat("*", 80)

// GetLicenseLegal returns the full legal text of the instance's own
// license, followed by the full legal text of every additional license
// passed in lic, each fenced by a separator line.
func (m *model) GetLicenseLegal(lic ...License) string {
	result := m.lic.Legal()
	for _, l := range lic {
		result += "\n" + licenseSeparator + "\n" + l.Legal() + "\n" + licenseSeparator
	}
	return result
}

// GetLicenseBoiler returns the short copyright boilerplate for the
// instance's own license, followed by the boilerplate of every
// additional license passed in lic. Unlicense has no meaningful
// boilerplate shorter than its own legal text, so it reports that text
// directly.
func (m *model) GetLicenseBoiler(lic ...License) string {
	year := m.date.Year()
	result := licenseBoilerBlock(m.lic, year, m.pkg, m.description, m.author)
	for _, l := range lic {
		result += "\n" + licenseSeparator + "\n" + licenseBoilerBlock(l, year, m.pkg, m.description, m.author) + "\n" + licenseSeparator
	}
	return result
}

func licenseBoilerBlock(l License, year int, pkg, description, author string) string {
	if l == License_Unlicense {
		return l.Legal()
	}
	return fmt.Sprintf("%s\n\n%s\n%s\n\nCopyright (c) %d %s", l.Name(), pkg, description, year, author)
}

// GetLicenseFull returns the instance's boilerplate copyright notice
// followed by its full legal text, for its own license plus every
// additional license passed in lic.
func (m *model) GetLicenseFull(lic ...License) string {
	return m.GetLicenseBoiler(lic...) + "\n" + licenseSeparator + "\n" + m.GetLicenseLegal(lic...)
}

func (m *model) GetRootPackagePath() string {
	return m.rootPath
}

func (m *model) GetHeader() string {
	var b strings.Builder
	if m.prefix != "" {
		b.WriteString(m.GetPrefix())
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "%s %s (build %s, release %s) - %s", m.pkg, m.GetDate(), m.build, m.release, m.description)
	return b.String()
}

// GetInfo returns a multi-line human-readable summary of the package's
// release, build and date metadata.
func (m *model) GetInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Package: %s\n", m.pkg)
	fmt.Fprintf(&b, "Description: %s\n", m.description)
	fmt.Fprintf(&b, "Release: %s\n", m.release)
	fmt.Fprintf(&b, "Build: %s\n", m.build)
	fmt.Fprintf(&b, "Date: %s\n", m.GetDate())
	fmt.Fprintf(&b, "Author: %s", m.GetAuthor())
	return b.String()
}

func (m *model) PrintInfo() {
	fmt.Fprintln(os.Stderr, m.GetHeader())
}

func (m *model) PrintLicense(lic ...License) {
	fmt.Fprintln(os.Stderr, m.GetLicenseBoiler(lic...))
}

func (m *model) CheckGo(ver, operator string) liberr.Error {
	cst, err := version.NewConstraint(operator + " " + ver)
	if err != nil {
		return ErrorGoVersionInit.Error(fmt.Errorf("init GoVersion contraint error: %w", err))
	}

	runtimeVersion := strings.TrimPrefix(runtime.Version(), "go")
	rv, err := version.NewVersion(runtimeVersion)
	if err != nil {
		return ErrorGoVersionRuntime.Error(fmt.Errorf("extract GoVersion runtime error: %w", err))
	}

	if !cst.Check(rv) {
		return ErrorGoVersionConstraint.Error(fmt.Errorf("current binary is build with a non-compatible version of Go: runtime go%s does not satisfy %q %q", runtimeVersion, operator, ver))
	}

	return nil
}
