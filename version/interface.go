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
	"time"

	liberr "github.com/megallm/ultrabalancer/errors"
)

// Version describes the build/release metadata a binary or component
// reports on its "version"/"about" surface (cobra --version, a status
// page, a control-socket "show info").
type Version interface {
	GetPackage() string
	GetDescription() string
	GetBuild() string
	GetRelease() string
	GetAuthor() string
	GetAppId() string
	GetDate() string
	GetTime() time.Time
	GetLicenseName() string
	GetLicenseLegal(lic ...License) string
	GetLicenseBoiler(lic ...License) string
	GetLicenseFull(lic ...License) string
	GetRootPackagePath() string
	GetHeader() string
	GetPrefix() string
	GetInfo() string

	// PrintInfo writes GetHeader's output to stderr.
	PrintInfo()

	// PrintLicense writes GetLicenseBoiler's output to stderr.
	PrintLicense(lic ...License)

	// CheckGo reports whether the running go runtime satisfies
	// "<operator> <ver>" (e.g. CheckGo("1.21", ">=")).
	CheckGo(ver, operator string) liberr.Error
}

// NewVersion builds a Version. rootStruct anchors GetRootPackagePath's
// reflection lookup; numSubPackage is how many trailing path segments
// of rootStruct's package path to trim to reach the module root (e.g.
// 2 for a struct declared in .../cmd/ultrabalancer). prefix is prepended
// to GetHeader's rendered output (e.g. an ASCII banner tag).
func NewVersion(lic License, pkg, description, dateStr, build, release, author, prefix string, rootStruct interface{}, numSubPackage int) Version {
	return newModel(lic, pkg, description, dateStr, build, release, author, prefix, rootStruct, numSubPackage)
}
