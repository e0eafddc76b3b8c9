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

package registry

import (
	"fmt"

	liberr "github.com/megallm/ultrabalancer/errors"
)

const (
	ErrorBackendNotFound   liberr.CodeError = iota + liberr.MinPkgRegistry // no backend with the given id is registered
	ErrorBackendDuplicate                                                 // a backend with this id is already registered
	ErrorInvalidAddress                                                   // host/port pair failed to parse
	ErrorEmptyBackendList                                                 // a reload was attempted with zero backends
)

func init() {
	if liberr.ExistInMapMessage(ErrorBackendNotFound) {
		panic(fmt.Errorf("error code collision with package ultrabalancer/registry"))
	}
	liberr.RegisterIdFctMessage(ErrorBackendNotFound, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorBackendNotFound:
		return "no backend registered with this id"
	case ErrorBackendDuplicate:
		return "a backend with this id is already registered"
	case ErrorInvalidAddress:
		return "invalid backend address"
	case ErrorEmptyBackendList:
		return "reload rejected: backend list is empty"
	}

	return liberr.NullMessage
}
