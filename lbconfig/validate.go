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

package lbconfig

import "fmt"

// Validate checks the structural invariants SPEC_FULL §7's
// Misconfiguration error kind covers: every frontend's default backend
// and every backend's stick-table reference must resolve, every
// backend needs at least one server, and no two listeners may bind the
// same address.
func (d *Document) Validate() error {
	seenAddr := map[string]string{}

	for _, fr := range d.Frontends {
		if len(fr.Listeners) == 0 {
			return ErrorConfigInvalid.Error(fmt.Errorf("frontend %q has no listeners", fr.Name))
		}
		if _, ok := d.BackendByName(fr.DefaultBackend); !ok {
			return ErrorConfigInvalid.Error(fmt.Errorf("frontend %q default_backend %q not found", fr.Name, fr.DefaultBackend))
		}
		for _, l := range fr.Listeners {
			if l.Address == "" {
				return ErrorConfigInvalid.Error(fmt.Errorf("frontend %q listener %q has no address", fr.Name, l.ID))
			}
			if owner, dup := seenAddr[l.Address]; dup {
				return ErrorConfigInvalid.Error(fmt.Errorf("address %q bound by both %q and %q", l.Address, owner, fr.Name))
			}
			seenAddr[l.Address] = fr.Name
			if (l.TLSCertFile == "") != (l.TLSKeyFile == "") {
				return ErrorConfigInvalid.Error(fmt.Errorf("frontend %q listener %q must set both ssl-cert and ssl-key, or neither", fr.Name, l.ID))
			}
		}
	}

	for _, be := range d.Backends {
		if len(be.Servers) == 0 {
			return ErrorConfigInvalid.Error(fmt.Errorf("backend %q has no servers", be.Name))
		}
		if be.StickTable != "" {
			if _, ok := d.StickTableByID(be.StickTable); !ok {
				return ErrorConfigInvalid.Error(fmt.Errorf("backend %q stick-table %q not found", be.Name, be.StickTable))
			}
		}
	}

	return nil
}
