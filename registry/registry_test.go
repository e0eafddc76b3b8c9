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

package registry_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/megallm/ultrabalancer/registry"
)

var _ = Describe("Registry", func() {
	It("rejects construction with an empty backend list", func() {
		_, err := registry.New(nil)
		Expect(err).To(HaveOccurred())
	})

	It("round-trips backends by id", func() {
		b1 := registry.NewBackend("b1", "10.0.0.1", 80, 1, registry.RoleActive)
		b2 := registry.NewBackend("b2", "10.0.0.2", 80, 1, registry.RoleActive)
		r, err := registry.New([]*registry.Backend{b1, b2})
		Expect(err).ToNot(HaveOccurred())

		got, err := r.Get("b1")
		Expect(err).ToNot(HaveOccurred())
		Expect(got).To(BeIdenticalTo(b1))

		_, err = r.Get("missing")
		Expect(err).To(HaveOccurred())
	})

	It("keeps the old snapshot alive across a reload", func() {
		b1 := registry.NewBackend("b1", "10.0.0.1", 80, 1, registry.RoleActive)
		r, err := registry.New([]*registry.Backend{b1})
		Expect(err).ToNot(HaveOccurred())

		old := r.Snapshot()
		Expect(old.ByID("b1")).To(BeIdenticalTo(b1))

		b2 := registry.NewBackend("b2", "10.0.0.2", 80, 1, registry.RoleActive)
		Expect(r.Reload([]*registry.Backend{b2})).To(Succeed())

		// the previously captured snapshot still resolves b1.
		Expect(old.ByID("b1")).To(BeIdenticalTo(b1))
		Expect(old.ByID("b2")).To(BeNil())

		// the live registry now only resolves b2.
		Expect(r.Snapshot().ByID("b2")).To(BeIdenticalTo(b2))
		Expect(r.Snapshot().ByID("b1")).To(BeNil())
	})

	It("reports eligibility based on health and the connection cap", func() {
		b := registry.NewBackend("b1", "10.0.0.1", 80, 1, registry.RoleActive)
		Expect(b.Eligible()).To(BeFalse(), "starts down")

		b.SetHealth(registry.Up)
		Expect(b.Eligible()).To(BeTrue())

		b.SetMaxConnections(1)
		b.OnConnect()
		Expect(b.Eligible()).To(BeFalse(), "at cap")

		b.OnDisconnect()
		Expect(b.Eligible()).To(BeTrue())
	})

	It("never decreases total connections", func() {
		b := registry.NewBackend("b1", "10.0.0.1", 80, 1, registry.RoleActive)
		b.OnConnect()
		b.OnConnect()
		b.OnDisconnect()
		Expect(b.TotalConnections()).To(Equal(uint64(2)))
		Expect(b.ActiveConnections()).To(Equal(int32(1)))
	})
})
