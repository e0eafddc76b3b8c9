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

package sticky_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/megallm/ultrabalancer/sticky"
)

var _ = Describe("Table", func() {
	It("rejects a non-positive capacity", func() {
		_, err := sticky.New(0, time.Minute)
		Expect(err).To(HaveOccurred())
	})

	It("stays bound within the TTL and reports the chosen backend", func() {
		tbl, err := sticky.New(8, time.Minute)
		Expect(err).ToNot(HaveOccurred())

		tbl.Bind([]byte("client-A"), "b1")
		got, ok := tbl.Get([]byte("client-A"))
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal("b1"))
	})

	It("evicts the unreferenced LRU tail once a shard reaches capacity", func() {
		tbl, err := sticky.New(2, time.Minute)
		Expect(err).ToNot(HaveOccurred())

		tbl.Bind([]byte("a"), "backendA")
		tbl.Bind([]byte("b"), "backendB")
		Expect(tbl.Len()).To(Equal(2))

		tbl.Bind([]byte("c"), "backendC")
		Expect(tbl.Len()).To(Equal(2), "capacity is respected when an entry is free to evict")

		_, ok := tbl.Get([]byte("a"))
		Expect(ok).To(BeFalse(), "the oldest entry was evicted")
		_, ok = tbl.Get([]byte("c"))
		Expect(ok).To(BeTrue())
	})

	It("never evicts a referenced entry, skipping to the next LRU candidate", func() {
		tbl, err := sticky.New(2, time.Minute)
		Expect(err).ToNot(HaveOccurred())

		tbl.Bind([]byte("x"), "backendX")
		tbl.Bind([]byte("y"), "backendY")

		e, ok := tbl.Lookup([]byte("x"))
		Expect(ok).To(BeTrue())
		e.Retain()

		tbl.Bind([]byte("z"), "backendZ")

		_, ok = tbl.Get([]byte("x"))
		Expect(ok).To(BeTrue(), "x is pinned and must survive")
		_, ok = tbl.Get([]byte("y"))
		Expect(ok).To(BeFalse(), "y was the free-to-evict candidate")

		e.Release()
	})

	It("allows a shard to overflow rather than evict a fully-pinned set", func() {
		tbl, err := sticky.New(2, time.Minute)
		Expect(err).ToNot(HaveOccurred())

		tbl.Bind([]byte("p"), "backendP")
		tbl.Bind([]byte("q"), "backendQ")

		ep, _ := tbl.Lookup([]byte("p"))
		eq, _ := tbl.Lookup([]byte("q"))
		ep.Retain()
		eq.Retain()

		tbl.Bind([]byte("r"), "backendR")
		Expect(tbl.Len()).To(Equal(3), "no unreferenced candidate existed, so the shard grew by one")

		ep.Release()
		eq.Release()
	})

	It("expire removes only entries that are both past TTL and unreferenced", func() {
		tbl, err := sticky.New(8, time.Millisecond)
		Expect(err).ToNot(HaveOccurred())

		tbl.Bind([]byte("short-lived"), "b1")
		e, _ := tbl.Lookup([]byte("pinned"))
		Expect(e).To(BeNil())
		tbl.Bind([]byte("pinned"), "b2")
		pinned, _ := tbl.Lookup([]byte("pinned"))
		pinned.Retain()

		time.Sleep(5 * time.Millisecond)

		removed := tbl.Expire()
		Expect(removed).To(Equal(1))

		_, ok := tbl.Get([]byte("short-lived"))
		Expect(ok).To(BeFalse())

		_, ok = tbl.Lookup([]byte("pinned"))
		Expect(ok).To(BeTrue(), "a referenced entry survives Expire even past its TTL")

		pinned.Release()
	})

	It("purge clears every shard", func() {
		tbl, err := sticky.New(16, time.Minute)
		Expect(err).ToNot(HaveOccurred())

		for i := 0; i < 10; i++ {
			tbl.Bind([]byte{byte(i)}, "b1")
		}
		Expect(tbl.Len()).To(BeNumerically(">", 0))

		tbl.Purge()
		Expect(tbl.Len()).To(Equal(0))
	})

	It("update adjusts counters on an existing entry and is a no-op on a miss", func() {
		tbl, err := sticky.New(4, time.Minute)
		Expect(err).ToNot(HaveOccurred())

		tbl.Bind([]byte("k"), "b1")
		Expect(tbl.Update([]byte("k"), sticky.BytesIn, 512)).To(Succeed())

		e, ok := tbl.Lookup([]byte("k"))
		Expect(ok).To(BeTrue())
		Expect(e.Counter(sticky.BytesIn)).To(Equal(uint64(512)))

		Expect(tbl.Update([]byte("missing"), sticky.BytesIn, 1)).To(Succeed())
	})
})
