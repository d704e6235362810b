package cidrtrie

import (
	"fmt"
	"math/rand/v2"
	"net/netip"
	"sync"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/google/go-cmp/cmp"
	"github.com/henderiw/cidrtrie/pkg/cidr"
	"github.com/henderiw/cidrtrie/pkg/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type insert struct {
	prefix string
	value  string
}

var v4Entries = []insert{
	{"0.0.0.0/0", "Internet"},
	{"32.0.0.0/9", "RIR-A"},
	{"32.128.0.0/9", "RIR-B"},
	{"32.32.0.0/16", "another"},
	{"32.32.32.0/24", "third"},
	{"32.32.32.32/32", "you"},
	{"192.168.0.1/32", "totally different"},
}

var v6Entries = []insert{
	{"::/0", "Internet"},
	{"1234::/16", "Test"},
	{"1234:1001::/32", "Another one"},
	{"1234:1001:1920::/48", "A third"},
	{"1234:1001:1920:2000:2020::/96", "A fourth"},
	{"1234:1001:1920::ffff", "A different one"},
}

func newTestTable(t *testing.T, entries ...[]insert) *Table[string] {
	t.Helper()
	tbl := New[string](
		WithName("test"),
		WithLogger(testr.NewWithOptions(t, testr.Options{Verbosity: 2})),
	)
	for _, list := range entries {
		for _, e := range list {
			require.NoError(t, tbl.Insert(e.prefix, e.value))
		}
	}
	require.NoError(t, tbl.Validate())
	return tbl
}

func TestFindAll(t *testing.T) {
	cases := map[string]struct {
		query string
		want  []string
	}{
		"V4Host":          {query: "32.32.32.32", want: []string{"Internet", "RIR-A", "another", "third", "you"}},
		"V4HostExplicit":  {query: "32.32.32.32/32", want: []string{"Internet", "RIR-A", "another", "third", "you"}},
		"V4Different":     {query: "192.168.0.1/32", want: []string{"Internet", "totally different"}},
		"V4SecondHalf":    {query: "32.192.0.0/10", want: []string{"Internet", "RIR-B"}},
		"V4ShortQuery":    {query: "32.32.0.0/12", want: []string{"Internet", "RIR-A"}},
		"V4ExactAncestor": {query: "32.32.0.0/16", want: []string{"Internet", "RIR-A", "another"}},
		"V4NoMatch":       {query: "10.0.0.1", want: []string{"Internet"}},
		"V4Sibling":       {query: "32.32.33.1", want: []string{"Internet", "RIR-A", "another"}},
		"V6Fourth":        {query: "1234:1001:1920:2000:2020::/128", want: []string{"Internet", "Test", "Another one", "A third", "A fourth"}},
		"V6Different":     {query: "1234:1001:1920::ffff", want: []string{"Internet", "Test", "Another one", "A third", "A different one"}},
		"V6Default":       {query: "::/0", want: []string{"Internet"}},
		"V6NoMatch":       {query: "2001:db8::1", want: []string{"Internet"}},
	}
	tbl := newTestTable(t, v4Entries, v6Entries)
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := tbl.FindAll(tc.query)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("%s: -want, +got:\n%s", name, diff)
			}
		})
	}
}

func TestFindAllEntries(t *testing.T) {
	tbl := newTestTable(t, v4Entries)
	entries, err := tbl.FindAllEntries("32.32.32.32")
	require.NoError(t, err)

	var got []string
	for _, e := range entries {
		got = append(got, e.String())
	}
	assert.Equal(t, []string{
		"0.0.0.0/0: Internet",
		"32.0.0.0/9: RIR-A",
		"32.32.0.0/16: another",
		"32.32.32.0/24: third",
		"32.32.32.32/32: you",
	}, got)
}

func TestFamiliesAreSeparate(t *testing.T) {
	tbl := newTestTable(t, []insert{{"0.0.0.0/0", "v4 default"}})
	got, err := tbl.FindAll("::1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, tbl.Insert("::/0", "v6 default"))
	got, err = tbl.FindAll("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"v4 default"}, got)
	assert.Equal(t, 2, tbl.Len())
}

func TestContainmentMonotonicity(t *testing.T) {
	rnd := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 200; i++ {
		addr := netip.AddrFrom4([4]byte{byte(rnd.UintN(256)), byte(rnd.UintN(256)), byte(rnd.UintN(256)), byte(rnd.UintN(256))})
		outer := rnd.IntN(32)
		inner := outer + 1 + rnd.IntN(32-outer)
		a := netip.PrefixFrom(addr, outer).Masked()
		b := netip.PrefixFrom(addr, inner).Masked()

		tbl := New[string]()
		// insert the more specific one first to exercise the split path
		require.NoError(t, tbl.InsertPrefix(b, "inner"))
		require.NoError(t, tbl.InsertPrefix(a, "outer"))
		got, err := tbl.FindAll(addr.String())
		require.NoError(t, err)
		assert.Equal(t, []string{"outer", "inner"}, got, "outer %s inner %s", a, b)
		require.NoError(t, tbl.Validate())
	}
}

func TestInsertReplaces(t *testing.T) {
	tbl := newTestTable(t, v4Entries)
	require.NoError(t, tbl.Insert("32.32.0.0/16", "replaced"))
	// host bits are dropped, so this is the same prefix again
	require.NoError(t, tbl.Insert("32.32.1.1/16", "replaced again"))

	got, err := tbl.FindAll("32.32.32.32")
	require.NoError(t, err)
	assert.Equal(t, []string{"Internet", "RIR-A", "replaced again", "third", "you"}, got)
	assert.Equal(t, len(v4Entries), tbl.Len())
}

func TestDefaultRouteAlwaysFirst(t *testing.T) {
	rnd := rand.New(rand.NewPCG(3, 5))
	tbl := newTestTable(t, []insert{{"0.0.0.0/0", "X"}})
	for i := 0; i < 100; i++ {
		addr := netip.AddrFrom4([4]byte{byte(rnd.UintN(256)), byte(rnd.UintN(256)), byte(rnd.UintN(256)), byte(rnd.UintN(256))})
		p := netip.PrefixFrom(addr, 1+rnd.IntN(32)).Masked()
		require.NoError(t, tbl.InsertPrefix(p, p.String()))

		query := netip.AddrFrom4([4]byte{byte(rnd.UintN(256)), byte(rnd.UintN(256)), byte(rnd.UintN(256)), byte(rnd.UintN(256))})
		got, err := tbl.FindAll(query.String())
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.Equal(t, "X", got[0])
	}
}

func TestNoFalseMatches(t *testing.T) {
	tbl := newTestTable(t, []insert{
		{"10.0.0.0/8", "a"},
		{"10.0.0.0/16", "b"},
		{"10.1.0.0/16", "c"},
	})
	// 10.2.0.0 diverges from both /16 siblings after bit 14
	got, err := tbl.FindAll("10.2.0.0")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)

	// a query shorter than a stored prefix never returns it
	got, err = tbl.FindAll("10.0.0.0/12")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)
}

func TestParseErrors(t *testing.T) {
	tbl := newTestTable(t)
	for _, s := range []string{"", "10.0.0.0/33", "300.1.1.1", "1::/129", "nope"} {
		assert.ErrorIs(t, tbl.Insert(s, "x"), cidr.ErrParse, s)
		_, err := tbl.FindAll(s)
		assert.ErrorIs(t, err, cidr.ErrParse, s)
		assert.ErrorIs(t, tbl.Remove(s), cidr.ErrParse, s)
		assert.False(t, tbl.Has(s))
	}
	assert.Equal(t, 0, tbl.Len())
}

func TestRemove(t *testing.T) {
	cases := map[string]struct {
		remove  string
		wantErr bool
		query   string
		want    []string
	}{
		"Leaf":          {remove: "32.32.32.32/32", query: "32.32.32.32", want: []string{"Internet", "RIR-A", "another", "third"}},
		"Inner":         {remove: "32.32.0.0/16", query: "32.32.32.32", want: []string{"Internet", "RIR-A", "third", "you"}},
		"Default":       {remove: "0.0.0.0/0", query: "192.168.0.1", want: []string{"totally different"}},
		"NotStored":     {remove: "32.32.32.0/25", wantErr: true, query: "32.32.32.32", want: []string{"Internet", "RIR-A", "another", "third", "you"}},
		"OtherFamily":   {remove: "::/0", wantErr: true, query: "32.192.0.0/10", want: []string{"Internet", "RIR-B"}},
		"SplitNodeOnly": {remove: "32.0.0.0/8", wantErr: true, query: "32.192.0.0/10", want: []string{"Internet", "RIR-B"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			tbl := newTestTable(t, v4Entries)
			err := tbl.Remove(tc.remove)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrNotFound)
				assert.Equal(t, len(v4Entries), tbl.Len())
			} else {
				require.NoError(t, err)
				assert.Equal(t, len(v4Entries)-1, tbl.Len())
				assert.False(t, tbl.Has(tc.remove))
			}
			require.NoError(t, tbl.Validate())
			got, err := tbl.FindAll(tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRemoveAll(t *testing.T) {
	tbl := newTestTable(t, v4Entries, v6Entries)
	for _, list := range [][]insert{v6Entries, v4Entries} {
		for _, e := range list {
			require.NoError(t, tbl.Remove(e.prefix))
			require.NoError(t, tbl.Validate())
		}
	}
	assert.Equal(t, 0, tbl.Len())
	assert.Empty(t, tbl.All())
}

func TestGetLookupExists(t *testing.T) {
	tbl := newTestTable(t, v4Entries, v6Entries)

	v, err := tbl.Get("32.32.0.0/16")
	require.NoError(t, err)
	assert.Equal(t, "another", v)

	_, err = tbl.Get("32.32.0.0/17")
	assert.ErrorIs(t, err, ErrNotFound)

	e, ok, err := tbl.Lookup("32.32.32.1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, netip.MustParsePrefix("32.32.32.0/24"), e.Prefix)
	assert.Equal(t, "third", e.Value)

	cases := map[string]struct {
		query      string
		wantAddr   bool
		wantPrefix bool
	}{
		"Exact":          {query: "32.32.0.0/16", wantAddr: true, wantPrefix: true},
		"LongerSameAddr": {query: "32.32.0.0/20", wantAddr: true},
		"ShorterSameAdr": {query: "32.32.0.0/14", wantAddr: true},
		"DefaultAddr":    {query: "0.0.0.0/8", wantAddr: true},
		"Unknown":        {query: "32.33.0.0/16"},
		"V6Exact":        {query: "1234::/16", wantAddr: true, wantPrefix: true},
		"V6Unknown":      {query: "1234:1001:1920::fffe"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			addr, prefix, err := tbl.Exists(tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.wantAddr, addr, "addr")
			assert.Equal(t, tc.wantPrefix, prefix, "prefix")
		})
	}
}

func TestInsertRange(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.InsertRange("10.0.0.10-10.0.0.20", "pool"))
	assert.Equal(t, 4, tbl.Len())

	for _, addr := range []string{"10.0.0.10", "10.0.0.15", "10.0.0.20"} {
		got, err := tbl.FindAll(addr)
		require.NoError(t, err)
		assert.Equal(t, []string{"pool"}, got, addr)
	}
	for _, addr := range []string{"10.0.0.9", "10.0.0.21"} {
		got, err := tbl.FindAll(addr)
		require.NoError(t, err)
		assert.Empty(t, got, addr)
	}
	assert.ErrorIs(t, tbl.InsertRange("10.0.0.20-10.0.0.10", "pool"), cidr.ErrParse)
}

func TestAllAndWalk(t *testing.T) {
	tbl := newTestTable(t, v6Entries, v4Entries)
	all := tbl.All()
	require.Len(t, all, len(v4Entries)+len(v6Entries))
	assert.Equal(t, netip.MustParsePrefix("0.0.0.0/0"), all[0].Prefix)
	assert.Equal(t, netip.MustParsePrefix("::/0"), all[len(v4Entries)].Prefix)

	var post []string
	tbl.Walk(cidr.IPv4, tree.PostOrder, func(e Entry[string]) bool {
		post = append(post, e.Value)
		return true
	})
	assert.Equal(t, "Internet", post[len(post)-1])
}

func TestClone(t *testing.T) {
	tbl := newTestTable(t, v4Entries)
	c := tbl.Clone()
	require.NoError(t, c.Remove("32.32.32.32/32"))
	require.NoError(t, c.Insert("10.0.0.0/8", "ten"))

	assert.True(t, tbl.Has("32.32.32.32"))
	assert.False(t, tbl.Has("10.0.0.0/8"))
	assert.False(t, c.Has("32.32.32.32"))
	assert.True(t, c.Has("10.0.0.0/8"))
}

func TestConcurrentReaders(t *testing.T) {
	tbl := newTestTable(t, v4Entries, v6Entries)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				prefix := fmt.Sprintf("10.%d.%d.0/24", w, i%256)
				assert.NoError(t, tbl.Insert(prefix, prefix))
				got, err := tbl.FindAll("32.32.32.32")
				assert.NoError(t, err)
				assert.Equal(t, []string{"Internet", "RIR-A", "another", "third", "you"}, got)
				if i%2 == 0 {
					assert.NoError(t, tbl.Remove(prefix))
				}
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, tbl.Validate())
	assert.Equal(t, len(v4Entries)+len(v6Entries)+4*100, tbl.Len())
}
