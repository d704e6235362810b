package cidrtrie_test

import (
	"fmt"

	"github.com/henderiw/cidrtrie/pkg/cidrtrie"
)

func Example() {
	t := cidrtrie.New[string](cidrtrie.WithName("rir"))
	for _, e := range []struct{ prefix, value string }{
		{"0.0.0.0/0", "Internet"},
		{"32.0.0.0/9", "RIR-A"},
		{"32.128.0.0/9", "RIR-B"},
		{"32.32.0.0/16", "another"},
		{"32.32.32.0/24", "third"},
		{"32.32.32.32/32", "you"},
		{"192.168.0.1/32", "totally different"},
	} {
		if err := t.Insert(e.prefix, e.value); err != nil {
			panic(err)
		}
	}

	for _, q := range []string{"32.32.32.32", "192.168.0.1/32", "32.192.0.0/10"} {
		values, err := t.FindAll(q)
		if err != nil {
			panic(err)
		}
		fmt.Println(q, values)
	}
	// Output:
	// 32.32.32.32 [Internet RIR-A another third you]
	// 192.168.0.1/32 [Internet totally different]
	// 32.192.0.0/10 [Internet RIR-B]
}

func ExampleTable_Lookup() {
	t := cidrtrie.New[int]()
	_ = t.Insert("2001:db8::/32", 32)
	_ = t.Insert("2001:db8:1::/48", 48)

	e, ok, err := t.Lookup("2001:db8:1::1")
	if err != nil {
		panic(err)
	}
	fmt.Println(ok, e)
	// Output:
	// true 2001:db8:1::/48: 48
}
