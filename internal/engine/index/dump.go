package index

import (
	"bufio"
	"fmt"
	"io"

	"linkgraph/internal/shared/util"
)

// Dump writes the four index tables in sorted key order.
func (x *BuildIndex) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	x.read(func() {
		fmt.Fprintln(bw, "package -> file manifest")
		dumpTable(bw, x.files)
		fmt.Fprintln(bw, "package -> main manifest")
		dumpTable(bw, x.entries)
		fmt.Fprintln(bw, "file -> undef sym manifest")
		dumpTable(bw, x.undefined)
		fmt.Fprintln(bw, "exported sym -> file manifest")
		for _, sym := range util.SortedStringKeys(x.definer) {
			fmt.Fprintf(bw, "%s -> %s\n", sym, x.definer[sym])
		}
	})
	return bw.Flush()
}

func dumpTable(w io.Writer, table map[string][]string) {
	for _, key := range util.SortedStringKeys(table) {
		fmt.Fprintf(w, "%s->\n", key)
		for _, v := range table[key] {
			fmt.Fprintln(w, v)
		}
	}
}
