package toolchain

import "linkgraph/internal/shared/util"

// ObjectPath maps a source file to its object file by replacing the source
// suffix with objectSuffix.
func ObjectPath(src, sourceSuffix, objectSuffix string) string {
	return util.TrimLastSuffix(src, sourceSuffix) + objectSuffix
}

// DepsPath is the dependency file written next to src.
func DepsPath(src string) string {
	return src + ".d"
}

// BinaryPath strips one trailing objectSuffix from the entry object path.
func BinaryPath(entry, objectSuffix string) string {
	return util.TrimLastSuffix(entry, objectSuffix)
}
