package palm

import "bytes"

func bytesCompare(a, b []byte) int { return bytes.Compare(a, b) }
