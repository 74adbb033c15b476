package rsp

import (
	"strconv"
	"strings"
)

// targetXML builds the target description advertised through
// qXfer:features:read. It describes exactly the register window served by
// the g packet, in wire order, so the debugger never asks for registers
// the coordinator cannot deliver.
func targetXML() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>` + "\n")
	b.WriteString(`<!DOCTYPE target SYSTEM "gdb-target.dtd">` + "\n")
	b.WriteString("<target version=\"1.0\">\n")
	b.WriteString("  <architecture>tricore</architecture>\n")
	b.WriteString("  <feature name=\"org.gnu.gdb.tricore.core\">\n")
	for _, name := range []string{
		"a10", "a11", "a12", "a13", "a14", "a15",
		"d8", "d9", "d10", "d11", "d12", "d13", "d14", "d15",
		"pc", "pcxi", "psw",
	} {
		rtype := "uint32"
		switch name {
		case "pc":
			rtype = "code_ptr"
		case "a10", "a11", "a12", "a13", "a14", "a15":
			rtype = "data_ptr"
		}
		b.WriteString("    <reg name=\"" + name + "\" bitsize=\"32\" type=\"" + rtype + "\"/>\n")
	}
	b.WriteString("  </feature>\n")
	b.WriteString("</target>\n")
	return b.String()
}

// qxferChunk answers one qXfer read for a document. spec is the
// "offset,length" suffix of the request, both hex. Replies carry an 'm'
// prefix while more data remains and 'l' on the final chunk.
func qxferChunk(doc, spec string) string {
	parts := strings.SplitN(spec, ",", 2)
	if len(parts) != 2 {
		return "E01"
	}
	offset, err1 := strconv.ParseUint(parts[0], 16, 32)
	length, err2 := strconv.ParseUint(parts[1], 16, 32)
	if err1 != nil || err2 != nil {
		return "E01"
	}
	if offset >= uint64(len(doc)) {
		return "l"
	}
	end := offset + length
	if end >= uint64(len(doc)) {
		return "l" + doc[offset:]
	}
	return "m" + doc[offset:end]
}
