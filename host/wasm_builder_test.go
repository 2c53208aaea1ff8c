package host

// Tiny WebAssembly binary encoder used to build fixture modules in tests.

const (
	valI32 = 0x7f
	valI64 = 0x7e
)

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func vec(items ...[]byte) []byte {
	return concat(uleb(uint64(len(items))), concat(items...))
}

func wasmSection(id byte, content []byte) []byte {
	return concat([]byte{id}, uleb(uint64(len(content))), content)
}

func name(s string) []byte {
	return concat(uleb(uint64(len(s))), []byte(s))
}

func funcType(params, results []byte) []byte {
	return concat([]byte{0x60}, uleb(uint64(len(params))), params, uleb(uint64(len(results))), results)
}

func export(n string, kind byte, index uint64) []byte {
	return concat(name(n), []byte{kind}, uleb(index))
}

func body(instrs ...byte) []byte {
	code := append([]byte{0x00}, instrs...)
	return concat(uleb(uint64(len(code))), code)
}

func i32Const(v int32) []byte { return append([]byte{0x41}, sleb(int64(v))...) }
func i64Const(v int64) []byte { return append([]byte{0x42}, sleb(v)...) }

const end = 0x0b

// fixturePolicy builds a module with the policy ABI whose validate export
// always answers with response and whose protocol_version returns version.
// allocate hands out a fixed scratch buffer and deallocate does nothing.
func fixturePolicy(version int32, response string) []byte {
	const (
		responseAt = 1024
		scratchAt  = 4096
	)
	packed := int64(responseAt)<<32 | int64(len(response))

	types := wasmSection(1, vec(
		funcType(nil, []byte{valI32}),
		funcType([]byte{valI32}, []byte{valI32}),
		funcType([]byte{valI32, valI32}, []byte{valI64}),
		funcType([]byte{valI32, valI32}, nil),
	))
	funcs := wasmSection(3, vec([]byte{0}, []byte{1}, []byte{2}, []byte{3}))
	memory := wasmSection(5, vec([]byte{0x00, 0x01}))
	exports := wasmSection(7, vec(
		export("protocol_version", 0x00, 0),
		export("allocate", 0x00, 1),
		export("validate", 0x00, 2),
		export("deallocate", 0x00, 3),
		export("memory", 0x02, 0),
	))
	code := wasmSection(10, vec(
		body(append(i32Const(version), end)...),
		body(append(i32Const(scratchAt), end)...),
		body(append(i64Const(packed), end)...),
		body(end),
	))
	data := wasmSection(11, vec(concat(
		[]byte{0x00}, i32Const(responseAt), []byte{end},
		name(response),
	)))

	return concat([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00},
		types, funcs, memory, exports, code, data)
}

// emptyModule is the smallest valid module: header only.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
