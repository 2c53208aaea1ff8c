package host

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

// MetadataSection is the name of the custom section carrying the policy
// metadata inside an annotated module.
const MetadataSection = "kubewarden_metadata"

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// ErrNotWasm is returned for input without a WebAssembly binary header.
var ErrNotWasm = errors.New("not a WebAssembly binary module")

// AnnotateModule returns a copy of module carrying metadata in its custom
// section. An existing metadata section is replaced.
func AnnotateModule(module []byte, metadata *entities.Metadata) ([]byte, error) {
	if err := metadata.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	doc, err := wireformat.EncodeMetadata(metadata)
	if err != nil {
		return nil, err
	}

	sections, err := splitSections(module)
	if err != nil {
		return nil, err
	}

	out := bytes.NewBuffer(make([]byte, 0, len(module)+len(doc)+32))
	out.Write(wasmHeader)
	for _, s := range sections {
		if s.custom == MetadataSection {
			continue
		}
		out.Write(s.raw)
	}

	content := append(appendULEB(nil, uint64(len(MetadataSection))), MetadataSection...)
	content = append(content, doc...)
	out.WriteByte(0x00)
	out.Write(appendULEB(nil, uint64(len(content))))
	out.Write(content)
	return out.Bytes(), nil
}

// Metadata returns the metadata embedded in the compiled module, if any.
func (p *Policy) Metadata() (*entities.Metadata, bool, error) {
	for _, s := range p.compiled.CustomSections() {
		if s.Name() != MetadataSection {
			continue
		}
		m, err := wireformat.DecodeMetadata(s.Data())
		if err != nil {
			return nil, true, fmt.Errorf("embedded metadata: %w", err)
		}
		return m, true, nil
	}
	return nil, false, nil
}

type section struct {
	raw    []byte
	custom string
}

// splitSections cuts a module into its sections, keeping each one verbatim.
func splitSections(module []byte) ([]section, error) {
	if !bytes.HasPrefix(module, wasmHeader) {
		return nil, ErrNotWasm
	}

	var sections []section
	pos := len(wasmHeader)
	for pos < len(module) {
		start := pos
		id := module[pos]
		pos++

		size, n, err := readULEB(module[pos:])
		if err != nil {
			return nil, fmt.Errorf("section at offset %d: %w", start, err)
		}
		pos += n
		if uint64(len(module)-pos) < size {
			return nil, fmt.Errorf("section at offset %d: truncated", start)
		}
		end := pos + int(size)

		s := section{raw: module[start:end]}
		if id == 0x00 {
			nameLen, n, err := readULEB(module[pos:end])
			if err != nil || uint64(end-pos-n) < nameLen {
				return nil, fmt.Errorf("custom section at offset %d: malformed name", start)
			}
			s.custom = string(module[pos+n : pos+n+int(nameLen)])
		}
		sections = append(sections, s)
		pos = end
	}
	return sections, nil
}

func appendULEB(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

func readULEB(data []byte) (uint64, int, error) {
	var v uint64
	for i := 0; i < len(data) && i < 10; i++ {
		v |= uint64(data[i]&0x7f) << (7 * i)
		if data[i]&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, errors.New("malformed LEB128 integer")
}
