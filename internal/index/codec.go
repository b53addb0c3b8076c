// Package index persists the knowledge graph as a versioned, compressed
// binary file and loads it back via memory-mapped I/O.
//
// On-disk layout, big-endian fixed fields:
//
//	offset 0  : 6 bytes magic   = "C4AIV2"
//	offset 6  : 4 bytes version = 2 (u32)
//	offset 10 : 8 bytes bodyLen = L (u64)
//	offset 18 : L bytes body    = zstd(level 3, msgpack(state))
package index

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	docerrors "github.com/unclecode/doc2talk/internal/errors"
	"github.com/unclecode/doc2talk/internal/graph"
)

// Format constants.
const (
	// Version is the current cache format version, mirrored in the header
	// and in the body state.
	Version uint32 = 2

	headerLen = 18
)

var magic = []byte("C4AIV2")

// Snapshot is the persisted state: the graph plus the build inputs that
// produced it.
type Snapshot struct {
	Graph    *graph.Graph
	CodeRoot string
	DocsRoot string
	Exclude  []string
}

// graphState mirrors the graph sub-mapping of the on-disk state. The
// nested "graph" key is the legacy slot of the version-2 layout,
// re-purposed to carry cross edges across a round-trip.
type graphState struct {
	Nodes            map[string]*graph.Node `msgpack:"nodes"`
	Graph            map[string][]string    `msgpack:"graph"`
	InvertedIndex    map[string][]string    `msgpack:"inverted_index"`
	ClassRegistry    map[string]string      `msgpack:"class_registry"`
	FunctionRegistry map[string]string      `msgpack:"function_registry"`
	ParentMap        map[string]string      `msgpack:"parent_map"`
	Documents        []string               `msgpack:"documents"`
}

type state struct {
	Graph    graphState `msgpack:"graph"`
	CodeRoot *string    `msgpack:"code_root"`
	DocsRoot *string    `msgpack:"docs_root"`
	Exclude  []string   `msgpack:"exclude"`
	Version  uint32     `msgpack:"version"`
}

// EncodeBody serializes a snapshot to its msgpack body. Map keys are
// sorted during encoding, so identical snapshots produce byte-identical
// bodies regardless of Go map iteration order.
func EncodeBody(s *Snapshot) ([]byte, error) {
	st := state{
		Graph: graphState{
			Nodes:            s.Graph.Nodes,
			Graph:            s.Graph.CrossEdges,
			InvertedIndex:    s.Graph.InvertedIndex,
			ClassRegistry:    s.Graph.ClassRegistry,
			FunctionRegistry: s.Graph.FunctionRegistry,
			ParentMap:        s.Graph.ParentMap,
			Documents:        s.Graph.Documents,
		},
		Exclude: s.Exclude,
		Version: Version,
	}
	if s.CodeRoot != "" {
		st.CodeRoot = &s.CodeRoot
	}
	if s.DocsRoot != "" {
		st.DocsRoot = &s.DocsRoot
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(&st); err != nil {
		return nil, docerrors.New(docerrors.ErrCodeInternal, "failed to encode index state", err)
	}
	return buf.Bytes(), nil
}

// Persist writes the snapshot to path atomically: the file is assembled
// in a temp sibling and renamed over the destination.
func Persist(s *Snapshot, path string) error {
	body, err := EncodeBody(s)
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return docerrors.New(docerrors.ErrCodeInternal, "failed to create compressor", err)
	}
	compressed := enc.EncodeAll(body, nil)
	_ = enc.Close()

	var buf bytes.Buffer
	buf.Write(magic)
	_ = binary.Write(&buf, binary.BigEndian, Version)
	_ = binary.Write(&buf, binary.BigEndian, uint64(len(compressed)))
	buf.Write(compressed)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return docerrors.New(docerrors.ErrCodeInternal, "failed to create index directory", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return docerrors.New(docerrors.ErrCodeInternal, "failed to write index file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return docerrors.New(docerrors.ErrCodeInternal, "failed to replace index file", err)
	}
	return nil
}

// Loaded is a snapshot backed by a read-only memory mapping. The mapping
// stays alive for the life of the graph; call Close on teardown.
type Loaded struct {
	Snapshot

	file *os.File
	mm   mmap.MMap
}

// Close unmaps the file. The snapshot must not be used afterwards.
func (l *Loaded) Close() error {
	var first error
	if l.mm != nil {
		first = l.mm.Unmap()
		l.mm = nil
	}
	if l.file != nil {
		if err := l.file.Close(); err != nil && first == nil {
			first = err
		}
		l.file = nil
	}
	return first
}

// Load memory-maps the file read-only, verifies the header, and
// reconstructs the graph without re-tokenizing. Referential integrity is
// not validated: callers trust writers of the same version.
func Load(path string) (*Loaded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeFileNotFound, "failed to open index file", err)
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, docerrors.BadIndexFormat("failed to map index file")
	}

	loaded := &Loaded{file: f, mm: mm}
	if err := loaded.decode(); err != nil {
		_ = loaded.Close()
		return nil, err
	}
	return loaded, nil
}

func (l *Loaded) decode() error {
	mm := l.mm
	if len(mm) < headerLen {
		return docerrors.BadIndexFormat("index file too short")
	}
	if !bytes.Equal(mm[:len(magic)], magic) {
		return docerrors.BadIndexFormat("invalid cache format")
	}
	version := binary.BigEndian.Uint32(mm[6:10])
	if version != Version {
		return docerrors.VersionMismatch(version, Version)
	}
	bodyLen := binary.BigEndian.Uint64(mm[10:headerLen])
	if bodyLen > uint64(len(mm)-headerLen) {
		return docerrors.BadIndexFormat("index body truncated")
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return docerrors.New(docerrors.ErrCodeInternal, "failed to create decompressor", err)
	}
	defer dec.Close()

	body, err := dec.DecodeAll(mm[headerLen:headerLen+int(bodyLen)], nil)
	if err != nil {
		return docerrors.BadIndexFormat("failed to decompress index body")
	}

	var st state
	if err := msgpack.Unmarshal(body, &st); err != nil {
		return docerrors.BadIndexFormat("failed to decode index body")
	}

	g := graph.New()
	if st.Graph.Nodes != nil {
		g.Nodes = st.Graph.Nodes
	}
	if st.Graph.InvertedIndex != nil {
		g.InvertedIndex = st.Graph.InvertedIndex
	}
	if st.Graph.ClassRegistry != nil {
		g.ClassRegistry = st.Graph.ClassRegistry
	}
	if st.Graph.FunctionRegistry != nil {
		g.FunctionRegistry = st.Graph.FunctionRegistry
	}
	if st.Graph.ParentMap != nil {
		g.ParentMap = st.Graph.ParentMap
	}
	if st.Graph.Graph != nil {
		g.CrossEdges = st.Graph.Graph
	}
	g.Documents = st.Graph.Documents
	g.RebuildOrder()

	l.Snapshot.Graph = g
	if st.CodeRoot != nil {
		l.Snapshot.CodeRoot = *st.CodeRoot
	}
	if st.DocsRoot != nil {
		l.Snapshot.DocsRoot = *st.DocsRoot
	}
	l.Snapshot.Exclude = st.Exclude
	return nil
}
