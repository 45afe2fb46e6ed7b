package arena

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
	"github.com/docsage-labs/docsage-cli/internal/logger"
)

// Blob format: magic, version, dimension, entry count, then per entry
// the passage id (length-prefixed), ordinal, and raw float32 vector.
// Little-endian throughout.
const (
	blobMagic   = uint32(0x44535649) // "DSVI"
	blobVersion = uint32(1)
)

// Persist serialises a document's index to its blob file. The write
// goes through a temp file and rename so a crash never leaves a
// half-written blob behind.
func (m *Manager) Persist(_ context.Context, documentID string) error {
	h, err := m.handle(documentID)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	tmp := m.blobPath(documentID) + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating index blob: %w", err)
	}

	w := bufio.NewWriter(f)
	if err := writeBlob(w, h); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing index blob: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flushing index blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing index blob: %w", err)
	}

	if err := os.Rename(tmp, m.blobPath(documentID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming index blob: %w", err)
	}

	logger.Debug("Persisted vector index for document %s (%d vectors)", documentID, len(h.entries))
	return nil
}

// Restore loads a persisted index into the arena, replacing any live
// handle. A vector count disagreeing with expectedCount fails with
// domain.ErrIndexCorrupt; the caller marks the document failed.
func (m *Manager) Restore(_ context.Context, documentID string, expectedCount int) error {
	f, err := os.Open(m.blobPath(documentID))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("index blob for document %s: %w", documentID, domain.ErrNotFound)
		}
		return fmt.Errorf("opening index blob: %w", err)
	}
	defer f.Close()

	h, err := readBlob(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("index blob for document %s: %w: %v", documentID, domain.ErrIndexCorrupt, err)
	}

	if len(h.entries) != expectedCount {
		return fmt.Errorf("index blob for document %s holds %d vectors, expected %d: %w",
			documentID, len(h.entries), expectedCount, domain.ErrIndexCorrupt)
	}

	m.mu.Lock()
	m.handles[documentID] = h
	m.mu.Unlock()

	logger.Debug("Restored vector index for document %s (%d vectors)", documentID, expectedCount)
	return nil
}

func writeBlob(w io.Writer, h *handle) error {
	header := []uint32{blobMagic, blobVersion, uint32(h.dimension), uint32(len(h.entries))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	for _, e := range h.entries {
		if err := binary.Write(w, binary.LittleEndian, uint16(len(e.passageID))); err != nil {
			return err
		}
		if _, err := w.Write([]byte(e.passageID)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(e.ordinal)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, e.vector); err != nil {
			return err
		}
	}
	return nil
}

func readBlob(r io.Reader) (*handle, error) {
	var magic, version, dimension, count uint32
	for _, p := range []*uint32{&magic, &version, &dimension, &count} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
	}

	if magic != blobMagic {
		return nil, errors.New("bad magic")
	}
	if version != blobVersion {
		return nil, fmt.Errorf("unsupported blob version %d", version)
	}
	if dimension == 0 {
		return nil, errors.New("zero dimension")
	}

	h := &handle{
		dimension: int(dimension),
		entries:   make([]entry, 0, count),
	}

	for i := uint32(0); i < count; i++ {
		var idLen uint16
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return nil, fmt.Errorf("reading entry %d: %w", i, err)
		}
		id := make([]byte, idLen)
		if _, err := io.ReadFull(r, id); err != nil {
			return nil, fmt.Errorf("reading entry %d id: %w", i, err)
		}
		var ordinal uint32
		if err := binary.Read(r, binary.LittleEndian, &ordinal); err != nil {
			return nil, fmt.Errorf("reading entry %d ordinal: %w", i, err)
		}
		vec := make([]float32, dimension)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("reading entry %d vector: %w", i, err)
		}
		h.entries = append(h.entries, entry{passageID: string(id), ordinal: int(ordinal), vector: vec})
	}

	return h, nil
}
