// Copyright 2026 The scps-diffusion Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/FeMa42/scps-diffusion/tensor"
)

// Checkpoint file layout (.scps):
//
//	[4]  magic "SCPS"
//	[4]  format version (uint32, little endian)
//	[8]  JSON header length (uint64, little endian)
//	[..] JSON header
//	[32] SHA-256 of the tensor data section
//	[..] tensor data, each tensor at its 64-byte aligned header offset
const (
	checkpointMagic   = "SCPS"
	checkpointVersion = 1

	// Tensors start on 64-byte boundaries within the data section.
	checkpointAlign = 64
)

// Checkpoint errors.
var (
	ErrBadMagic         = errors.New("nn: not a scps checkpoint file")
	ErrChecksumMismatch = errors.New("nn: checkpoint checksum mismatch")
)

// CheckpointHeader is the JSON header of a .scps file.
type CheckpointHeader struct {
	FormatVersion int          `json:"format_version"`
	ModelType     string       `json:"model_type"`
	RunID         string       `json:"run_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	Epoch         int          `json:"epoch,omitempty"`
	Step          int64        `json:"step,omitempty"`
	Loss          float64      `json:"loss,omitempty"`
	Tensors       []TensorMeta `json:"tensors"`
}

// TensorMeta describes one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

// SaveCheckpoint writes a state dictionary to path. The header carries
// whatever metadata the caller filled in; tensor entries and timestamps
// are filled here.
func SaveCheckpoint(path string, stateDict map[string]*tensor.RawTensor, header CheckpointHeader) error {
	header.FormatVersion = checkpointVersion
	header.CreatedAt = time.Now().UTC()

	// Deterministic tensor order.
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	var offset int64
	var payload []byte
	for _, name := range names {
		raw := stateDict[name]
		size := int64(raw.ByteSize())
		if rem := offset % checkpointAlign; rem != 0 {
			pad := checkpointAlign - rem
			payload = append(payload, make([]byte, pad)...)
			offset += pad
		}
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  raw.DType().String(),
			Shape:  raw.Shape(),
			Offset: offset,
			Size:   size,
		})
		payload = append(payload, raw.Data()[:size]...)
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode checkpoint header: %w", err)
	}

	buf := make([]byte, 0, 16+len(headerJSON)+32+len(payload))
	buf = append(buf, checkpointMagic...)
	buf = binary.LittleEndian.AppendUint32(buf, checkpointVersion)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(headerJSON)))
	buf = append(buf, headerJSON...)
	sum := sha256.Sum256(payload)
	buf = append(buf, sum[:]...)
	buf = append(buf, payload...)

	return os.WriteFile(path, buf, 0o644)
}

// LoadCheckpoint reads a .scps file, validates magic, version, and
// checksum, and returns the state dictionary plus its header.
func LoadCheckpoint(path string, device tensor.Device) (map[string]*tensor.RawTensor, *CheckpointHeader, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if len(buf) < 16 || string(buf[:4]) != checkpointMagic {
		return nil, nil, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint32(buf[4:8]); v != checkpointVersion {
		return nil, nil, fmt.Errorf("nn: unsupported checkpoint version %d", v)
	}

	headerLen := binary.LittleEndian.Uint64(buf[8:16])
	if uint64(len(buf)) < 16+headerLen+32 {
		return nil, nil, fmt.Errorf("nn: truncated checkpoint file %s", path)
	}

	var header CheckpointHeader
	if err := json.Unmarshal(buf[16:16+headerLen], &header); err != nil {
		return nil, nil, fmt.Errorf("decode checkpoint header: %w", err)
	}

	var stored [32]byte
	copy(stored[:], buf[16+headerLen:16+headerLen+32])
	payload := buf[16+headerLen+32:]
	if sha256.Sum256(payload) != stored {
		return nil, nil, ErrChecksumMismatch
	}

	stateDict := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		dtype, err := parseDType(meta.DType)
		if err != nil {
			return nil, nil, fmt.Errorf("tensor %q: %w", meta.Name, err)
		}
		raw, err := tensor.NewRaw(meta.Shape, dtype, device)
		if err != nil {
			return nil, nil, fmt.Errorf("tensor %q: %w", meta.Name, err)
		}
		if meta.Offset < 0 || meta.Offset+meta.Size > int64(len(payload)) || int64(raw.ByteSize()) != meta.Size {
			return nil, nil, fmt.Errorf("nn: tensor %q has inconsistent layout", meta.Name)
		}
		copy(raw.Data()[:meta.Size], payload[meta.Offset:meta.Offset+meta.Size])
		stateDict[meta.Name] = raw
	}
	return stateDict, &header, nil
}

func parseDType(s string) (tensor.DataType, error) {
	switch s {
	case "float32":
		return tensor.Float32, nil
	case "float64":
		return tensor.Float64, nil
	default:
		return 0, fmt.Errorf("nn: unsupported dtype %q", s)
	}
}
