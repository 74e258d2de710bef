package l1pose

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// wireFrame is the on-disk and over-the-wire form of a PoseFrame.
//
//	{"t": 0.1, "joints": {"left_wrist": {"x": 0.4, "y": 0.7, "c": 0.93}}}
type wireFrame struct {
	T      float64                  `json:"t"`
	Joints map[JointID]wireJointObs `json:"joints"`
}

type wireJointObs struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	C float64 `json:"c"`
}

// MarshalJSON encodes the frame in wire form.
func (f PoseFrame) MarshalJSON() ([]byte, error) {
	w := wireFrame{T: f.Timestamp, Joints: make(map[JointID]wireJointObs, len(f.Joints))}
	for j, obs := range f.Joints {
		w.Joints[j] = wireJointObs{X: obs.Position.X, Y: obs.Position.Y, C: obs.Confidence}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire form. Unknown joint names are an error.
func (f *PoseFrame) UnmarshalJSON(data []byte) error {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	f.Timestamp = w.T
	f.Joints = make(map[JointID]JointObservation, len(w.Joints))
	for j, obs := range w.Joints {
		f.Joints[j] = JointObservation{
			Position:   Point{X: obs.X, Y: obs.Y},
			Confidence: obs.C,
		}
	}
	return nil
}

// DecodeFrames reads a pose sequence from r. Both a JSON array of frames and
// JSON Lines (one frame object per line) are accepted. The decoded sequence
// is validated before it is returned.
func DecodeFrames(r io.Reader) ([]PoseFrame, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pose frames: %w", err)
	}

	dec := json.NewDecoder(br)
	var frames []PoseFrame
	if first == '[' {
		if err := dec.Decode(&frames); err != nil {
			return nil, fmt.Errorf("failed to decode pose frame array: %w", err)
		}
	} else {
		for {
			var f PoseFrame
			err := dec.Decode(&f)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("failed to decode pose frame %d: %w", len(frames), err)
			}
			frames = append(frames, f)
		}
	}

	if err := ValidateSequence(frames); err != nil {
		return nil, err
	}
	return frames, nil
}

// LoadFrames reads a pose sequence from a .json or .jsonl file.
func LoadFrames(path string) ([]PoseFrame, error) {
	cleanPath := filepath.Clean(path)
	switch ext := filepath.Ext(cleanPath); ext {
	case ".json", ".jsonl", ".ndjson":
	default:
		return nil, fmt.Errorf("pose file must have .json or .jsonl extension, got %q", ext)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pose file: %w", err)
	}
	defer f.Close()

	return DecodeFrames(f)
}

// EncodeFrames writes frames to w as JSON Lines.
func EncodeFrames(w io.Writer, frames []PoseFrame) error {
	enc := json.NewEncoder(w)
	for i, f := range frames {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("failed to encode pose frame %d: %w", i, err)
		}
	}
	return nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}
