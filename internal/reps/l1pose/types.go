package l1pose

import (
	"fmt"
	"math"
)

// JointID identifies a tracked body landmark. The set is closed; ordering
// follows the COCO 17-keypoint convention used by most 2D pose detectors.
type JointID int

const (
	Nose JointID = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle

	// NumJoints is the number of joints in the enumeration.
	NumJoints int = iota
)

// BodyRegion groups joints by the part of the body they belong to.
type BodyRegion string

const (
	RegionHead  BodyRegion = "head"
	RegionTorso BodyRegion = "torso"
	RegionArm   BodyRegion = "arm"
	RegionLeg   BodyRegion = "leg"
)

type jointInfo struct {
	name   string
	region BodyRegion
}

// joints is indexed by JointID.
var joints = [NumJoints]jointInfo{
	Nose:          {"nose", RegionHead},
	LeftEye:       {"left_eye", RegionHead},
	RightEye:      {"right_eye", RegionHead},
	LeftEar:       {"left_ear", RegionHead},
	RightEar:      {"right_ear", RegionHead},
	LeftShoulder:  {"left_shoulder", RegionTorso},
	RightShoulder: {"right_shoulder", RegionTorso},
	LeftElbow:     {"left_elbow", RegionArm},
	RightElbow:    {"right_elbow", RegionArm},
	LeftWrist:     {"left_wrist", RegionArm},
	RightWrist:    {"right_wrist", RegionArm},
	LeftHip:       {"left_hip", RegionTorso},
	RightHip:      {"right_hip", RegionTorso},
	LeftKnee:      {"left_knee", RegionLeg},
	RightKnee:     {"right_knee", RegionLeg},
	LeftAnkle:     {"left_ankle", RegionLeg},
	RightAnkle:    {"right_ankle", RegionLeg},
}

var jointsByName = func() map[string]JointID {
	m := make(map[string]JointID, NumJoints)
	for i, info := range joints {
		m[info.name] = JointID(i)
	}
	return m
}()

// Valid reports whether j is a member of the enumeration.
func (j JointID) Valid() bool {
	return j >= 0 && int(j) < NumJoints
}

// String returns the canonical snake_case joint name, e.g. "left_wrist".
func (j JointID) String() string {
	if !j.Valid() {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return joints[j].name
}

// Region returns the body region the joint belongs to.
func (j JointID) Region() BodyRegion {
	if !j.Valid() {
		return ""
	}
	return joints[j].region
}

// MarshalText implements encoding.TextMarshaler so joints can be used as
// JSON object keys and values.
func (j JointID) MarshalText() ([]byte, error) {
	if !j.Valid() {
		return nil, fmt.Errorf("invalid joint id %d", int(j))
	}
	return []byte(joints[j].name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (j *JointID) UnmarshalText(text []byte) error {
	id, err := ParseJointID(string(text))
	if err != nil {
		return err
	}
	*j = id
	return nil
}

// ParseJointID returns the JointID for a canonical joint name.
func ParseJointID(name string) (JointID, error) {
	id, ok := jointsByName[name]
	if !ok {
		return -1, fmt.Errorf("unknown joint %q", name)
	}
	return id, nil
}

// AllJoints returns every joint in enumeration order.
func AllJoints() []JointID {
	out := make([]JointID, NumJoints)
	for i := range out {
		out[i] = JointID(i)
	}
	return out
}

// DefaultCandidateJoints returns the joints considered when choosing the key
// joint of an exercise: wrists, elbows, hips, knees and ankles. Head and face
// landmarks are never candidates.
func DefaultCandidateJoints() []JointID {
	return []JointID{
		LeftWrist, RightWrist,
		LeftElbow, RightElbow,
		LeftHip, RightHip,
		LeftKnee, RightKnee,
		LeftAnkle, RightAnkle,
	}
}

// Point is a 2D image-space position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// JointObservation is a single joint's detection in one frame.
type JointObservation struct {
	Position   Point
	Confidence float64
}

// PoseFrame is one sample of the pose sequence. Frames are produced by the
// pose detector for an already-recorded video and are not mutated.
type PoseFrame struct {
	Timestamp float64 // seconds from the start of the video
	Joints    map[JointID]JointObservation
}

// Observation returns the joint's observation in this frame. The second
// result is false when the detector did not report the joint at all.
func (f PoseFrame) Observation(j JointID) (JointObservation, bool) {
	obs, ok := f.Joints[j]
	return obs, ok
}
